// Package metrics counts virtual CPU activity with Prometheus collectors.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"

	"github.com/ezrec/malbolge/cipher"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	NAMESPACE = "malbolge"
	SUBSYSTEM = "vcpu"
)

// Run outcomes.
const (
	OUTCOME_SUCCESS   = "success"
	OUTCOME_FAILURE   = "failure"
	OUTCOME_CANCELLED = "cancelled"
)

// Metrics is the set of vcpu collectors.
type Metrics struct {
	Instructions   *prometheus.CounterVec
	Runs           *prometheus.CounterVec
	BreakpointHits prometheus.Counter
	OutputBytes    prometheus.Counter

	byKind [cipher.OP_HALT + 1]prometheus.Counter
}

// New creates the collectors and registers them with reg, if reg is not nil.
func New(reg prometheus.Registerer) (m *Metrics, err error) {
	m = &Metrics{
		Instructions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: NAMESPACE,
				Subsystem: SUBSYSTEM,
				Name:      "instructions_total",
				Help:      "Instructions executed, by kind",
			},
			[]string{"kind"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: NAMESPACE,
				Subsystem: SUBSYSTEM,
				Name:      "runs_total",
				Help:      "Completed runs, by outcome",
			},
			[]string{"outcome"},
		),
		BreakpointHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: NAMESPACE,
				Subsystem: SUBSYSTEM,
				Name:      "breakpoint_hits_total",
				Help:      "Breakpoints that paused execution",
			},
		),
		OutputBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: NAMESPACE,
				Subsystem: SUBSYSTEM,
				Name:      "output_bytes_total",
				Help:      "Bytes written by the out instruction",
			},
		),
	}

	m.byKind[cipher.OP_INVALID] = m.Instructions.WithLabelValues(cipher.OP_INVALID.String())
	for _, kind := range cipher.KINDS {
		m.byKind[kind] = m.Instructions.WithLabelValues(kind.String())
	}

	if reg == nil {
		return
	}

	for _, c := range []prometheus.Collector{m.Instructions, m.Runs, m.BreakpointHits, m.OutputBytes} {
		err = errors.Join(err, reg.Register(c))
	}
	if err != nil {
		m = nil
	}

	return
}

// Instruction counts one executed instruction.
func (m *Metrics) Instruction(kind cipher.Kind) {
	if m == nil {
		return
	}
	if kind < cipher.OP_INVALID || kind > cipher.OP_HALT {
		kind = cipher.OP_INVALID
	}
	m.byKind[kind].Inc()
}

// Run counts one finished run.
func (m *Metrics) Run(outcome string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
}

// BreakpointHit counts one breakpoint pause.
func (m *Metrics) BreakpointHit() {
	if m == nil {
		return
	}
	m.BreakpointHits.Inc()
}

// Output counts n output bytes.
func (m *Metrics) Output(n int) {
	if m == nil {
		return
	}
	m.OutputBytes.Add(float64(n))
}
