package vcpu

import (
	"github.com/ezrec/malbolge/ternary"
)

// OutputFunc receives one output byte.
type OutputFunc func(value byte)

// StateFunc receives a state transition. err is the failure of a stopped
// run, or nil.
type StateFunc func(old State, new State, err error)

// BreakpointFunc receives a breakpoint hit, before the instruction at
// address executes.
type BreakpointFunc func(address ternary.Word, regs Registers)

// OnOutput registers an output observer.
func (cpu *Cpu) OnOutput(fn OutputFunc) {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	cpu.onOutput = append(cpu.onOutput, fn)
}

// OnState registers a state change observer.
func (cpu *Cpu) OnState(fn StateFunc) {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	cpu.onState = append(cpu.onState, fn)
}

// OnBreakpoint registers a breakpoint observer. A pause that ends on a
// breakpoint address by Step or Pause does not signal it, and leaving that
// pause executes the instruction without consuming the breakpoint.
func (cpu *Cpu) OnBreakpoint(fn BreakpointFunc) {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	cpu.onBreakpoint = append(cpu.onBreakpoint, fn)
}

// The emit functions queue an event for dispatch once the lock is released.
// They must be called with the lock held.

func (cpu *Cpu) emitOutput(value byte) {
	observers := cpu.onOutput
	cpu.events = append(cpu.events, func() {
		for _, fn := range observers {
			fn(value)
		}
	})
}

func (cpu *Cpu) emitState(old State, new State, err error) {
	observers := cpu.onState
	cpu.events = append(cpu.events, func() {
		for _, fn := range observers {
			fn(old, new, err)
		}
	})
}

func (cpu *Cpu) emitBreakpoint(address ternary.Word, regs Registers) {
	observers := cpu.onBreakpoint
	cpu.events = append(cpu.events, func() {
		for _, fn := range observers {
			fn(address, regs)
		}
	})
}

// takeEvents removes the queued events. Must be called with the lock held.
func (cpu *Cpu) takeEvents() (events []func()) {
	events = cpu.events
	cpu.events = nil
	return
}

func dispatch(events []func()) {
	for _, event := range events {
		event()
	}
}
