package vcpu

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/malbolge/cipher"
	"github.com/ezrec/malbolge/loader"
	"github.com/ezrec/malbolge/memory"
	"github.com/ezrec/malbolge/metrics"
	"github.com/ezrec/malbolge/ternary"
)

const testTimeout = 5 * time.Second

// monitor records everything a Cpu signals.
type monitor struct {
	mutex       sync.Mutex
	output      []byte
	states      []State
	breakpoints []ternary.Word

	transition chan State
}

func newMonitor(cpu *Cpu) (mon *monitor) {
	mon = &monitor{
		transition: make(chan State, 1024),
	}

	cpu.OnOutput(func(value byte) {
		mon.mutex.Lock()
		defer mon.mutex.Unlock()
		mon.output = append(mon.output, value)
	})
	cpu.OnState(func(old State, new State, err error) {
		mon.mutex.Lock()
		mon.states = append(mon.states, new)
		mon.mutex.Unlock()
		mon.transition <- new
	})
	cpu.OnBreakpoint(func(address ternary.Word, regs Registers) {
		mon.mutex.Lock()
		defer mon.mutex.Unlock()
		mon.breakpoints = append(mon.breakpoints, address)
	})

	return
}

// await blocks until the CPU enters state.
func (mon *monitor) await(t *testing.T, state State) {
	t.Helper()

	timeout := time.After(testTimeout)
	for {
		select {
		case got := <-mon.transition:
			if got == state {
				return
			}
			if got == STATE_STOPPED {
				t.Fatalf("stopped while waiting for %v", state)
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %v", state)
		}
	}
}

func (mon *monitor) Output() []byte {
	mon.mutex.Lock()
	defer mon.mutex.Unlock()
	return slices.Clone(mon.output)
}

func (mon *monitor) States() []State {
	mon.mutex.Lock()
	defer mon.mutex.Unlock()
	return append([]State{}, mon.states...)
}

func wait(t *testing.T, cpu *Cpu) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	err := cpu.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return err
}

func newCpu(t *testing.T, normal string) *Cpu {
	t.Helper()

	mem, err := loader.LoadString(normal, loader.HINT_ON)
	require.NoError(t, err, normal)

	return New(mem)
}

// nopMemory is a memory of nop instructions with a halt in the last cell.
func nopMemory(t *testing.T) *memory.Memory {
	t.Helper()

	cells := make([]ternary.Word, memory.SIZE)
	for n := range cells {
		cells[n] = ternary.Word(cipher.RawFor(cipher.OP_NOP, n))
	}
	cells[memory.SIZE-1] = ternary.Word(cipher.RawFor(cipher.OP_HALT, memory.SIZE-1))

	mem, err := memory.New(cells)
	require.NoError(t, err)
	return mem
}

func TestHalt(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t, "v")
	mon := newMonitor(cpu)
	assert.Equal(STATE_READY, cpu.State())

	assert.NoError(cpu.Run())
	assert.NoError(wait(t, cpu))

	assert.Equal(STATE_STOPPED, cpu.State())
	assert.NoError(cpu.Err())
	assert.Equal(uint64(1), cpu.Steps())
	assert.Equal([]State{STATE_RUNNING, STATE_STOPPED}, mon.States())
	assert.Equal(Registers{}, cpu.Registers())
}

func TestInvalid(t *testing.T) {
	assert := assert.New(t)

	mem, err := memory.New([]ternary.Word{'!'})
	require.NoError(t, err)

	cpu := New(mem)
	assert.NoError(cpu.Run())

	err = wait(t, cpu)
	assert.ErrorIs(err, ErrInvalidInstruction{})

	var invalid ErrInvalidInstruction
	if assert.True(errors.As(err, &invalid)) {
		assert.Equal(ternary.Word(0), invalid.Address)
		assert.Equal(33, invalid.Index)
	}

	assert.Equal(STATE_STOPPED, cpu.State())
	assert.Equal(uint64(1), cpu.Steps())

	// The failing cell is not mutated.
	value, err := cpu.AddressValue(0)
	assert.NoError(err)
	assert.Equal(ternary.Word('!'), value)
}

func TestPrograms(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name    string
		program string
		input   string
		output  []byte
		steps   uint64
	}){
		{"out", "<v", "", []byte{0}, 2},
		{"echo", "/<v", "A", []byte("A"), 3},
		{"nops", "ooo<v", "", []byte{0}, 5},
		{"rotate", "*<v", "", []byte{'\r'}, 3},
		{"op", "po<v", "", []byte{'s'}, 4},
		{"movd", "jooooooooov", "", nil, 11},
	}

	for _, entry := range table {
		cpu := newCpu(t, entry.program)
		mon := newMonitor(cpu)

		if entry.input != "" {
			assert.NoError(cpu.AddInput([]byte(entry.input)), entry.name)
		}

		assert.NoError(cpu.Run(), entry.name)
		assert.NoError(wait(t, cpu), entry.name)

		assert.Equal(entry.output, mon.Output(), entry.name)
		assert.Equal(entry.steps, cpu.Steps(), entry.name)
	}
}

func TestSelfModify(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t, "ooo<v")
	assert.NoError(cpu.Run())
	assert.NoError(wait(t, cpu))

	value, err := cpu.AddressValue(0)
	assert.NoError(err)
	assert.Equal(cipher.Encrypt('D'), value)
	assert.Equal(ternary.Word('!'), value)

	// halt is not mutated
	value, err = cpu.AddressValue(4)
	assert.NoError(err)
	assert.Equal(ternary.Word('M'), value)

	assert.Equal(Registers{A: 0, C: 4, D: 4}, cpu.Registers())
}

func TestJmp(t *testing.T) {
	assert := assert.New(t)

	cells := make([]ternary.Word, 99)
	for n := range cells {
		cells[n] = ternary.Word(cipher.RawFor(cipher.OP_NOP, n))
	}
	cells[0] = 98  // jmp to mem[D] = mem[0] = 98
	cells[98] = 77 // halt at 98

	mem, err := memory.New(cells)
	require.NoError(t, err)

	cpu := New(mem)
	assert.NoError(cpu.Run())
	assert.NoError(wait(t, cpu))

	assert.Equal(uint64(2), cpu.Steps())
	assert.Equal(Registers{A: 0, C: 98, D: 1}, cpu.Registers())

	value, err := cpu.AddressValue(0)
	assert.NoError(err)
	assert.Equal(ternary.Word(84), value)
}

func TestOutputModulo(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t, "<v")
	mon := newMonitor(cpu)
	cpu.regs.A = 321

	assert.NoError(cpu.Run())
	assert.NoError(wait(t, cpu))

	assert.Equal([]byte{65}, mon.Output())
}

func TestInputWait(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t, "/<v")
	mon := newMonitor(cpu)

	assert.NoError(cpu.Run())
	mon.await(t, STATE_WAITING)
	assert.Equal(uint64(0), cpu.Steps())

	assert.NoError(cpu.AddInput([]byte("Z")))
	assert.NoError(wait(t, cpu))

	assert.Equal([]byte("Z"), mon.Output())
	assert.Equal([]State{
		STATE_RUNNING,
		STATE_WAITING,
		STATE_RUNNING,
		STATE_STOPPED,
	}, mon.States())
}

func TestInputClosed(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t, "/<v")
	mon := newMonitor(cpu)
	cpu.CloseInput()
	assert.ErrorIs(cpu.AddInput([]byte("A")), ErrInputClosed)

	assert.NoError(cpu.Run())
	assert.NoError(wait(t, cpu))

	assert.Equal([]byte{byte(int(ternary.WORD_MAX) % 256)}, mon.Output())
}

func TestStopWaiting(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t, "/<v")
	mon := newMonitor(cpu)

	assert.NoError(cpu.Run())
	mon.await(t, STATE_WAITING)

	cpu.Stop()
	assert.ErrorIs(wait(t, cpu), ErrCancelled)
	assert.Equal(STATE_STOPPED, cpu.State())
	assert.ErrorIs(cpu.Err(), ErrCancelled)
	assert.Empty(mon.Output())

	// Still inspectable.
	value, err := cpu.AddressValue(0)
	assert.NoError(err)
	assert.Equal(ternary.Word('u'), value)

	cpu.Stop()
	assert.ErrorIs(cpu.Err(), ErrCancelled)
}

func TestStopBeforeRun(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t, "v")
	mon := newMonitor(cpu)

	cpu.Stop()
	assert.Equal(STATE_STOPPED, cpu.State())
	assert.ErrorIs(cpu.Err(), ErrCancelled)
	assert.Equal([]State{STATE_STOPPED}, mon.States())

	select {
	case <-cpu.Done():
	default:
		assert.Fail("not done")
	}

	assert.ErrorIs(cpu.Run(), ErrStopped)
	assert.Equal(uint64(0), cpu.Steps())
}

func TestControlErrors(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t, "/<v")
	mon := newMonitor(cpu)

	assert.ErrorIs(cpu.Pause(), ErrNotRunning)
	assert.ErrorIs(cpu.Resume(), ErrNotRunning)
	assert.ErrorIs(cpu.Step(), ErrNotRunning)

	assert.NoError(cpu.Run())
	mon.await(t, STATE_WAITING)
	assert.ErrorIs(cpu.Run(), ErrAlreadyRun)

	cpu.Stop()
	assert.ErrorIs(wait(t, cpu), ErrCancelled)

	assert.ErrorIs(cpu.Pause(), ErrStopped)
	assert.ErrorIs(cpu.Resume(), ErrStopped)
	assert.ErrorIs(cpu.Step(), ErrStopped)
	assert.ErrorIs(cpu.Run(), ErrStopped)
}

func TestBreakpoint(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t, "ooo<v")
	mon := newMonitor(cpu)
	assert.NoError(cpu.AddBreakpoint(3, 0))

	assert.NoError(cpu.Run())
	mon.await(t, STATE_PAUSED)

	assert.Equal(STATE_PAUSED, cpu.State())
	assert.Equal(uint64(3), cpu.Steps())
	c, err := cpu.RegisterValue(REG_C)
	assert.NoError(err)
	assert.Equal(ternary.Word(3), c)
	assert.Empty(mon.Output())

	assert.NoError(cpu.Resume())
	assert.NoError(wait(t, cpu))

	assert.Equal([]byte{0}, mon.Output())
	assert.Equal(uint64(5), cpu.Steps())
	assert.Equal([]ternary.Word{3}, mon.breakpoints)
}

func TestBreakpointIgnore(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t, "ooo<v")
	mon := newMonitor(cpu)
	assert.NoError(cpu.AddBreakpoint(3, 1))
	assert.NoError(cpu.AddBreakpoint(1, 0))
	assert.True(cpu.RemoveBreakpoint(1))
	assert.False(cpu.RemoveBreakpoint(1))
	assert.ErrorIs(cpu.AddBreakpoint(ternary.WORD_MAX+1, 0), memory.ErrBounds)

	assert.NoError(cpu.Run())
	assert.NoError(wait(t, cpu))

	assert.Empty(mon.breakpoints)
	assert.Equal([]Breakpoint{{Address: 3, Ignore: 0}}, cpu.Breakpoints())
}

func TestStep(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t, "ooo<v")
	mon := newMonitor(cpu)
	assert.NoError(cpu.AddBreakpoint(0, 0))
	assert.NoError(cpu.AddBreakpoint(1, 1))
	assert.Equal(uint64(0), cpu.Settles())

	assert.NoError(cpu.Run())
	mon.await(t, STATE_PAUSED)
	assert.Equal(ternary.Word(0), cpu.Registers().C)
	assert.Equal(uint64(1), cpu.Settles())

	// A step executes the instruction at C even if it has a breakpoint,
	// neither signalling nor consuming it.
	for n := 1; n <= 3; n++ {
		assert.NoError(cpu.Step())
		mon.await(t, STATE_PAUSED)
		assert.Equal(uint64(n), cpu.Steps())
		assert.Equal(ternary.Word(n), cpu.Registers().C)
		assert.Equal(uint64(n+1), cpu.Settles())
	}

	assert.NoError(cpu.Resume())
	assert.NoError(wait(t, cpu))
	assert.Equal(uint64(5), cpu.Steps())
	assert.Equal(uint64(5), cpu.Settles())
	assert.Equal([]ternary.Word{0}, mon.breakpoints)
	assert.Equal([]Breakpoint{{Address: 0}, {Address: 1, Ignore: 1}}, cpu.Breakpoints())
}

func TestPause(t *testing.T) {
	assert := assert.New(t)

	cpu := New(nopMemory(t))
	mon := newMonitor(cpu)

	assert.NoError(cpu.Run())
	assert.NoError(cpu.Pause())
	mon.await(t, STATE_PAUSED)

	steps := cpu.Steps()
	assert.Less(steps, uint64(memory.SIZE))
	assert.Equal(ternary.Word(steps), cpu.Registers().C)

	// Repeated pause is harmless.
	assert.NoError(cpu.Pause())

	assert.NoError(cpu.Step())
	mon.await(t, STATE_PAUSED)
	assert.Equal(steps+1, cpu.Steps())

	assert.NoError(cpu.Resume())
	assert.NoError(wait(t, cpu))
	assert.Equal(uint64(memory.SIZE), cpu.Steps())
}

func TestStepRunning(t *testing.T) {
	assert := assert.New(t)

	cpu := New(nopMemory(t))
	mon := newMonitor(cpu)

	assert.NoError(cpu.Run())
	assert.NoError(cpu.Step())
	mon.await(t, STATE_PAUSED)

	assert.Less(cpu.Steps(), uint64(memory.SIZE))

	cpu.Stop()
	assert.ErrorIs(wait(t, cpu), ErrCancelled)
}

func TestMetrics(t *testing.T) {
	assert := assert.New(t)

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	cpu := newCpu(t, "ooo<v")
	cpu.Metrics = m
	assert.NoError(cpu.AddBreakpoint(4, 0))

	mon := newMonitor(cpu)
	assert.NoError(cpu.Run())
	mon.await(t, STATE_PAUSED)
	assert.NoError(cpu.Resume())
	assert.NoError(wait(t, cpu))

	assert.Equal(3.0, testutil.ToFloat64(m.Instructions.WithLabelValues("nop")))
	assert.Equal(1.0, testutil.ToFloat64(m.Instructions.WithLabelValues("out")))
	assert.Equal(1.0, testutil.ToFloat64(m.Instructions.WithLabelValues("halt")))
	assert.Equal(1.0, testutil.ToFloat64(m.Runs.WithLabelValues(metrics.OUTCOME_SUCCESS)))
	assert.Equal(1.0, testutil.ToFloat64(m.BreakpointHits))
	assert.Equal(1.0, testutil.ToFloat64(m.OutputBytes))
}

func TestObserverCallback(t *testing.T) {
	assert := assert.New(t)

	cpu := newCpu(t, "ooo<v")
	assert.NoError(cpu.AddBreakpoint(2, 0))

	// Observers may call back into the CPU.
	var regs Registers
	cpu.OnBreakpoint(func(address ternary.Word, snapshot Registers) {
		regs = cpu.Registers()
		assert.NoError(cpu.Resume())
	})

	assert.NoError(cpu.Run())
	assert.NoError(wait(t, cpu))
	assert.Equal(ternary.Word(2), regs.C)
}

func TestRegisters(t *testing.T) {
	assert := assert.New(t)

	for _, reg := range REGISTERS {
		parsed, err := ParseRegister(reg.String())
		assert.NoError(err)
		assert.Equal(reg, parsed)
	}

	_, err := ParseRegister("b")
	assert.ErrorIs(err, ErrRegister)

	_, err = Registers{}.Get(Register(7))
	assert.ErrorIs(err, ErrRegister)

	cpu := newCpu(t, "v")
	assert.Contains(cpu.String(), "state: ready")
	assert.Contains(cpu.String(), "0000000000")
}
