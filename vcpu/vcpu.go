package vcpu

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/ezrec/malbolge/cipher"
	"github.com/ezrec/malbolge/memory"
	"github.com/ezrec/malbolge/metrics"
	"github.com/ezrec/malbolge/ternary"
)

// Cpu is a Malbolge virtual CPU bound to one memory.
type Cpu struct {
	Verbose bool             // Set to enable verbose logging. Set before Run.
	Metrics *metrics.Metrics // Optional collectors. Set before Run.

	ID uuid.UUID // Identifies this CPU in logs.

	mutex sync.Mutex
	cond  *sync.Cond

	mem   *memory.Memory
	regs  Registers
	state State
	err   error
	steps uint64

	settles uint64 // Transitions into paused or stopped.

	input       []byte
	inputClosed bool

	breakpoints map[ternary.Word]int

	// Requests posted to the worker.
	stopReq   bool
	pauseReq  bool
	resumeReq bool
	stepReq   bool

	stepping  bool // Pause after the next instruction.
	bpChecked bool // Breakpoint at C already considered.

	// An 'in' instruction suspended waiting for input.
	pending    bool
	pendingRaw ternary.Word

	onOutput     []OutputFunc
	onState      []StateFunc
	onBreakpoint []BreakpointFunc
	events       []func()

	done chan struct{}
}

// New creates a CPU, in the ready state, over a loaded memory.
func New(mem *memory.Memory) (cpu *Cpu) {
	cpu = &Cpu{
		ID:          uuid.New(),
		mem:         mem,
		breakpoints: map[ternary.Word]int{},
		done:        make(chan struct{}),
	}
	cpu.cond = sync.NewCond(&cpu.mutex)

	return
}

func (cpu *Cpu) logf(format string, args ...any) {
	log.Printf("vcpu %v: %v", cpu.ID, fmt.Sprintf(format, args...))
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	text = fmt.Sprintf("state: %v\n", cpu.state)
	for _, reg := range REGISTERS {
		value, _ := cpu.regs.Get(reg)
		text += fmt.Sprintf("    %v: %5d %t\n", reg, value, value)
	}
	text += fmt.Sprintf("steps: %v\n", cpu.steps)

	return
}

// Run starts the worker. A CPU can only be run once.
func (cpu *Cpu) Run() (err error) {
	cpu.mutex.Lock()

	switch cpu.state {
	case STATE_READY:
	case STATE_STOPPED:
		cpu.mutex.Unlock()
		err = ErrStopped
		return
	default:
		cpu.mutex.Unlock()
		err = ErrAlreadyRun
		return
	}

	if cpu.Verbose {
		cpu.logf("run")
	}

	cpu.setState(STATE_RUNNING)
	events := cpu.takeEvents()
	cpu.mutex.Unlock()

	dispatch(events)

	go cpu.worker()

	return
}

// Stop cancels the run. A CPU that was never run is stopped immediately.
// Stop is irreversible, and safe to call more than once.
func (cpu *Cpu) Stop() {
	cpu.mutex.Lock()

	switch cpu.state {
	case STATE_STOPPED:
		cpu.mutex.Unlock()
		return
	case STATE_READY:
		cpu.finish(ErrCancelled)
		events := cpu.takeEvents()
		cpu.mutex.Unlock()

		dispatch(events)
		close(cpu.done)
		return
	}

	cpu.stopReq = true
	cpu.cond.Broadcast()
	cpu.mutex.Unlock()
}

// Pause requests a pause before the next instruction.
func (cpu *Cpu) Pause() (err error) {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	switch cpu.state {
	case STATE_READY:
		err = ErrNotRunning
	case STATE_STOPPED:
		err = ErrStopped
	case STATE_PAUSED:
		cpu.resumeReq = false
		cpu.stepReq = false
	default:
		cpu.pauseReq = true
	}

	return
}

// Resume continues a paused CPU. Resuming a running CPU does nothing.
func (cpu *Cpu) Resume() (err error) {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	switch cpu.state {
	case STATE_READY:
		err = ErrNotRunning
	case STATE_STOPPED:
		err = ErrStopped
	case STATE_PAUSED:
		cpu.resumeReq = true
		cpu.stepReq = false
		cpu.cond.Broadcast()
	default:
		cpu.pauseReq = false
		cpu.stepping = false
	}

	return
}

// Step executes one instruction of a paused CPU, then pauses again.
// Stepping a running CPU pauses it after its next instruction.
func (cpu *Cpu) Step() (err error) {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	switch cpu.state {
	case STATE_READY:
		err = ErrNotRunning
	case STATE_STOPPED:
		err = ErrStopped
	case STATE_PAUSED:
		cpu.stepReq = true
		cpu.resumeReq = false
		cpu.cond.Broadcast()
	default:
		cpu.stepping = true
	}

	return
}

// AddInput queues input bytes for the 'in' instruction.
func (cpu *Cpu) AddInput(data []byte) (err error) {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	if cpu.inputClosed {
		err = ErrInputClosed
		return
	}

	cpu.input = append(cpu.input, data...)
	cpu.cond.Broadcast()
	return
}

// CloseInput marks the end of input. Once the queue drains, 'in' loads
// ternary.WORD_MAX into A.
func (cpu *Cpu) CloseInput() {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	cpu.inputClosed = true
	cpu.cond.Broadcast()
}

// RegisterValue returns the current value of a register.
func (cpu *Cpu) RegisterValue(reg Register) (value ternary.Word, err error) {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	return cpu.regs.Get(reg)
}

// AddressValue returns the current value of a memory cell.
func (cpu *Cpu) AddressValue(address ternary.Word) (value ternary.Word, err error) {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	return cpu.mem.Read(address)
}

// Registers returns a snapshot of the register file.
func (cpu *Cpu) Registers() (regs Registers) {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	return cpu.regs
}

// State returns the current execution state.
func (cpu *Cpu) State() (state State) {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	return cpu.state
}

// Err returns the failure of a stopped run, or nil.
func (cpu *Cpu) Err() (err error) {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	return cpu.err
}

// Steps returns the number of instructions executed.
func (cpu *Cpu) Steps() (steps uint64) {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	return cpu.steps
}

// Settles returns the number of times the CPU has paused or stopped. A
// transition is counted before its state observers are notified.
func (cpu *Cpu) Settles() (settles uint64) {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	return cpu.settles
}

// Done is closed once the CPU has stopped and every observer has been
// notified.
func (cpu *Cpu) Done() <-chan struct{} {
	return cpu.done
}

// Wait blocks until the CPU stops, and returns the failure of the run.
func (cpu *Cpu) Wait(ctx context.Context) (err error) {
	select {
	case <-cpu.done:
		err = cpu.Err()
	case <-ctx.Done():
		err = ctx.Err()
	}
	return
}

// setState transitions to a new state. Must be called with the lock held.
func (cpu *Cpu) setState(state State) {
	old := cpu.state
	if old == state {
		return
	}

	cpu.state = state
	if state == STATE_PAUSED || state == STATE_STOPPED {
		cpu.settles++
	}
	if cpu.Verbose {
		cpu.logf("%v -> %v", old, state)
	}
	cpu.emitState(old, state, cpu.err)
}

// finish stops the CPU with the run's failure, or nil on success. Must be
// called with the lock held.
func (cpu *Cpu) finish(err error) {
	cpu.err = err
	cpu.pending = false

	switch {
	case err == nil:
		cpu.Metrics.Run(metrics.OUTCOME_SUCCESS)
	case err == ErrCancelled:
		cpu.Metrics.Run(metrics.OUTCOME_CANCELLED)
	default:
		cpu.Metrics.Run(metrics.OUTCOME_FAILURE)
	}

	if cpu.Verbose && err != nil {
		cpu.logf("%v", err)
	}

	cpu.setState(STATE_STOPPED)
}

func (cpu *Cpu) worker() {
	defer close(cpu.done)

	for {
		cpu.mutex.Lock()
		stopped := cpu.cycle()
		events := cpu.takeEvents()
		cpu.mutex.Unlock()

		dispatch(events)

		if stopped {
			return
		}
	}
}

// cycle advances the CPU by at most one instruction, blocking while paused
// or waiting for input. Returns true once the CPU has stopped. Must be
// called with the lock held.
func (cpu *Cpu) cycle() (stopped bool) {
	for {
		if cpu.stopReq {
			cpu.finish(ErrCancelled)
			stopped = true
			return
		}

		switch cpu.state {
		case STATE_PAUSED:
			switch {
			case cpu.stepReq:
				cpu.stepReq = false
				cpu.stepping = true
			case cpu.resumeReq:
				cpu.resumeReq = false
			default:
				cpu.cond.Wait()
				continue
			}
			// Already paused before C, so its breakpoint is satisfied.
			cpu.bpChecked = true
			cpu.setState(STATE_RUNNING)
			return
		case STATE_WAITING:
			if len(cpu.input) == 0 && !cpu.inputClosed {
				cpu.cond.Wait()
				continue
			}
			cpu.setState(STATE_RUNNING)
			return
		case STATE_RUNNING:
			if !cpu.pending {
				if cpu.pauseReq {
					cpu.pauseReq = false
					cpu.setState(STATE_PAUSED)
					return
				}

				if !cpu.bpChecked {
					cpu.bpChecked = true
					if cpu.hitBreakpoint() {
						if cpu.Verbose {
							cpu.logf("breakpoint at %v", cpu.regs.C)
						}
						cpu.Metrics.BreakpointHit()
						cpu.emitBreakpoint(cpu.regs.C, cpu.regs)
						cpu.setState(STATE_PAUSED)
						return
					}
				}
			}

			cpu.execute()
			stopped = cpu.state == STATE_STOPPED
			return
		default:
			stopped = true
			return
		}
	}
}

// execute runs the instruction at C. Must be called with the lock held.
func (cpu *Cpu) execute() {
	regs := &cpu.regs

	raw := cpu.pendingRaw
	if !cpu.pending {
		// C and D are always within memory.
		raw, _ = cpu.mem.Read(regs.C)
	}

	kind, index := cipher.Decode(raw, regs.C)

	if cpu.Verbose && !cpu.pending {
		cpu.logf("%05d: %v", regs.C, kind)
	}

	next := regs.C.Next()

	switch kind {
	case cipher.OP_JMP:
		next, _ = cpu.mem.Read(regs.D)
	case cipher.OP_OUT:
		value := byte(regs.A.Mod(256))
		cpu.Metrics.Output(1)
		cpu.emitOutput(value)
	case cipher.OP_IN:
		switch {
		case len(cpu.input) > 0:
			regs.A = ternary.Word(cpu.input[0])
			cpu.input = cpu.input[1:]
		case cpu.inputClosed:
			regs.A = ternary.WORD_MAX
		default:
			cpu.pending = true
			cpu.pendingRaw = raw
			cpu.setState(STATE_WAITING)
			return
		}
		cpu.pending = false
	case cipher.OP_ROTATE:
		value, _ := cpu.mem.Read(regs.D)
		value = value.Rotate()
		_ = cpu.mem.Write(regs.D, value)
		regs.A = value
	case cipher.OP_MOVD:
		regs.D, _ = cpu.mem.Read(regs.D)
	case cipher.OP_OP:
		value, _ := cpu.mem.Read(regs.D)
		value = value.Op(regs.A)
		_ = cpu.mem.Write(regs.D, value)
		regs.A = value
	case cipher.OP_NOP:
	case cipher.OP_HALT:
		cpu.steps++
		cpu.Metrics.Instruction(kind)
		cpu.finish(nil)
		return
	default:
		cpu.steps++
		cpu.Metrics.Instruction(kind)
		cpu.finish(ErrInvalidInstruction{Address: regs.C, Index: index})
		return
	}

	_ = cpu.mem.Write(regs.C, cipher.Encrypt(raw))

	regs.C = next
	regs.D = regs.D.Next()

	cpu.steps++
	cpu.Metrics.Instruction(kind)
	cpu.bpChecked = false

	if cpu.stepping {
		cpu.stepping = false
		cpu.setState(STATE_PAUSED)
	}
}
