// Package debugger controls a virtual CPU under a debugger.
//
// A Controller wraps one vcpu.Cpu and adds the inspection signals and the
// blocking run, resume and step commands used by interactive and scripted
// debugging.
package debugger

import (
	"context"
	"log"
	"sync"

	"github.com/ezrec/malbolge/ternary"
	"github.com/ezrec/malbolge/vcpu"
)

// RegisterData is an inspected register. For the pointer registers C and D,
// Pointer is set and Target is the memory cell the register addresses.
type RegisterData struct {
	Register vcpu.Register
	Value    ternary.Word
	Pointer  bool
	Target   ternary.Word
}

// RegisterValueFunc receives the result of a register inspection.
type RegisterValueFunc func(data RegisterData)

// AddressValueFunc receives the result of a memory inspection.
type AddressValueFunc func(address ternary.Word, value ternary.Word)

// Controller is the debugger for a single CPU.
type Controller struct {
	Verbose bool // Set to enable verbose logging.

	mutex           sync.Mutex
	cpu             *vcpu.Cpu
	changed         chan struct{}
	onRegisterValue []RegisterValueFunc
	onAddressValue  []AddressValueFunc
}

// New creates an unattached controller.
func New() (ctl *Controller) {
	ctl = &Controller{
		changed: make(chan struct{}),
	}
	return
}

// Attach binds the controller to cpu. A controller attaches only once.
func (ctl *Controller) Attach(cpu *vcpu.Cpu) (err error) {
	ctl.mutex.Lock()
	defer ctl.mutex.Unlock()

	if ctl.cpu != nil {
		err = ErrAlreadyAttached
		return
	}

	ctl.cpu = cpu
	cpu.OnState(ctl.stateChanged)
	cpu.OnBreakpoint(func(address ternary.Word, regs vcpu.Registers) {
		if ctl.Verbose {
			log.Printf("debugger: breakpoint at %v", address)
		}
	})

	if ctl.Verbose {
		log.Printf("debugger: attached to vcpu %v", cpu.ID)
	}

	return
}

// Cpu returns the attached CPU, or nil.
func (ctl *Controller) Cpu() (cpu *vcpu.Cpu) {
	ctl.mutex.Lock()
	defer ctl.mutex.Unlock()

	return ctl.cpu
}

func (ctl *Controller) attached() (cpu *vcpu.Cpu, err error) {
	cpu = ctl.Cpu()
	if cpu == nil {
		err = ErrNotAttached
	}
	return
}

func (ctl *Controller) stateChanged(old vcpu.State, new vcpu.State, err error) {
	if ctl.Verbose {
		log.Printf("debugger: %v -> %v", old, new)
	}

	if new != vcpu.STATE_PAUSED && new != vcpu.STATE_STOPPED {
		return
	}

	ctl.mutex.Lock()
	defer ctl.mutex.Unlock()

	close(ctl.changed)
	ctl.changed = make(chan struct{})
}

// notified returns a channel closed at the next pause or stop notification.
func (ctl *Controller) notified() <-chan struct{} {
	ctl.mutex.Lock()
	defer ctl.mutex.Unlock()

	return ctl.changed
}

// settle performs action, then waits until the CPU pauses or stops. Only a
// pause or stop after the action counts; one still being notified from
// before it does not.
func (ctl *Controller) settle(ctx context.Context, action func(cpu *vcpu.Cpu) error) (err error) {
	cpu, err := ctl.attached()
	if err != nil {
		return
	}

	mark := cpu.Settles()

	err = action(cpu)
	if err != nil {
		return
	}

	for {
		changed := ctl.notified()
		if cpu.Settles() != mark {
			return
		}

		select {
		case <-changed:
		case <-cpu.Done():
			return
		case <-ctx.Done():
			err = ctx.Err()
			return
		}
	}
}

// OnRegisterValue registers a register inspection observer.
func (ctl *Controller) OnRegisterValue(fn RegisterValueFunc) {
	ctl.mutex.Lock()
	defer ctl.mutex.Unlock()

	ctl.onRegisterValue = append(ctl.onRegisterValue, fn)
}

// OnAddressValue registers a memory inspection observer.
func (ctl *Controller) OnAddressValue(fn AddressValueFunc) {
	ctl.mutex.Lock()
	defer ctl.mutex.Unlock()

	ctl.onAddressValue = append(ctl.onAddressValue, fn)
}

// Run starts the CPU.
func (ctl *Controller) Run() (err error) {
	cpu, err := ctl.attached()
	if err != nil {
		return
	}

	return cpu.Run()
}

// RunAndWait starts the CPU, and waits until it pauses or stops.
func (ctl *Controller) RunAndWait(ctx context.Context) (err error) {
	return ctl.settle(ctx, (*vcpu.Cpu).Run)
}

// Stop cancels the run.
func (ctl *Controller) Stop() (err error) {
	cpu, err := ctl.attached()
	if err != nil {
		return
	}

	cpu.Stop()
	return
}

// AddInput queues input for the CPU.
func (ctl *Controller) AddInput(data []byte) (err error) {
	cpu, err := ctl.attached()
	if err != nil {
		return
	}

	return cpu.AddInput(data)
}

// Wait waits for the CPU to stop, and returns the failure of the run.
func (ctl *Controller) Wait(ctx context.Context) (err error) {
	cpu, err := ctl.attached()
	if err != nil {
		return
	}

	return cpu.Wait(ctx)
}

// AddBreakpoint sets a breakpoint that pauses once ignore hits have passed.
func (ctl *Controller) AddBreakpoint(address ternary.Word, ignore int) (err error) {
	cpu, err := ctl.attached()
	if err != nil {
		return
	}

	if ctl.Verbose {
		log.Printf("debugger: add breakpoint %v ignore %v", address, ignore)
	}

	return cpu.AddBreakpoint(address, ignore)
}

// RemoveBreakpoint clears a breakpoint, and reports whether it existed.
func (ctl *Controller) RemoveBreakpoint(address ternary.Word) (ok bool, err error) {
	cpu, err := ctl.attached()
	if err != nil {
		return
	}

	ok = cpu.RemoveBreakpoint(address)
	return
}

// Breakpoints lists the breakpoints.
func (ctl *Controller) Breakpoints() (bps []vcpu.Breakpoint, err error) {
	cpu, err := ctl.attached()
	if err != nil {
		return
	}

	bps = cpu.Breakpoints()
	return
}

// Pause requests a pause. Pausing a paused CPU does nothing.
func (ctl *Controller) Pause() (err error) {
	cpu, err := ctl.attached()
	if err != nil {
		return
	}

	return cpu.Pause()
}

// Resume continues a paused CPU. Resuming a running CPU does nothing.
func (ctl *Controller) Resume() (err error) {
	cpu, err := ctl.attached()
	if err != nil {
		return
	}

	return cpu.Resume()
}

// ResumeAndWait resumes the CPU, and waits until it pauses or stops.
func (ctl *Controller) ResumeAndWait(ctx context.Context) (err error) {
	return ctl.settle(ctx, func(cpu *vcpu.Cpu) (err error) {
		if cpu.State() != vcpu.STATE_PAUSED {
			err = ErrNotPaused
			return
		}
		return cpu.Resume()
	})
}

func step(cpu *vcpu.Cpu) (err error) {
	switch cpu.State() {
	case vcpu.STATE_PAUSED:
		err = cpu.Step()
	case vcpu.STATE_STOPPED:
		err = vcpu.ErrStopped
	default:
		err = ErrNotPaused
	}
	return
}

// Step executes one instruction of a paused CPU.
func (ctl *Controller) Step() (err error) {
	cpu, err := ctl.attached()
	if err != nil {
		return
	}

	return step(cpu)
}

// StepAndWait steps a paused CPU, and waits until it pauses or stops.
func (ctl *Controller) StepAndWait(ctx context.Context) (err error) {
	return ctl.settle(ctx, step)
}

func inspectable(cpu *vcpu.Cpu) (err error) {
	if cpu.State() == vcpu.STATE_RUNNING {
		err = ErrRunning
	}
	return
}

// RegisterValue inspects a register of a CPU that is not running.
func (ctl *Controller) RegisterValue(reg vcpu.Register) (data RegisterData, err error) {
	cpu, err := ctl.attached()
	if err != nil {
		return
	}

	err = inspectable(cpu)
	if err != nil {
		return
	}

	data.Register = reg
	data.Value, err = cpu.RegisterValue(reg)
	if err != nil {
		return
	}

	if reg == vcpu.REG_C || reg == vcpu.REG_D {
		data.Pointer = true
		data.Target, err = cpu.AddressValue(data.Value)
		if err != nil {
			return
		}
	}

	ctl.mutex.Lock()
	observers := ctl.onRegisterValue
	ctl.mutex.Unlock()

	for _, fn := range observers {
		fn(data)
	}

	return
}

// AddressValue inspects a memory cell of a CPU that is not running.
func (ctl *Controller) AddressValue(address ternary.Word) (value ternary.Word, err error) {
	cpu, err := ctl.attached()
	if err != nil {
		return
	}

	err = inspectable(cpu)
	if err != nil {
		return
	}

	value, err = cpu.AddressValue(address)
	if err != nil {
		return
	}

	ctl.mutex.Lock()
	observers := ctl.onAddressValue
	ctl.mutex.Unlock()

	for _, fn := range observers {
		fn(address, value)
	}

	return
}
