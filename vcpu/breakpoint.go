package vcpu

import (
	"slices"

	"github.com/ezrec/malbolge/memory"
	"github.com/ezrec/malbolge/ternary"
)

// Breakpoint pauses the CPU before the instruction at Address executes,
// once Ignore further hits have been passed over.
type Breakpoint struct {
	Address ternary.Word
	Ignore  int
}

// AddBreakpoint sets a breakpoint at address, replacing any that was there.
func (cpu *Cpu) AddBreakpoint(address ternary.Word, ignore int) (err error) {
	if int(address) >= memory.SIZE {
		err = memory.ErrBounds
		return
	}
	if ignore < 0 {
		ignore = 0
	}

	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	cpu.breakpoints[address] = ignore
	return
}

// RemoveBreakpoint clears the breakpoint at address, and returns true if
// there was one.
func (cpu *Cpu) RemoveBreakpoint(address ternary.Word) (ok bool) {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	_, ok = cpu.breakpoints[address]
	delete(cpu.breakpoints, address)
	return
}

// Breakpoints returns the breakpoints in address order.
func (cpu *Cpu) Breakpoints() (bps []Breakpoint) {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	for address, ignore := range cpu.breakpoints {
		bps = append(bps, Breakpoint{Address: address, Ignore: ignore})
	}
	slices.SortFunc(bps, func(a, b Breakpoint) int {
		return int(a.Address) - int(b.Address)
	})
	return
}

// hitBreakpoint consumes a pass over the breakpoint at C, and returns true
// if execution must pause. Must be called with the lock held.
func (cpu *Cpu) hitBreakpoint() (hit bool) {
	ignore, ok := cpu.breakpoints[cpu.regs.C]
	if !ok {
		return
	}

	if ignore > 0 {
		cpu.breakpoints[cpu.regs.C] = ignore - 1
		return
	}

	hit = true
	return
}
