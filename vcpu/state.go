package vcpu

import (
	"strings"

	"github.com/ezrec/malbolge/ternary"
)

// State is the execution state of a Cpu.
type State int

const (
	STATE_READY   = State(0) // ready
	STATE_RUNNING = State(1) // running
	STATE_PAUSED  = State(2) // paused
	STATE_WAITING = State(3) // waiting
	STATE_STOPPED = State(4) // stopped
)

func (s State) String() string {
	switch s {
	case STATE_READY:
		return "ready"
	case STATE_RUNNING:
		return "running"
	case STATE_PAUSED:
		return "paused"
	case STATE_WAITING:
		return "waiting"
	case STATE_STOPPED:
		return "stopped"
	}
	return "unknown"
}

// Register names one of the CPU registers.
type Register int

const (
	REG_A = Register(0) // a
	REG_C = Register(1) // c
	REG_D = Register(2) // d
)

// REGISTERS lists every register.
var REGISTERS = []Register{REG_A, REG_C, REG_D}

func (r Register) String() string {
	switch r {
	case REG_A:
		return "a"
	case REG_C:
		return "c"
	case REG_D:
		return "d"
	}
	return "?"
}

// ParseRegister converts a register name to a Register.
func ParseRegister(name string) (reg Register, err error) {
	switch strings.ToLower(name) {
	case "a":
		reg = REG_A
	case "c":
		reg = REG_C
	case "d":
		reg = REG_D
	default:
		err = ErrRegister
	}
	return
}

// Registers is a snapshot of the register file.
type Registers struct {
	A ternary.Word
	C ternary.Word
	D ternary.Word
}

// Get returns the value of one register.
func (regs Registers) Get(reg Register) (value ternary.Word, err error) {
	switch reg {
	case REG_A:
		value = regs.A
	case REG_C:
		value = regs.C
	case REG_D:
		value = regs.D
	default:
		err = ErrRegister
	}
	return
}
