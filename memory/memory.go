package memory

import (
	"errors"

	"github.com/ezrec/malbolge/cipher"
	"github.com/ezrec/malbolge/ternary"
)

const (
	SIZE = ternary.WORD_COUNT // Number of addressable cells.
)

// Memory is a fully defined, lazily extended, ternary memory.
type Memory struct {
	cells  [SIZE]ternary.Word
	length int

	// Cells below filled are materialized. base holds the load time values
	// of cells filled-2 and filled-1, which seed the next fill.
	filled int
	base   [2]ternary.Word
}

// New loads a program into the start of a new memory.
func New(program []ternary.Word) (mem *Memory, err error) {
	switch {
	case len(program) == 0:
		err = errors.Join(cipher.ErrParse, ErrProgramEmpty)
		return
	case len(program) > SIZE:
		err = errors.Join(cipher.ErrParse, ErrProgramTooLong)
		return
	}

	for _, value := range program {
		if value > ternary.WORD_MAX {
			err = ternary.ErrOverflow{Value: uint64(value), Width: ternary.WORD_WIDTH}
			return
		}
	}

	mem = &Memory{
		length: len(program),
		filled: len(program),
	}
	copy(mem.cells[:], program)

	mem.base[1] = program[len(program)-1]
	if len(program) > 1 {
		mem.base[0] = program[len(program)-2]
	}

	return
}

// fill materializes every cell up to and including addr.
func (mem *Memory) fill(addr int) {
	for ; mem.filled <= addr; mem.filled++ {
		value := mem.base[0].Op(mem.base[1])
		mem.cells[mem.filled] = value
		mem.base[0], mem.base[1] = mem.base[1], value
	}
}

func check(addr ternary.Word) (err error) {
	if int(addr) >= SIZE {
		err = ErrBounds
	}
	return
}

// Read returns the value at addr.
func (mem *Memory) Read(addr ternary.Word) (value ternary.Word, err error) {
	err = check(addr)
	if err != nil {
		return
	}

	mem.fill(int(addr))
	value = mem.cells[addr]
	return
}

// Write stores value at addr.
func (mem *Memory) Write(addr ternary.Word, value ternary.Word) (err error) {
	err = check(addr)
	if err != nil {
		return
	}

	if value > ternary.WORD_MAX {
		err = ternary.ErrOverflow{Value: uint64(value), Width: ternary.WORD_WIDTH}
		return
	}

	mem.fill(int(addr))
	mem.cells[addr] = value
	return
}

// Snapshot returns a copy of count cells starting at addr.
func (mem *Memory) Snapshot(addr ternary.Word, count int) (values []ternary.Word, err error) {
	err = check(addr)
	if err != nil {
		return
	}

	if count < 0 || int(addr)+count > SIZE {
		err = ErrBounds
		return
	}

	if count == 0 {
		values = []ternary.Word{}
		return
	}

	mem.fill(int(addr) + count - 1)
	values = make([]ternary.Word, count)
	copy(values, mem.cells[addr:])
	return
}

// Len returns the length of the loaded program.
func (mem *Memory) Len() int {
	return mem.length
}

// Size returns the number of addressable cells.
func (mem *Memory) Size() int {
	return SIZE
}

// Filled returns the number of materialized cells.
func (mem *Memory) Filled() int {
	return mem.filled
}
