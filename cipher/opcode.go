package cipher

import (
	"github.com/ezrec/malbolge/ternary"
)

const (
	SIZE           = 94  // Number of graphical ASCII characters.
	GRAPHICAL_LOW  = 33  // '!'
	GRAPHICAL_HIGH = 126 // '~'
)

// Kind is a decoded instruction.
type Kind int

const (
	OP_INVALID = Kind(0) // invalid
	OP_JMP     = Kind(1) // jmp
	OP_OUT     = Kind(2) // out
	OP_IN      = Kind(3) // in
	OP_ROTATE  = Kind(4) // rotate
	OP_MOVD    = Kind(5) // movd
	OP_OP      = Kind(6) // op
	OP_NOP     = Kind(7) // nop
	OP_HALT    = Kind(8) // halt
)

// KINDS lists every valid instruction.
var KINDS = []Kind{OP_JMP, OP_OUT, OP_IN, OP_ROTATE, OP_MOVD, OP_OP, OP_NOP, OP_HALT}

// opcodeIndex is the decode index of each valid instruction.
var opcodeIndex = map[Kind]int{
	OP_JMP:    4,
	OP_OUT:    5,
	OP_IN:     23,
	OP_ROTATE: 39,
	OP_MOVD:   40,
	OP_OP:     62,
	OP_NOP:    68,
	OP_HALT:   81,
}

// normalised is the conventional one character name of each instruction.
var normalised = map[Kind]byte{
	OP_JMP:    'i',
	OP_OUT:    '<',
	OP_IN:     '/',
	OP_ROTATE: '*',
	OP_MOVD:   'j',
	OP_OP:     'p',
	OP_NOP:    'o',
	OP_HALT:   'v',
}

// opcodeOf is the decode table, indexed by (raw + address) mod SIZE.
var opcodeOf [SIZE]Kind

// kindOf maps a normalised character back to its instruction.
var kindOf [256]Kind

func init() {
	for kind, index := range opcodeIndex {
		opcodeOf[index] = kind
		kindOf[normalised[kind]] = kind
	}
}

// Index returns the decode index of a raw cell executed at address.
func Index(raw ternary.Word, address ternary.Word) int {
	return (int(raw) + int(address)) % SIZE
}

// OpcodeOf returns the instruction for a decode index.
func OpcodeOf(index int) Kind {
	if index < 0 || index >= SIZE {
		return OP_INVALID
	}
	return opcodeOf[index]
}

// Decode returns the instruction a raw cell runs when executed at address.
func Decode(raw ternary.Word, address ternary.Word) (kind Kind, index int) {
	index = Index(raw, address)
	kind = opcodeOf[index]
	return
}

// Valid returns true for every kind other than OP_INVALID.
func (k Kind) Valid() bool {
	return k > OP_INVALID && k <= OP_HALT
}

// Index returns the decode index of the instruction, or -1.
func (k Kind) Index() int {
	index, ok := opcodeIndex[k]
	if !ok {
		return -1
	}
	return index
}

// Normalised returns the normalised character of the instruction, or 0.
func (k Kind) Normalised() byte {
	return normalised[k]
}

// FromNormalised returns the instruction a normalised character names.
func FromNormalised(c byte) Kind {
	return kindOf[c]
}

func (k Kind) String() string {
	switch k {
	case OP_JMP:
		return "jmp"
	case OP_OUT:
		return "out"
	case OP_IN:
		return "in"
	case OP_ROTATE:
		return "rotate"
	case OP_MOVD:
		return "movd"
	case OP_OP:
		return "op"
	case OP_NOP:
		return "nop"
	case OP_HALT:
		return "halt"
	}
	return "invalid"
}

// IsGraphical returns true if c is in the graphical ASCII range [33, 126].
func IsGraphical(c int) bool {
	return c >= GRAPHICAL_LOW && c <= GRAPHICAL_HIGH
}
