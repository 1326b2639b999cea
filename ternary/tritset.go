package ternary

import (
	"strings"
)

const (
	BASE          = 3  // Trit number base.
	BITS_PER_TRIT = 2  // Bits used to pack a single trit.
	MAX_WIDTH     = 32 // Widest tritset that packs into 64 bits.

	tritMask = uint64(0b11)
)

// crazyTable is indexed [this][other].
var crazyTable = [BASE][BASE]uint8{
	{1, 0, 0},
	{1, 0, 2},
	{2, 2, 1},
}

// Crazy returns the crazy operation of two single trits.
func Crazy(this, other uint8) uint8 {
	return crazyTable[this%BASE][other%BASE]
}

// Tritset is a fixed width set of trits.
// The zero value is not usable; use NewTritset or ParseTritset.
type Tritset struct {
	width int
	bits  uint64
}

// MaxValue returns 3^width - 1.
func MaxValue(width int) (max uint64) {
	max = 1
	for range width {
		max *= BASE
	}
	max--
	return
}

func checkWidth(width int) (err error) {
	if width < 1 || width > MAX_WIDTH {
		err = ErrWidth
	}
	return
}

// NewTritset creates a tritset of width trits holding value.
func NewTritset(width int, value uint64) (ts Tritset, err error) {
	err = checkWidth(width)
	if err != nil {
		return
	}

	if value > MaxValue(width) {
		err = ErrOverflow{Value: value, Width: width}
		return
	}

	ts.width = width
	for i := 0; value != 0; i++ {
		ts.bits |= (value % BASE) << (i * BITS_PER_TRIT)
		value /= BASE
	}

	return
}

// ParseTritset parses a most-significant-first string of [0-2] digits.
// Strings shorter than width are zero extended.
func ParseTritset(width int, text string) (ts Tritset, err error) {
	err = checkWidth(width)
	if err != nil {
		return
	}

	if len(text) > width {
		err = ErrRange
		return
	}

	ts.width = width
	for n, c := range []byte(text) {
		if c < '0' || c > '2' {
			ts = Tritset{}
			err = ErrDigit(rune(text[n]))
			return
		}
		i := len(text) - 1 - n
		ts.bits |= uint64(c-'0') << (i * BITS_PER_TRIT)
	}

	return
}

// Width in trits.
func (ts Tritset) Width() int {
	return ts.width
}

// Trit returns the trit at index i, where 0 is least significant.
func (ts Tritset) Trit(i int) uint8 {
	return uint8((ts.bits >> (i * BITS_PER_TRIT)) & tritMask)
}

// Value returns the base 10 value.
func (ts Tritset) Value() (value uint64) {
	for i := ts.width - 1; i >= 0; i-- {
		value = value*BASE + uint64(ts.Trit(i))
	}
	return
}

// Rotate returns the tritset rotated right by one trit; the least
// significant trit becomes the most significant.
func (ts Tritset) Rotate() Tritset {
	low := ts.bits & tritMask
	ts.bits >>= BITS_PER_TRIT
	ts.bits |= low << ((ts.width - 1) * BITS_PER_TRIT)
	return ts
}

// Op applies the crazy operation trit by trit, with ts as the row operand.
func (ts Tritset) Op(other Tritset) (result Tritset, err error) {
	if ts.width != other.width {
		err = ErrWidth
		return
	}

	result.width = ts.width
	for i := range ts.width {
		trit := Crazy(ts.Trit(i), other.Trit(i))
		result.bits |= uint64(trit) << (i * BITS_PER_TRIT)
	}

	return
}

// String returns the digits, most significant first.
func (ts Tritset) String() string {
	var sb strings.Builder
	for i := ts.width - 1; i >= 0; i-- {
		sb.WriteByte('0' + ts.Trit(i))
	}
	return sb.String()
}
