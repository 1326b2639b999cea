package ternary

import (
	"fmt"
)

const (
	WORD_WIDTH = 10          // Trits in a Word.
	WORD_MAX   = Word(59048) // Largest Word, 3^10 - 1.
	WORD_COUNT = int(59049)  // Number of distinct Words.
	wordHigh   = Word(19683) // Place value of the most significant trit.
)

// Word is a ten trit unsigned integer.
type Word uint16

// NewWord converts an integer to a Word.
func NewWord(value int) (w Word, err error) {
	if value < 0 {
		err = ErrRange
		return
	}
	if value > int(WORD_MAX) {
		err = ErrOverflow{Value: uint64(value), Width: WORD_WIDTH}
		return
	}

	w = Word(value)
	return
}

// ParseWord parses up to ten [0-2] digits, most significant first.
func ParseWord(text string) (w Word, err error) {
	ts, err := ParseTritset(WORD_WIDTH, text)
	if err != nil {
		return
	}

	w = Word(ts.Value())
	return
}

// Tritset returns the ten trit tritset of w.
func (w Word) Tritset() Tritset {
	ts, _ := NewTritset(WORD_WIDTH, uint64(w%(WORD_MAX+1)))
	return ts
}

// Trit returns the trit at index i, where 0 is least significant.
func (w Word) Trit(i int) uint8 {
	for range i {
		w /= BASE
	}
	return uint8(w % BASE)
}

// Rotate returns w rotated right by one trit.
func (w Word) Rotate() Word {
	return w/BASE + (w%BASE)*wordHigh
}

// Op returns the crazy operation of w (row) against other (column).
func (w Word) Op(other Word) (result Word) {
	place := Word(1)
	for range WORD_WIDTH {
		result += Word(Crazy(uint8(w%BASE), uint8(other%BASE))) * place
		w /= BASE
		other /= BASE
		place *= BASE
	}
	return
}

// Next returns w+1, wrapping from WORD_MAX to 0.
func (w Word) Next() Word {
	if w >= WORD_MAX {
		return 0
	}
	return w + 1
}

// Mod returns w modulo n.
func (w Word) Mod(n int) int {
	return int(w) % n
}

// String returns the base 10 representation.
func (w Word) String() string {
	return fmt.Sprintf("%d", uint16(w))
}

// Format implements fmt.Formatter; the 't' verb prints the ten trits.
func (w Word) Format(s fmt.State, verb rune) {
	switch verb {
	case 't':
		fmt.Fprint(s, w.Tritset().String())
	case 'x', 'X', 'o', 'b', 'c', 'q', 'U':
		fmt.Fprintf(s, fmt.FormatString(s, verb), uint16(w))
	default:
		fmt.Fprintf(s, fmt.FormatString(s, 'd'), uint16(w))
	}
}
