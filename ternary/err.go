package ternary

import (
	"errors"

	"github.com/ezrec/malbolge/translate"
)

var f = translate.From

var (
	ErrRange = errors.New(f("value out of range"))
	ErrWidth = errors.New(f("tritset width invalid"))
)

// ErrDigit is returned when parsing a character that is not a trit.
type ErrDigit rune

func (ed ErrDigit) Error() string {
	return f("'%c' is not a ternary digit", rune(ed))
}

func (ed ErrDigit) Is(err error) bool {
	return err == ErrRange
}

// ErrOverflow is returned when a value does not fit in Width trits.
type ErrOverflow struct {
	Value uint64
	Width int
}

func (eo ErrOverflow) Error() string {
	return f("%v does not fit in %v trits", eo.Value, eo.Width)
}

func (eo ErrOverflow) Is(err error) bool {
	return err == ErrRange
}
