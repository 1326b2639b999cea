package cipher

import (
	"errors"

	"github.com/ezrec/malbolge/translate"
)

var f = translate.From

var (
	// Parse errors
	ErrParse              = errors.New(f("parse error"))
	ErrNotGraphical       = errors.New(f("non-whitespace character must be graphical ASCII"))
	ErrInstructionInvalid = errors.New(f("invalid instruction in program"))
	ErrNotNormalised      = errors.New(f("character is not a normalised instruction"))
)

// ErrSyntax locates a parse failure in the source text.
type ErrSyntax struct {
	Line   int
	Column int
	Char   byte
	Err    error
}

func (err *ErrSyntax) Error() string {
	return f("line %d column %d (%d) %v", err.Line, err.Column, err.Char, err.Err)
}

func (err *ErrSyntax) Unwrap() []error {
	return []error{ErrParse, err.Err}
}

var errStopScan = errors.New("stop scan")
