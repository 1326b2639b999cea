package memory

import (
	"errors"

	"github.com/ezrec/malbolge/translate"
)

var f = translate.From

var (
	ErrBounds         = errors.New(f("address out of bounds"))
	ErrProgramEmpty   = errors.New(f("program is empty"))
	ErrProgramTooLong = errors.New(f("program does not fit in memory"))
)
