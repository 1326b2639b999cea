package debugger

import (
	"errors"

	"github.com/ezrec/malbolge/translate"
)

var f = translate.From

var (
	ErrAlreadyAttached = errors.New(f("debugger already attached"))
	ErrNotAttached     = errors.New(f("debugger not attached"))
	ErrRunning         = errors.New(f("program is running"))
	ErrNotPaused       = errors.New(f("program is not paused"))
)
