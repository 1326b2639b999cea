package emulator

import (
	"github.com/ezrec/malbolge/translate"
)

var f = translate.From

// ErrRuntime indicates where a run failed.
type ErrRuntime struct {
	Steps uint64
	Err   error
}

func (err *ErrRuntime) Error() string {
	return f("step %d %v", err.Steps, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}
