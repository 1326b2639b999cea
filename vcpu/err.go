package vcpu

import (
	"errors"

	"github.com/ezrec/malbolge/ternary"
	"github.com/ezrec/malbolge/translate"
)

var f = translate.From

var (
	ErrCancelled   = errors.New(f("cancelled"))
	ErrAlreadyRun  = errors.New(f("vcpu has already been run"))
	ErrNotRunning  = errors.New(f("vcpu is not running"))
	ErrStopped     = errors.New(f("vcpu is stopped"))
	ErrInputClosed = errors.New(f("input is closed"))
	ErrRegister    = errors.New(f("register invalid"))
)

// ErrInvalidInstruction is the failure of a run that decoded an invalid
// instruction.
type ErrInvalidInstruction struct {
	Address ternary.Word
	Index   int
}

func (err ErrInvalidInstruction) Error() string {
	return f("invalid instruction at %v (index %v)", err.Address, err.Index)
}

// Is matches any ErrInvalidInstruction.
func (err ErrInvalidInstruction) Is(target error) (ok bool) {
	_, ok = target.(ErrInvalidInstruction)
	return
}
