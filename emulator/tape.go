package emulator

import (
	"bufio"
	"errors"
	"io"
	"sync"

	"github.com/ezrec/malbolge/vcpu"
)

const (
	TAPE_CHUNK = 256 // Largest single read from the input tape.
)

// Tape connects the CPU's input and output to byte streams.
type Tape struct {
	Input  io.Reader
	Output io.Writer

	mutex    sync.Mutex
	writer   *bufio.Writer
	writeErr error
}

// receive copies Input to the CPU until end of file, then closes the CPU's
// input. A read error is sent to fail. It does not return until the reader
// does.
func (tc *Tape) receive(cpu *vcpu.Cpu, fail chan<- error) {
	var buf [TAPE_CHUNK]byte
	for {
		n, err := tc.Input.Read(buf[:])
		if n > 0 {
			if cpu.AddInput(buf[:n]) != nil {
				return
			}
		}
		if errors.Is(err, io.EOF) {
			cpu.CloseInput()
			return
		}
		if err != nil {
			fail <- err
			return
		}
	}
}

// send buffers one output byte.
func (tc *Tape) send(value byte) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if tc.writer == nil || tc.writeErr != nil {
		return
	}

	tc.writeErr = tc.writer.WriteByte(value)
}

// flush writes out buffered output.
func (tc *Tape) flush() (err error) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if tc.writer == nil {
		return
	}

	if tc.writeErr == nil {
		tc.writeErr = tc.writer.Flush()
	}

	err = tc.writeErr
	return
}

// bind attaches the tape to cpu.
func (tc *Tape) bind(cpu *vcpu.Cpu) {
	if tc.Output != nil {
		tc.writer = bufio.NewWriter(tc.Output)
		cpu.OnOutput(tc.send)
	}

	// Flush whenever the program may be waiting on its user.
	cpu.OnState(func(old vcpu.State, new vcpu.State, err error) {
		switch new {
		case vcpu.STATE_WAITING, vcpu.STATE_PAUSED, vcpu.STATE_STOPPED:
			_ = tc.flush()
		}
	})
}
