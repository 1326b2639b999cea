package vcpu

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/malbolge/cipher"
	"github.com/ezrec/malbolge/memory"
	"github.com/ezrec/malbolge/ternary"
)

func FuzzVcpu(f *testing.F) {
	f.Add([]byte{0, 1, 2, 3}, []byte("hi"))
	f.Add([]byte{7}, []byte{})
	f.Add([]byte{2, 2, 2, 4, 5, 6, 7}, []byte{0xff})

	f.Fuzz(func(t *testing.T, program []byte, input []byte) {
		assert := assert.New(t)

		if len(program) == 0 {
			return
		}

		cells := make([]ternary.Word, len(program))
		for n, value := range program {
			kind := cipher.KINDS[int(value)%len(cipher.KINDS)]
			cells[n] = ternary.Word(cipher.RawFor(kind, n))
		}

		mem, err := memory.New(cells)
		assert.NoError(err)

		cpu := New(mem)
		cpu.OnOutput(func(value byte) {})

		assert.NoError(cpu.AddInput(input))
		cpu.CloseInput()
		assert.NoError(cpu.Run())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		err = cpu.Wait(ctx)
		if err == context.DeadlineExceeded {
			cpu.Stop()
			err = cpu.Wait(context.Background())
			assert.ErrorIs(err, ErrCancelled)
		}

		assert.Equal(STATE_STOPPED, cpu.State())
		assert.Equal(err, cpu.Err())
		if err != nil && err != ErrCancelled {
			assert.ErrorIs(err, ErrInvalidInstruction{})
		}

		regs := cpu.Registers()
		assert.LessOrEqual(regs.A, ternary.WORD_MAX)
		assert.LessOrEqual(regs.C, ternary.WORD_MAX)
		assert.LessOrEqual(regs.D, ternary.WORD_MAX)
	})
}
