// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package emulator runs a Malbolge program to completion over byte streams.
package emulator

import (
	"context"
	"errors"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/ezrec/malbolge/memory"
	"github.com/ezrec/malbolge/vcpu"
)

// Emulator state. CPU + tape.
type Emulator struct {
	Verbose   bool // If set, enables verbose logging.
	*vcpu.Cpu      // Reference to the CPU.

	Tape Tape // Tape IO channel.
}

// NewEmulator creates a new emulator over a loaded memory.
func NewEmulator(mem *memory.Memory) (emu *Emulator) {
	emu = &Emulator{
		Cpu: vcpu.New(mem),
	}

	return
}

// Run executes the program until it halts, fails, or ctx is done. A failed
// run is returned as an *ErrRuntime.
func (emu *Emulator) Run(ctx context.Context) (err error) {
	cpu := emu.Cpu
	cpu.Verbose = emu.Verbose

	emu.Tape.bind(cpu)

	inputErr := make(chan error, 1)
	if emu.Tape.Input != nil {
		// Not part of the group, as a blocked reader cannot be interrupted.
		go emu.Tape.receive(cpu, inputErr)
	} else {
		cpu.CloseInput()
	}

	if emu.Verbose {
		log.Printf("emulator: run")
	}

	err = cpu.Run()
	if err != nil {
		return
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		select {
		case <-cpu.Done():
		case err = <-inputErr:
			cpu.Stop()
		case <-gctx.Done():
			cpu.Stop()
		}
		return
	})

	g.Go(func() (err error) {
		err = cpu.Wait(context.Background())
		if errors.Is(err, vcpu.ErrCancelled) {
			err = nil
		}
		if err != nil {
			err = &ErrRuntime{Steps: cpu.Steps(), Err: err}
		}
		return
	})

	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = emu.Tape.flush()
	}

	if emu.Verbose {
		log.Printf("emulator: %v steps, %v", cpu.Steps(), err)
	}

	return
}
