// Package script runs debugger scripts against a Malbolge program.
//
// Scripts are Starlark. The predeclared functions are:
//
//	add_breakpoint(address, ignore_count=0)
//	remove_breakpoint(address) -> bool
//	run(max_runtime_ms=0)
//	resume()
//	step()
//	address_value(address) -> int
//	register_value(reg) -> int
//	on_input(data)
//
// A script must call run exactly once, and may not call resume or step
// before it. run, resume and step block until the program pauses or stops.
// If max_runtime_ms is set, the program is stopped once that much time has
// passed without reaching a breakpoint; this is not an error. When the
// script ends, the program input is closed and a paused program is resumed
// and allowed to finish. Top level if and for statements are allowed.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/malbolge/debugger"
	"github.com/ezrec/malbolge/memory"
	"github.com/ezrec/malbolge/metrics"
	"github.com/ezrec/malbolge/ternary"
	"github.com/ezrec/malbolge/translate"
	"github.com/ezrec/malbolge/vcpu"
)

var f = translate.From

var (
	ErrNoRun       = errors.New(f("script must call run"))
	ErrMultipleRun = errors.New(f("script may only call run once"))
	ErrRunRequired = errors.New(f("step or resume called before run"))
)

// Runner executes debugger scripts.
type Runner struct {
	Verbose bool             // Set to enable verbose logging.
	Metrics *metrics.Metrics // Optional vcpu collectors.

	Output io.Writer // Receives program output, if set.
	Print  io.Writer // Receives script print() output; defaults to the log.

	OnRegisterValue debugger.RegisterValueFunc // Optional inspection observer.
	OnAddressValue  debugger.AddressValueFunc  // Optional inspection observer.
}

// session is the state of one script execution.
type session struct {
	runner *Runner
	ctx    context.Context
	ctl    *debugger.Controller
	cpu    *vcpu.Cpu

	ran bool

	mutex    sync.Mutex
	timer    *time.Timer
	timedOut bool
}

// Run executes the script src against a new CPU loaded with mem, and
// returns when the program has finished.
func (r *Runner) Run(ctx context.Context, mem *memory.Memory, filename string, src any) (err error) {
	s := &session{
		runner: r,
		ctx:    ctx,
		ctl:    debugger.New(),
		cpu:    vcpu.New(mem),
	}

	s.cpu.Verbose = r.Verbose
	s.cpu.Metrics = r.Metrics
	s.ctl.Verbose = r.Verbose

	err = s.ctl.Attach(s.cpu)
	if err != nil {
		return
	}

	defer func() {
		s.stopTimer()
		s.cpu.Stop()
		<-s.cpu.Done()
	}()

	if r.Output != nil {
		s.cpu.OnOutput(func(value byte) {
			_, _ = r.Output.Write([]byte{value})
		})
	}
	if r.OnRegisterValue != nil {
		s.ctl.OnRegisterValue(r.OnRegisterValue)
	}
	if r.OnAddressValue != nil {
		s.ctl.OnAddressValue(r.OnAddressValue)
	}
	s.cpu.OnBreakpoint(func(address ternary.Word, regs vcpu.Registers) {
		s.stopTimer()
	})

	thread := &starlark.Thread{
		Name: "script",
		Print: func(thread *starlark.Thread, msg string) {
			if r.Print != nil {
				fmt.Fprintln(r.Print, msg)
			} else {
				log.Printf("script: %v", msg)
			}
		},
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	opts := syntax.FileOptions{
		TopLevelControl: true,
		GlobalReassign:  true,
	}
	_, err = starlark.ExecFileOptions(&opts, thread, filename, src, s.predeclared())
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return
	}

	if !s.ran {
		err = ErrNoRun
		return
	}

	// No more on_input calls can follow.
	s.cpu.CloseInput()

	if s.cpu.State() == vcpu.STATE_PAUSED {
		err = s.ctl.Resume()
		if err != nil {
			return
		}
	}

	err = s.ctl.Wait(ctx)
	err = s.result(err)
	return
}

// result filters the cancellation caused by a runtime timeout.
func (s *session) result(err error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.timedOut && errors.Is(err, vcpu.ErrCancelled) {
		return nil
	}
	return err
}

func (s *session) startTimer(ms int) {
	if ms <= 0 {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.timer = time.AfterFunc(time.Duration(ms)*time.Millisecond, func() {
		s.mutex.Lock()
		s.timedOut = true
		s.mutex.Unlock()

		if s.runner.Verbose {
			log.Printf("script: runtime limit reached")
		}
		s.cpu.Stop()
	})
}

func (s *session) stopTimer() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// settled checks the CPU after a blocking command. A failed run is an
// error; a stopped or cancelled one is not.
func (s *session) settled(err error) (starlark.Value, error) {
	if err == nil && s.cpu.State() == vcpu.STATE_STOPPED {
		err = s.result(s.cpu.Err())
	}
	if errors.Is(err, vcpu.ErrCancelled) {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func toWord(fnname string, value int) (w ternary.Word, err error) {
	w, err = ternary.NewWord(value)
	if err != nil {
		err = fmt.Errorf("%s: %w", fnname, err)
	}
	return
}

func (s *session) predeclared() starlark.StringDict {
	return starlark.StringDict{
		"add_breakpoint":    starlark.NewBuiltin("add_breakpoint", s.addBreakpoint),
		"remove_breakpoint": starlark.NewBuiltin("remove_breakpoint", s.removeBreakpoint),
		"run":               starlark.NewBuiltin("run", s.run),
		"resume":            starlark.NewBuiltin("resume", s.resume),
		"step":              starlark.NewBuiltin("step", s.step),
		"address_value":     starlark.NewBuiltin("address_value", s.addressValue),
		"register_value":    starlark.NewBuiltin("register_value", s.registerValue),
		"on_input":          starlark.NewBuiltin("on_input", s.onInput),
	}
}

func (s *session) addBreakpoint(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var address, ignore int
	err := starlark.UnpackArgs(b.Name(), args, kwargs, "address", &address, "ignore_count?", &ignore)
	if err != nil {
		return nil, err
	}

	w, err := toWord(b.Name(), address)
	if err != nil {
		return nil, err
	}

	err = s.ctl.AddBreakpoint(w, ignore)
	if err != nil {
		return nil, err
	}

	return starlark.None, nil
}

func (s *session) removeBreakpoint(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var address int
	err := starlark.UnpackArgs(b.Name(), args, kwargs, "address", &address)
	if err != nil {
		return nil, err
	}

	w, err := toWord(b.Name(), address)
	if err != nil {
		return nil, err
	}

	ok, err := s.ctl.RemoveBreakpoint(w)
	if err != nil {
		return nil, err
	}

	return starlark.Bool(ok), nil
}

func (s *session) run(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var ms int
	err := starlark.UnpackArgs(b.Name(), args, kwargs, "max_runtime_ms?", &ms)
	if err != nil {
		return nil, err
	}

	if s.ran {
		return nil, ErrMultipleRun
	}
	s.ran = true

	s.startTimer(ms)
	return s.settled(s.ctl.RunAndWait(s.ctx))
}

func (s *session) resume(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	err := starlark.UnpackArgs(b.Name(), args, kwargs)
	if err != nil {
		return nil, err
	}

	if !s.ran {
		return nil, ErrRunRequired
	}

	if s.cpu.State() != vcpu.STATE_PAUSED {
		return starlark.None, nil
	}

	return s.settled(s.ctl.ResumeAndWait(s.ctx))
}

func (s *session) step(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	err := starlark.UnpackArgs(b.Name(), args, kwargs)
	if err != nil {
		return nil, err
	}

	if !s.ran {
		return nil, ErrRunRequired
	}

	if s.cpu.State() != vcpu.STATE_PAUSED {
		return starlark.None, nil
	}

	return s.settled(s.ctl.StepAndWait(s.ctx))
}

func (s *session) addressValue(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var address int
	err := starlark.UnpackArgs(b.Name(), args, kwargs, "address", &address)
	if err != nil {
		return nil, err
	}

	w, err := toWord(b.Name(), address)
	if err != nil {
		return nil, err
	}

	value, err := s.ctl.AddressValue(w)
	if err != nil {
		return nil, err
	}

	return starlark.MakeInt(int(value)), nil
}

func (s *session) registerValue(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	err := starlark.UnpackArgs(b.Name(), args, kwargs, "reg", &name)
	if err != nil {
		return nil, err
	}

	reg, err := vcpu.ParseRegister(name)
	if err != nil {
		return nil, err
	}

	data, err := s.ctl.RegisterValue(reg)
	if err != nil {
		return nil, err
	}

	return starlark.MakeInt(int(data.Value)), nil
}

func (s *session) onInput(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var data string
	err := starlark.UnpackArgs(b.Name(), args, kwargs, "data", &data)
	if err != nil {
		return nil, err
	}

	err = s.ctl.AddInput([]byte(data))
	if err != nil {
		return nil, err
	}

	return starlark.None, nil
}
