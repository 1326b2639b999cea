// Package vcpu implements the Malbolge virtual CPU.
//
// The CPU has three ternary registers: A (accumulator), C (code pointer) and
// D (data pointer). Each step decodes the cell at C, executes it, replaces
// the cell with its encrypted form, and advances C and D.
//
// Run starts a worker goroutine that executes until the program halts,
// fails, or is stopped. Control operations (Pause, Resume, Step, Stop,
// breakpoints, input) may be issued from any goroutine and take effect at
// the next instruction boundary. State changes, output bytes and breakpoint
// hits are delivered to registered observers on the worker goroutine, with
// no locks held. Observers must not block.
package vcpu
