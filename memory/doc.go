// Package memory is the 59049 word virtual memory of the Malbolge machine.
//
// A program occupies the first Len() cells. Every later cell is defined by
// the recurrence mem[i] = Op(mem[i-2], mem[i-1]) over the values the cells
// held when the program was loaded, and is computed on first access. The
// two cells before address 0 are taken to be zero.
//
// Memory is not safe for concurrent use; the vcpu serializes access.
package memory
