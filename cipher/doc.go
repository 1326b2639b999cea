// Package cipher holds the fixed tables of the Malbolge instruction set.
//
// Two 94 entry tables drive the machine. The decode table maps
// (cell + address) mod 94 to an instruction, and the encrypt table replaces a
// cell after it has been executed. The same decode table lets a program be
// rewritten between its raw form and a normalised form, where every
// character is simply the name of the instruction it runs.
package cipher
