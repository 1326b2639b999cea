// Package ternary implements the base-3 number model of the Malbolge virtual
// machine.
//
// A Tritset is a fixed width sequence of trits, packed two bits per trit.
// A Word is the ten trit unsigned integer used for every register and memory
// cell, in the range [0, 59048]. Both support the one trit right rotation and
// the digit-wise "crazy" operation that Malbolge uses in place of arithmetic.
package ternary
