package cipher

import (
	"github.com/ezrec/malbolge/ternary"
)

// encrypt is the post-execution substitution, indexed by (raw - 33) mod SIZE.
const encrypt = `5z]&gqtyfr$(we4{WP)H-Zn,[%\3dL+Q;>U!pJS72FhOA1CB6v^=I_0/8|jsb9m<.TVac` +
	"`" + `uY*MK'X~xDl}REokN:#?G"i@`

// CIPHER is the encrypt table indexed by raw mod SIZE.
var CIPHER [SIZE]byte

func init() {
	if len(encrypt) != SIZE {
		panic("cipher: encrypt table is not 94 characters")
	}
	for n := range SIZE {
		CIPHER[n] = encrypt[(n+SIZE-GRAPHICAL_LOW)%SIZE]
	}
}

// Encrypt returns the replacement for a cell that has just been executed.
func Encrypt(raw ternary.Word) ternary.Word {
	return ternary.Word(CIPHER[int(raw)%SIZE])
}
