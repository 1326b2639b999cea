// Package loader turns Malbolge source text into a loaded virtual memory.
package loader

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/ezrec/malbolge/cipher"
	"github.com/ezrec/malbolge/memory"
	"github.com/ezrec/malbolge/ternary"
	"github.com/ezrec/malbolge/translate"
)

var f = translate.From

var (
	ErrHint = errors.New(f("normalised hint must be one of auto, on or off"))
)

// Hint says whether source text is in normalised form.
type Hint int

const (
	HINT_AUTO = Hint(0) // auto
	HINT_ON   = Hint(1) // on
	HINT_OFF  = Hint(2) // off
)

func (h Hint) String() string {
	switch h {
	case HINT_ON:
		return "on"
	case HINT_OFF:
		return "off"
	}
	return "auto"
}

// Set parses a hint name, so a *Hint can be used as a command line flag.
func (h *Hint) Set(text string) (err error) {
	switch strings.ToLower(text) {
	case "auto", "":
		*h = HINT_AUTO
	case "on", "true", "yes":
		*h = HINT_ON
	case "off", "false", "no":
		*h = HINT_OFF
	default:
		err = ErrHint
	}
	return
}

// Type names the flag value type.
func (h *Hint) Type() string {
	return "hint"
}

// Normalised resolves the hint for a particular source.
func (h Hint) Normalised(source []byte) bool {
	switch h {
	case HINT_ON:
		return true
	case HINT_OFF:
		return false
	}
	return cipher.IsLikelyNormalised(source)
}

// Decode validates source and converts it to memory cells.
func Decode(source []byte, hint Hint) (program []ternary.Word, err error) {
	if hint.Normalised(source) {
		source, err = cipher.Denormalise(source)
		if err != nil {
			return
		}
	}

	// Normalise performs exactly the per character validation we need.
	_, err = cipher.Normalise(source)
	if err != nil {
		return
	}

	program = make([]ternary.Word, 0, len(source))
	for _, c := range source {
		if cipher.IsGraphical(int(c)) {
			program = append(program, ternary.Word(c))
		}
	}

	return
}

// Load reads all of r and loads it as a program.
func Load(r io.Reader, hint Hint) (mem *memory.Memory, err error) {
	source, err := io.ReadAll(r)
	if err != nil {
		return
	}

	program, err := Decode(source, hint)
	if err != nil {
		return
	}

	mem, err = memory.New(program)
	return
}

// LoadString loads a program from text.
func LoadString(text string, hint Hint) (mem *memory.Memory, err error) {
	return Load(strings.NewReader(text), hint)
}

// LoadFile loads a program from the named file.
func LoadFile(path string, hint Hint) (mem *memory.Memory, err error) {
	inf, err := os.Open(path)
	if err != nil {
		return
	}
	defer inf.Close()

	return Load(inf, hint)
}
