package cipher

const (
	// LIKELY_SAMPLE is the number of leading instructions inspected by
	// IsLikelyNormalised.
	LIKELY_SAMPLE = 16
)

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// scan calls fn for each non-whitespace character of source, with its
// instruction position and source location.
func scan(source []byte, fn func(c byte, position int, line int, column int) error) (err error) {
	line, column := 1, 1
	position := 0
	for _, c := range source {
		if isSpace(c) {
			if c == '\n' {
				line++
				column = 1
			} else {
				column++
			}
			continue
		}
		err = fn(c, position, line, column)
		if err != nil {
			return
		}
		position++
		column++
	}
	return
}

// Validate checks that c is a valid raw instruction at position.
func Validate(c byte, position int) (kind Kind, err error) {
	if !IsGraphical(int(c)) {
		err = ErrNotGraphical
		return
	}

	kind = OpcodeOf((int(c) + position) % SIZE)
	if !kind.Valid() {
		err = ErrInstructionInvalid
	}

	return
}

// Normalise rewrites raw program source so that each character is the name
// of the instruction it decodes to. Whitespace is removed.
func Normalise(source []byte) (normal []byte, err error) {
	normal = make([]byte, 0, len(source))
	err = scan(source, func(c byte, position int, line int, column int) (err error) {
		kind, err := Validate(c, position)
		if err != nil {
			return &ErrSyntax{Line: line, Column: column, Char: c, Err: err}
		}
		normal = append(normal, kind.Normalised())
		return
	})
	if err != nil {
		normal = nil
	}
	return
}

// Denormalise is the inverse of Normalise; it rewrites normalised source so
// that it can be loaded and executed. Whitespace is ignored.
func Denormalise(source []byte) (raw []byte, err error) {
	raw = make([]byte, 0, len(source))
	err = scan(source, func(c byte, position int, line int, column int) (err error) {
		kind := FromNormalised(c)
		if !kind.Valid() {
			return &ErrSyntax{Line: line, Column: column, Char: c, Err: ErrNotNormalised}
		}
		raw = append(raw, RawFor(kind, position))
		return
	})
	if err != nil {
		raw = nil
	}
	return
}

// RawFor returns the graphical character that decodes to kind at position.
func RawFor(kind Kind, position int) byte {
	c := (kind.Index() - position%SIZE + SIZE) % SIZE
	if c < GRAPHICAL_LOW {
		c += SIZE
	}
	return byte(c)
}

// IsLikelyNormalised guesses whether source is normalised by sampling its
// first LIKELY_SAMPLE instructions. A raw program made only of instruction
// names is indistinguishable, so this is never a substitute for validation.
// Empty source is reported as normalised.
func IsLikelyNormalised(source []byte) bool {
	sampled := 0
	err := scan(source, func(c byte, position int, line int, column int) error {
		if sampled == LIKELY_SAMPLE {
			return errStopScan
		}
		if !FromNormalised(c).Valid() {
			return ErrNotNormalised
		}
		sampled++
		return nil
	})

	return err == nil || err == errStopScan
}
