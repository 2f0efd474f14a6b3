package special

import (
	"strings"

	"kanakanji/model"
)

// typeface maps ASCII letters and digits into the Mathematical
// Alphanumeric Symbols block. A zero digits base leaves digits unchanged.
type typeface struct {
	upper, lower, digits rune
	holes                map[rune]rune
}

var typefaces = []typeface{
	// bold
	{upper: 0x1D400, lower: 0x1D41A, digits: 0x1D7CE},
	// italic
	{upper: 0x1D434, lower: 0x1D44E, holes: map[rune]rune{'h': 0x210E}},
	// bold italic
	{upper: 0x1D468, lower: 0x1D482},
	// sans-serif bold
	{upper: 0x1D5D4, lower: 0x1D5EE, digits: 0x1D7EC},
	// monospace
	{upper: 0x1D670, lower: 0x1D68A, digits: 0x1D7F6},
	// double-struck
	{upper: 0x1D538, lower: 0x1D552, digits: 0x1D7D8, holes: map[rune]rune{
		'C': 0x2102, 'H': 0x210D, 'N': 0x2115, 'P': 0x2119, 'Q': 0x211A, 'R': 0x211D, 'Z': 0x2124,
	}},
}

func (f typeface) render(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if h, ok := f.holes[r]; ok {
			sb.WriteRune(h)
			continue
		}
		switch {
		case r >= 'A' && r <= 'Z':
			sb.WriteRune(f.upper + r - 'A')
		case r >= 'a' && r <= 'z':
			sb.WriteRune(f.lower + r - 'a')
		case r >= '0' && r <= '9' && f.digits != 0:
			sb.WriteRune(f.digits + r - '0')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// Typography renders ASCII letters and digits in styled typefaces such as
// bold 𝐀 or double-struck ℝ.
type Typography struct{}

func (Typography) Name() string { return NameTypography }

func (Typography) Candidates(in Input) []model.Candidate {
	text := in.Raw
	if !isAlnum(text) {
		text = in.Reading
	}
	if !isAlnum(text) {
		return nil
	}
	out := make([]model.Candidate, 0, len(typefaces))
	for _, f := range typefaces {
		if styled := f.render(text); styled != text {
			out = append(out, candidate(in.Reading, styled))
		}
	}
	return out
}
