package alphabet

import "unicode"

const proteinLetters = "ACDEFGHIKLMNPQRSTVWY"

// ApproximateSize is the number of symbols in the approximate alphabet
const ApproximateSize = 222

// ProteinSymbols returns the 20 amino-acid letters in alphabetical order
func ProteinSymbols() []string {
	out := make([]string, 0, len(proteinLetters))
	for _, r := range proteinLetters {
		out = append(out, string(r))
	}
	return out
}

// PrintableSymbols returns ApproximateSize single-rune symbols. Letters and
// digits come first so frequent tokens get readable symbols, followed by
// ASCII punctuation, Latin-1 and Latin Extended-A. Quotes, whitespace and
// the token separator are excluded. So is the dash, since an encoded string
// starting with one would read as a flag on an engine command line.
func PrintableSymbols() []string {
	out := make([]string, 0, ApproximateSize)
	seen := make(map[rune]bool, ApproximateSize)
	add := func(r rune) {
		if len(out) == ApproximateSize || seen[r] {
			return
		}
		if r == '"' || r == '\'' || r == '`' || r == ' ' || r == ';' || r == '-' || !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return
		}
		seen[r] = true
		out = append(out, string(r))
	}

	for r := 'A'; r <= 'Z'; r++ {
		add(r)
	}
	for r := 'a'; r <= 'z'; r++ {
		add(r)
	}
	for r := '0'; r <= '9'; r++ {
		add(r)
	}
	for r := rune(0x21); r <= 0x7e; r++ {
		add(r)
	}
	for r := rune(0xa1); r <= 0x17f && len(out) < ApproximateSize; r++ {
		if r == 0xad {
			continue
		}
		add(r)
	}
	return out
}
