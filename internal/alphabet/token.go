package alphabet

import (
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/franz/fuga/internal/util"
)

// RestMarker suffixes a token that was measured over a silence
const RestMarker = "r"

// TokenSeparator separates tokens in raw feature strings
const TokenSeparator = ";"

// Canonical returns the canonical spelling of a feature token: integers as
// "n", other rationals reduced as "a/b", a leading '+' dropped, and the rest
// marker kept as a suffix. "2/4" and "0.5" both become "1/2".
func Canonical(tok string) (string, error) {
	s := strings.TrimSpace(tok)
	rest := strings.HasSuffix(s, RestMarker)
	if rest {
		s = strings.TrimSuffix(s, RestMarker)
	}
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return "", fmt.Errorf("%w: %q", util.ErrInvalidToken, tok)
	}

	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return "", fmt.Errorf("%w: %q", util.ErrInvalidToken, tok)
	}
	c := r.RatString()
	if rest {
		c += RestMarker
	}
	return c, nil
}

// Value evaluates a token as a float64, ignoring any rest marker
func Value(tok string) (float64, error) {
	s := strings.TrimPrefix(StripRest(strings.TrimSpace(tok)), "+")
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, fmt.Errorf("%w: %q", util.ErrInvalidToken, tok)
	}
	f, _ := r.Float64()
	return f, nil
}

// StripRest removes the rest marker from a token
func StripRest(tok string) string {
	return strings.TrimSuffix(tok, RestMarker)
}

// ParseTokens splits a raw ";"-separated feature string into canonical
// tokens. Empty fields (including a trailing separator) are skipped.
// Compatibility forms such as fullwidth digits are folded by NFKC first.
func ParseTokens(raw string) ([]string, error) {
	fields := strings.Split(norm.NFKC.String(raw), TokenSeparator)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			continue
		}
		c, err := Canonical(f)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Normalizer applies the pre-lookup rules shared by dictionary construction
// and encoding: optional rest folding, then dropping of the ignore token.
type Normalizer struct {
	ignore    string
	hasIgnore bool
	foldRests bool
}

// NewNormalizer builds a normalizer. An empty ignore disables dropping.
func NewNormalizer(ignore string, foldRests bool) Normalizer {
	n := Normalizer{foldRests: foldRests}
	if ignore != "" {
		n.ignore = ignore
		n.hasIgnore = true
	}
	return n
}

// ForTrack returns the normalizer used for a track: pitch tracks drop the
// no-change interval unless keepNoChange is set, and rests are folded unless
// silences are considered.
func ForTrack(t Track, silences, keepNoChange bool) Normalizer {
	ignore := ""
	if tok, ok := t.NoChangeToken(); ok && !keepNoChange {
		ignore = tok
	}
	return NewNormalizer(ignore, !silences)
}

// Apply returns the token to look up and false when the token is dropped
func (n Normalizer) Apply(tok string) (string, bool) {
	if n.foldRests {
		tok = StripRest(tok)
	}
	if n.hasIgnore && tok == n.ignore {
		return "", false
	}
	return tok, true
}
