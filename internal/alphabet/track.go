package alphabet

import (
	"fmt"
	"strings"

	"github.com/franz/fuga/internal/util"
)

// Track names one of the three feature sequences of a melodic line
type Track string

const (
	Chromatic Track = "chromatic"
	Diatonic  Track = "diatonic"
	Rhythmic  Track = "rhythmic"
)

// Tracks lists the feature tracks in their canonical order
var Tracks = []Track{Chromatic, Diatonic, Rhythmic}

// ParseTrack accepts a track name; "rhythm" is an alias of "rhythmic"
func ParseTrack(s string) (Track, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chromatic":
		return Chromatic, nil
	case "diatonic":
		return Diatonic, nil
	case "rhythmic", "rhythm":
		return Rhythmic, nil
	}
	return "", fmt.Errorf("track %q: %w", s, util.ErrUnsupported)
}

// NoChangeToken returns the interval that means "pitch did not move" for
// pitch tracks. Rhythm has none.
func (t Track) NoChangeToken() (string, bool) {
	switch t {
	case Chromatic:
		return "0", true
	case Diatonic:
		return "1", true
	}
	return "", false
}

// Regime selects the symbol alphabet used for encoding
type Regime string

const (
	// Exact regime encodes with the 20 protein letters so sequences can be
	// fed to protein-alignment tooling
	Exact Regime = "exact"
	// Approximate regime encodes with a wider printable alphabet
	Approximate Regime = "approximate"
)

// ParseRegime accepts a regime name; "blast" is an alias of "exact"
func ParseRegime(s string) (Regime, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exact", "blast":
		return Exact, nil
	case "approximate", "approx":
		return Approximate, nil
	}
	return "", fmt.Errorf("regime %q: %w", s, util.ErrUnsupported)
}

// Symbols returns the ordered symbol alphabet of the regime
func (r Regime) Symbols() []string {
	if r == Exact {
		return ProteinSymbols()
	}
	return PrintableSymbols()
}

// DefaultTop is the dictionary size used when none is configured: the
// whole alphabet
func (r Regime) DefaultTop() int {
	return len(r.Symbols())
}
