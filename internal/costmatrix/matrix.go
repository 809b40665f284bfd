// Package costmatrix derives substitution-cost tables from alphabet
// dictionaries and persists them in a compact little-endian binary format.
package costmatrix

import (
	"fmt"
	"math"
	"sort"

	"github.com/franz/fuga/internal/alphabet"
	"github.com/franz/fuga/internal/util"
)

// Matrix maps a pair of symbols to a substitution cost
type Matrix map[string]map[string]float32

// Mode selects the match value and mismatch sign of a matrix
type Mode string

const (
	// Global matrices are distances: 0 on the diagonal, |a-b| elsewhere
	Global Mode = "global"
	// Local matrices are similarities: 1 on the diagonal, -|a-b| elsewhere
	Local Mode = "local"
)

// ParseMode accepts a mode name; "approximate" is an alias of "local"
func ParseMode(s string) (Mode, error) {
	switch s {
	case "global":
		return Global, nil
	case "local", "approximate":
		return Local, nil
	}
	return "", fmt.Errorf("cost matrix mode %q: %w", s, util.ErrUnsupported)
}

// Params returns the match value and mismatch sign of the mode
func (m Mode) Params() (match, sign float64) {
	if m == Local {
		return 1, -1
	}
	return 0, 1
}

// Build computes the full symbol-by-symbol table for dict. The diagonal holds
// match; every other cell holds sign*|value(a)-value(b)| where value is the
// numeric value of the token the symbol encodes.
func Build(dict alphabet.Dictionary, match, sign float64) (Matrix, error) {
	values := make(map[string]float64, len(dict))
	for tok, sym := range dict {
		v, err := alphabet.Value(tok)
		if err != nil {
			return nil, fmt.Errorf("cost matrix: %w", err)
		}
		values[sym] = v
	}

	m := make(Matrix, len(values))
	for a, va := range values {
		row := make(map[string]float32, len(values))
		for b, vb := range values {
			if a == b {
				row[b] = float32(match)
				continue
			}
			row[b] = float32(sign * math.Abs(va-vb))
		}
		m[a] = row
	}
	return m, nil
}

// BuildMode is Build with the parameters of mode
func BuildMode(dict alphabet.Dictionary, mode Mode) (Matrix, error) {
	match, sign := mode.Params()
	return Build(dict, match, sign)
}

// Cost returns the cost of substituting a with b
func (m Matrix) Cost(a, b string) (float32, bool) {
	row, ok := m[a]
	if !ok {
		return 0, false
	}
	c, ok := row[b]
	return c, ok
}

// Symbols returns the row keys in sorted order
func (m Matrix) Symbols() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both matrices hold the same keys and values
func (m Matrix) Equal(o Matrix) bool {
	if len(m) != len(o) {
		return false
	}
	for a, row := range m {
		orow, ok := o[a]
		if !ok || len(row) != len(orow) {
			return false
		}
		for b, c := range row {
			oc, ok := orow[b]
			if !ok || c != oc {
				return false
			}
		}
	}
	return true
}

// Validate checks the structural properties of a matrix built in mode: it
// must be square and complete; global matrices have a constant zero-cost
// diagonal and non-negative cells; local matrices have a diagonal that
// strictly dominates its row and column.
func (m Matrix) Validate(mode Mode) error {
	match, _ := mode.Params()
	for a, row := range m {
		if len(row) != len(m) {
			return fmt.Errorf("%w: row %q has %d cells, want %d", util.ErrCorrupt, a, len(row), len(m))
		}
		diag, ok := row[a]
		if !ok {
			return fmt.Errorf("%w: row %q has no diagonal", util.ErrCorrupt, a)
		}
		if diag != float32(match) {
			return fmt.Errorf("%w: diagonal %q is %v, want %v", util.ErrCorrupt, a, diag, match)
		}
		for b, c := range row {
			if _, ok := m[b]; !ok {
				return fmt.Errorf("%w: column %q has no row", util.ErrCorrupt, b)
			}
			if a == b {
				continue
			}
			switch mode {
			case Global:
				if c < 0 {
					return fmt.Errorf("%w: cost %q/%q is negative", util.ErrCorrupt, a, b)
				}
			case Local:
				if c >= diag || m[b][a] >= m[b][b] {
					return fmt.Errorf("%w: cost %q/%q is not below the diagonal", util.ErrCorrupt, a, b)
				}
			}
		}
	}
	return nil
}
