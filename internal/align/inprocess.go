package align

import (
	"context"
	"fmt"
	"math"

	"github.com/franz/fuga/internal/alphabet"
	"github.com/franz/fuga/internal/costmatrix"
	"github.com/franz/fuga/internal/util"
)

// table is a dense copy of a cost matrix indexed by symbol position
type table struct {
	index map[rune]int
	costs [][]float64
}

func newTable(m costmatrix.Matrix) table {
	syms := m.Symbols()
	t := table{
		index: make(map[rune]int, len(syms)),
		costs: make([][]float64, len(syms)),
	}
	for i, s := range syms {
		t.index[[]rune(s)[0]] = i
	}
	for i, a := range syms {
		row := make([]float64, len(syms))
		for j, b := range syms {
			c, ok := m.Cost(a, b)
			if !ok {
				c = float32(math.NaN())
			}
			row[j] = float64(c)
		}
		t.costs[i] = row
	}
	return t
}

// substitution returns the cost of aligning symbol x against y. Symbols or
// pairs the matrix does not know cost the same as a gap.
func (t table) substitution(x, y int, gap float64) float64 {
	if x < 0 || y < 0 {
		return gap
	}
	c := t.costs[x][y]
	if math.IsNaN(c) {
		return gap
	}
	return c
}

func (t table) positions(s string) []int {
	out := make([]int, 0, len(s))
	for _, r := range s {
		i, ok := t.index[r]
		if !ok {
			i = -1
		}
		out = append(out, i)
	}
	return out
}

// InProcess computes global alignment distances with per-track cost
// matrices, without spawning processes
type InProcess struct {
	tables   map[alphabet.Track]table
	gap      float64
	truncate bool
}

// NewInProcess prepares an engine from a cost matrix set. Every matrix key
// must be a single rune and every matrix must price distances: no negative
// costs and no positive diagonal. Local (similarity) matrices are rejected.
func NewInProcess(set costmatrix.Set, gap float64) (*InProcess, error) {
	e := &InProcess{tables: make(map[alphabet.Track]table, len(set)), gap: gap}
	for track, m := range set {
		for _, s := range m.Symbols() {
			if len([]rune(s)) != 1 {
				return nil, fmt.Errorf("%s cost matrix key %q is not a single symbol", track, s)
			}
		}
		if err := checkDistanceMatrix(m); err != nil {
			return nil, fmt.Errorf("%w: %s cost matrix: %v", util.ErrInvalidConfig, track, err)
		}
		e.tables[track] = newTable(m)
	}
	return e, nil
}

func checkDistanceMatrix(m costmatrix.Matrix) error {
	for a, row := range m {
		for b, c := range row {
			if c < 0 {
				return fmt.Errorf("cost %q/%q is negative, use global cost maps", a, b)
			}
			if a == b && c > 0 {
				return fmt.Errorf("diagonal %q is %v, use global cost maps", a, c)
			}
		}
	}
	return nil
}

// SetTruncation makes every table cell drop its fractional part, as the
// legacy aligner does by passing float sums through an int minimum. Off by
// default.
func (e *InProcess) SetTruncation(on bool) {
	e.truncate = on
}

// Name implements Engine
func (e *InProcess) Name() string { return "inprocess" }

// Distance implements Engine
func (e *InProcess) Distance(ctx context.Context, a, b string, track alphabet.Track) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t, ok := e.tables[track]
	if !ok {
		return 0, fmt.Errorf("%w: no cost matrix for track %s", ErrInvocation, track)
	}
	return globalDistance(t.positions(a), t.positions(b), t, e.gap, e.truncate), nil
}

// globalDistance is the edit distance between x and y where substitutions
// are priced by t and insertions and deletions by gap. Only two columns of
// the dynamic-programming table are kept. With truncate, each computed cell
// is truncated toward zero; the border cells are not.
func globalDistance(x, y []int, t table, gap float64, truncate bool) float64 {
	prev := make([]float64, len(y)+1)
	cur := make([]float64, len(y)+1)
	for j := range prev {
		prev[j] = float64(j) * gap
	}

	for i := 1; i <= len(x); i++ {
		cur[0] = float64(i) * gap
		for j := 1; j <= len(y); j++ {
			sub := prev[j-1] + t.substitution(x[i-1], y[j-1], gap)
			del := prev[j] + gap
			ins := cur[j-1] + gap
			cur[j] = math.Min(sub, math.Min(del, ins))
			if truncate {
				cur[j] = math.Trunc(cur[j])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(y)]
}
