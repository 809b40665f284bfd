// Package evaluate scores logged search attempts against ground truth,
// treating lines of the same score and lines within an alignment-distance
// threshold as equivalent answers.
package evaluate

import (
	"fmt"
	"sort"

	"github.com/franz/fuga/internal/alphabet"
	"github.com/franz/fuga/internal/store"
	"github.com/franz/fuga/internal/util"
)

// DefaultThreshold is the distance below which two lines are a near match
// on every track
const DefaultThreshold = 10.0

// Cutoffs are the K values of the reported Hit@K metrics
var Cutoffs = []int{1, 3, 5}

// Lookup finds a stored alignment in the given direction. *store.Store
// implements it.
type Lookup interface {
	LookupAlignment(id1, id2 string) (*store.Alignment, error)
}

// Evaluator decides result equivalence and aggregates retrieval metrics
type Evaluator struct {
	lines     map[string]*store.MelodicLine
	lookup        Lookup
	threshold     float64
	excludeFailed bool
	memo          map[string]bool
}

// New creates an evaluator over the corpus lines. A non-positive threshold
// is a configuration error.
func New(lines []*store.MelodicLine, lookup Lookup, threshold float64) (*Evaluator, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("%w: threshold must be positive, got %v", util.ErrInvalidConfig, threshold)
	}
	byID := make(map[string]*store.MelodicLine, len(lines))
	for _, l := range lines {
		byID[l.ID] = l
	}
	return &Evaluator{
		lines:     byID,
		lookup:    lookup,
		threshold: threshold,
		memo:      make(map[string]bool),
	}, nil
}

// SetExcludeFailed stops failed tracks (rate -1) from counting as below the
// threshold. Off by default, where -1 is compared like any other rate.
func (e *Evaluator) SetExcludeFailed(exclude bool) {
	if exclude != e.excludeFailed {
		e.excludeFailed = exclude
		e.memo = make(map[string]bool)
	}
}

// Threshold returns the near-match threshold
func (e *Evaluator) Threshold() float64 {
	return e.threshold
}

func (e *Evaluator) scoreOf(id string) string {
	if l, ok := e.lines[id]; ok && l.ScoreID != "" {
		return l.ScoreID
	}
	return store.ParseLineID(id).ScoreID
}

func (e *Evaluator) formOf(id string) string {
	if l, ok := e.lines[id]; ok && l.MusicalForm != "" {
		return l.MusicalForm
	}
	return store.ParseLineID(id).MusicalForm
}

// Equivalent reports whether candidate is an acceptable answer for a query
// whose ground truth is truth: both lines come from the same score, or an
// alignment of the pair (in either direction) is below the threshold on all
// three tracks. A failed track (-1) is below the threshold unless
// SetExcludeFailed is on.
func (e *Evaluator) Equivalent(truth, candidate string) (bool, error) {
	if truth == candidate || e.scoreOf(truth) == e.scoreOf(candidate) {
		return true, nil
	}

	key := store.PairKey(truth, candidate)
	if v, ok := e.memo[key]; ok {
		return v, nil
	}

	a, err := e.lookup.LookupAlignment(truth, candidate)
	if err != nil {
		return false, fmt.Errorf("lookup %s/%s: %w", truth, candidate, err)
	}
	if a == nil {
		if a, err = e.lookup.LookupAlignment(candidate, truth); err != nil {
			return false, fmt.Errorf("lookup %s/%s: %w", candidate, truth, err)
		}
	}

	near := a != nil
	for _, t := range alphabet.Tracks {
		if near && !e.withinThreshold(a.Rate(t)) {
			near = false
		}
	}
	e.memo[key] = near
	return near, nil
}

func (e *Evaluator) withinThreshold(rate float64) bool {
	if e.excludeFailed && rate < 0 {
		return false
	}
	return rate < e.threshold
}

// BestRank returns the smallest ranking position holding an equivalent
// candidate, or 0 when no returned candidate is equivalent
func (e *Evaluator) BestRank(a *store.SearchAttempt) (int, error) {
	results := make([]store.SearchResult, len(a.Results))
	copy(results, a.Results)
	sort.SliceStable(results, func(i, j int) bool { return results[i].Rank < results[j].Rank })

	for _, r := range results {
		if r.Rank < 1 {
			continue
		}
		ok, err := e.Equivalent(a.TargetLineID, r.LineID)
		if err != nil {
			return 0, err
		}
		if ok {
			return r.Rank, nil
		}
	}
	return 0, nil
}

// Evaluate computes metrics for every grouping
func (e *Evaluator) Evaluate(attempts []*store.SearchAttempt) (*Report, error) {
	acc := newAccumulator()
	for _, a := range attempts {
		best, err := e.BestRank(a)
		if err != nil {
			return nil, err
		}
		for _, g := range Groupings {
			acc.add(GroupKey{
				Grouping:   g,
				Algorithm:  a.Algorithm,
				SearchType: a.SearchType,
				Value:      e.dimension(g, a),
			}, best, a)
		}
	}

	return &Report{
		Threshold: e.threshold,
		Attempts:  len(attempts),
		Groups:    acc.groups(),
	}, nil
}

func (e *Evaluator) dimension(g Grouping, a *store.SearchAttempt) string {
	var v string
	switch g {
	case Overall:
		return "all"
	case ByInstrument:
		v = a.Instrument
	case ByMusicalForm:
		v = e.formOf(a.TargetLineID)
	case ByQueryLength:
		return LengthBucket(a.QueryLength())
	case ByScore:
		v = e.scoreOf(a.TargetLineID)
	}
	if v == "" {
		return "unknown"
	}
	return v
}
