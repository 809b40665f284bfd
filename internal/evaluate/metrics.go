package evaluate

import (
	"fmt"
	"sort"

	"github.com/franz/fuga/internal/store"
)

// Grouping is a dimension attempts are partitioned by
type Grouping string

const (
	Overall       Grouping = "overall"
	ByInstrument  Grouping = "instrument"
	ByMusicalForm Grouping = "musical_form"
	ByQueryLength Grouping = "query_length"
	ByScore       Grouping = "score"
)

// Groupings lists every grouping in report order
var Groupings = []Grouping{Overall, ByInstrument, ByMusicalForm, ByQueryLength, ByScore}

// GroupKey identifies one group. Every group is split by algorithm and
// search type so different search configurations are never mixed.
type GroupKey struct {
	Grouping   Grouping `json:"grouping"`
	Algorithm  string   `json:"algorithm"`
	SearchType string   `json:"search_type"`
	Value      string   `json:"value"`
}

// TimingAverages holds mean resource usage per attempt, in milliseconds
type TimingAverages struct {
	FeatureUserMs     float64 `json:"fe_user_ms"`
	FeatureSystemMs   float64 `json:"fe_system_ms"`
	FeatureClockMs    float64 `json:"fe_clock_ms"`
	AlignmentUserMs   float64 `json:"alignment_user_ms"`
	AlignmentSystemMs float64 `json:"alignment_system_ms"`
	AlignmentClockMs  float64 `json:"alignment_clock_ms"`
}

// Group holds the metrics of one group
type Group struct {
	Key      GroupKey        `json:"key"`
	Attempts int             `json:"attempts"`
	Hits     map[int]int     `json:"hits"`
	HitRate  map[int]float64 `json:"hit_rate"`
	MRR      float64         `json:"mrr"`
	Timing   *TimingAverages `json:"timing,omitempty"`

	reciprocal float64
	timingSum  store.Timing
}

// Report is the result of an evaluation
type Report struct {
	Threshold float64  `json:"threshold"`
	Attempts  int      `json:"attempts"`
	Groups    []*Group `json:"groups"`
}

// ByGrouping returns the groups of one grouping in report order
func (r *Report) ByGrouping(g Grouping) []*Group {
	var out []*Group
	for _, grp := range r.Groups {
		if grp.Key.Grouping == g {
			out = append(out, grp)
		}
	}
	return out
}

// Find returns the group with the given key, or nil
func (r *Report) Find(key GroupKey) *Group {
	for _, grp := range r.Groups {
		if grp.Key == key {
			return grp
		}
	}
	return nil
}

// LengthBucket labels a query length. Buckets are five tokens wide between
// 10 and 50 and include their upper bound: 15 is "10-15", 16 is "15-20".
func LengthBucket(n int) string {
	switch {
	case n < 10:
		return "<10"
	case n > 50:
		return ">50"
	case n <= 15:
		return "10-15"
	}
	lo := ((n - 1) / 5) * 5
	return fmt.Sprintf("%d-%d", lo, lo+5)
}

// bucketOrder sorts bucket labels numerically
func bucketOrder(label string) int {
	switch label {
	case "<10":
		return 0
	case ">50":
		return 100
	}
	var lo, hi int
	if _, err := fmt.Sscanf(label, "%d-%d", &lo, &hi); err != nil {
		return 101
	}
	return lo
}

type accumulator struct {
	byKey map[GroupKey]*Group
}

func newAccumulator() *accumulator {
	return &accumulator{byKey: make(map[GroupKey]*Group)}
}

func (acc *accumulator) add(key GroupKey, bestRank int, a *store.SearchAttempt) {
	g, ok := acc.byKey[key]
	if !ok {
		g = &Group{Key: key, Hits: make(map[int]int, len(Cutoffs))}
		for _, k := range Cutoffs {
			g.Hits[k] = 0
		}
		acc.byKey[key] = g
	}

	g.Attempts++
	if bestRank > 0 {
		for _, k := range Cutoffs {
			if bestRank <= k {
				g.Hits[k]++
			}
		}
		g.reciprocal += 1 / float64(bestRank)
	}

	t := &g.timingSum
	t.FeatureUserMs += a.Timing.FeatureUserMs
	t.FeatureSystemMs += a.Timing.FeatureSystemMs
	t.FeatureClockMs += a.Timing.FeatureClockMs
	t.AlignmentUserMs += a.Timing.AlignmentUserMs
	t.AlignmentSystemMs += a.Timing.AlignmentSystemMs
	t.AlignmentClockMs += a.Timing.AlignmentClockMs
}

func (acc *accumulator) groups() []*Group {
	out := make([]*Group, 0, len(acc.byKey))
	for _, g := range acc.byKey {
		n := float64(g.Attempts)
		g.HitRate = make(map[int]float64, len(Cutoffs))
		for _, k := range Cutoffs {
			g.HitRate[k] = float64(g.Hits[k]) / n
		}
		g.MRR = g.reciprocal / n

		if g.Key.Grouping == Overall {
			s := g.timingSum
			g.Timing = &TimingAverages{
				FeatureUserMs:     s.FeatureUserMs / n,
				FeatureSystemMs:   s.FeatureSystemMs / n,
				FeatureClockMs:    s.FeatureClockMs / n,
				AlignmentUserMs:   s.AlignmentUserMs / n,
				AlignmentSystemMs: s.AlignmentSystemMs / n,
				AlignmentClockMs:  s.AlignmentClockMs / n,
			}
		}
		out = append(out, g)
	}

	order := make(map[Grouping]int, len(Groupings))
	for i, g := range Groupings {
		order[g] = i
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.Grouping != b.Grouping {
			return order[a.Grouping] < order[b.Grouping]
		}
		if a.Algorithm != b.Algorithm {
			return a.Algorithm < b.Algorithm
		}
		if a.SearchType != b.SearchType {
			return a.SearchType < b.SearchType
		}
		if a.Grouping == ByQueryLength {
			return bucketOrder(a.Value) < bucketOrder(b.Value)
		}
		return a.Value < b.Value
	})
	return out
}
