package evaluate

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/fuga/internal/store"
	"github.com/franz/fuga/internal/util"
)

type fakeLookup struct {
	rows  map[[2]string]*store.Alignment
	calls int
	err   error
}

func (f *fakeLookup) LookupAlignment(id1, id2 string) (*store.Alignment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[[2]string{id1, id2}], nil
}

func (f *fakeLookup) put(id1, id2 string, c, d, r float64) {
	if f.rows == nil {
		f.rows = make(map[[2]string]*store.Alignment)
	}
	f.rows[[2]string{id1, id2}] = &store.Alignment{LineID1: id1, LineID2: id2, ChromaticRate: c, DiatonicRate: d, RhythmicRate: r}
}

func corpus() []*store.MelodicLine {
	return []*store.MelodicLine{
		{ID: "bach_fugue_a_0_0_0", ScoreID: "bach_fugue_a", MusicalForm: "fugue"},
		{ID: "bach_fugue_a_1_0_0", ScoreID: "bach_fugue_a", MusicalForm: "fugue"},
		{ID: "bach_fugue_b_0_0_0", ScoreID: "bach_fugue_b", MusicalForm: "fugue"},
		{ID: "moz_sonata_c_0_0_0", ScoreID: "moz_sonata_c", MusicalForm: "sonata"},
		{ID: "moz_sonata_d_0_0_0", ScoreID: "moz_sonata_d", MusicalForm: "sonata"},
	}
}

func TestEquivalent(t *testing.T) {
	lk := &fakeLookup{}
	lk.put("bach_fugue_b_0_0_0", "bach_fugue_a_0_0_0", 1, 2, 9.99)
	lk.put("moz_sonata_c_0_0_0", "moz_sonata_d_0_0_0", 1, 10, 1)
	lk.put("bach_fugue_a_0_0_0", "moz_sonata_d_0_0_0", -1, 0, 0)

	e, err := New(corpus(), lk, DefaultThreshold)
	require.NoError(t, err)

	tests := []struct {
		truth, candidate string
		want             bool
	}{
		{"bach_fugue_a_0_0_0", "bach_fugue_a_0_0_0", true},  // identical
		{"bach_fugue_a_0_0_0", "bach_fugue_a_1_0_0", true},  // same score
		{"bach_fugue_a_0_0_0", "bach_fugue_b_0_0_0", true},  // stored reversed, all below threshold
		{"moz_sonata_c_0_0_0", "moz_sonata_d_0_0_0", false}, // threshold is strict
		{"bach_fugue_a_0_0_0", "moz_sonata_d_0_0_0", true},  // failed track is below threshold
		{"bach_fugue_a_0_0_0", "moz_sonata_c_0_0_0", false}, // no alignment
	}
	for _, tt := range tests {
		got, err := e.Equivalent(tt.truth, tt.candidate)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "Equivalent(%s, %s)", tt.truth, tt.candidate)
	}

	calls := lk.calls
	_, err = e.Equivalent("bach_fugue_b_0_0_0", "bach_fugue_a_0_0_0")
	require.NoError(t, err)
	assert.Equal(t, calls, lk.calls, "pair decisions are memoized in both directions")
}

func TestEquivalentExcludeFailed(t *testing.T) {
	lk := &fakeLookup{}
	lk.put("bach_fugue_a_0_0_0", "moz_sonata_d_0_0_0", -1, 2, 3)
	lk.put("bach_fugue_a_0_0_0", "moz_sonata_c_0_0_0", 1, 2, 3)

	e, err := New(corpus(), lk, DefaultThreshold)
	require.NoError(t, err)

	near, err := e.Equivalent("bach_fugue_a_0_0_0", "moz_sonata_d_0_0_0")
	require.NoError(t, err)
	assert.True(t, near, "-1 compares below the threshold by default")

	e.SetExcludeFailed(true)
	near, err = e.Equivalent("bach_fugue_a_0_0_0", "moz_sonata_d_0_0_0")
	require.NoError(t, err)
	assert.False(t, near, "cached decision is dropped when the rule changes")

	near, err = e.Equivalent("bach_fugue_a_0_0_0", "moz_sonata_c_0_0_0")
	require.NoError(t, err)
	assert.True(t, near)
}

func TestEquivalentLookupError(t *testing.T) {
	lk := &fakeLookup{err: errors.New("database is closed")}
	e, err := New(corpus(), lk, DefaultThreshold)
	require.NoError(t, err)

	_, err = e.Equivalent("bach_fugue_a_0_0_0", "moz_sonata_c_0_0_0")
	assert.Error(t, err)
}

func TestNewRejectsThreshold(t *testing.T) {
	_, err := New(nil, &fakeLookup{}, 0)
	assert.ErrorIs(t, err, util.ErrInvalidConfig)
}

func attempt(target, instrument, seq string, ranked ...string) *store.SearchAttempt {
	a := &store.SearchAttempt{
		TargetLineID: target,
		Instrument:   instrument,
		Sequence:     seq,
		Algorithm:    "blast",
		SearchType:   "chromatic",
		Timing:       store.Timing{FeatureClockMs: 10, AlignmentClockMs: 30},
	}
	for i, id := range ranked {
		a.Results = append(a.Results, store.SearchResult{LineID: id, Rank: i + 1})
	}
	return a
}

func TestEvaluateMetrics(t *testing.T) {
	lk := &fakeLookup{}
	lk.put("bach_fugue_a_0_0_0", "moz_sonata_c_0_0_0", 1, 1, 1)
	e, err := New(corpus(), lk, DefaultThreshold)
	require.NoError(t, err)

	attempts := []*store.SearchAttempt{
		// hit at rank 1 via same score
		attempt("bach_fugue_a_0_0_0", "violin", "1;2;3", "bach_fugue_a_1_0_0", "moz_sonata_d_0_0_0"),
		// hit at rank 3 via near match
		attempt("bach_fugue_a_0_0_0", "violin", "ABCDEFGHIJKL", "moz_sonata_d_0_0_0", "bach_fugue_b_0_0_0", "moz_sonata_c_0_0_0"),
		// no hit
		attempt("moz_sonata_d_0_0_0", "flute", "ABCDEFGHIJKLMNOP", "bach_fugue_a_0_0_0", "moz_sonata_c_0_0_0"),
		// no results at all
		attempt("moz_sonata_c_0_0_0", "", "AB"),
	}

	report, err := e.Evaluate(attempts)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Attempts)

	overall := report.Find(GroupKey{Grouping: Overall, Algorithm: "blast", SearchType: "chromatic", Value: "all"})
	require.NotNil(t, overall)
	assert.Equal(t, 4, overall.Attempts)
	assert.Equal(t, 0.25, overall.HitRate[1])
	assert.Equal(t, 0.5, overall.HitRate[3])
	assert.Equal(t, 0.5, overall.HitRate[5])
	assert.InDelta(t, (1+1.0/3)/4, overall.MRR, 1e-12)
	require.NotNil(t, overall.Timing)
	assert.Equal(t, 30.0, overall.Timing.AlignmentClockMs)

	violin := report.Find(GroupKey{Grouping: ByInstrument, Algorithm: "blast", SearchType: "chromatic", Value: "violin"})
	require.NotNil(t, violin)
	assert.Equal(t, 2, violin.Attempts)
	assert.Equal(t, 1.0, violin.HitRate[3])
	assert.Nil(t, violin.Timing, "timing is reported for the overall grouping only")

	flute := report.Find(GroupKey{Grouping: ByInstrument, Algorithm: "blast", SearchType: "chromatic", Value: "flute"})
	require.NotNil(t, flute)
	assert.Equal(t, 0.0, flute.MRR, "zero hits with attempts gives MRR 0")

	assert.NotNil(t, report.Find(GroupKey{Grouping: ByInstrument, Algorithm: "blast", SearchType: "chromatic", Value: "unknown"}))

	forms := report.ByGrouping(ByMusicalForm)
	require.Len(t, forms, 2)
	assert.Equal(t, "fugue", forms[0].Key.Value)
	assert.Equal(t, "sonata", forms[1].Key.Value)

	lengths := report.ByGrouping(ByQueryLength)
	require.Len(t, lengths, 3)
	assert.Equal(t, "<10", lengths[0].Key.Value)
	assert.Equal(t, "10-15", lengths[1].Key.Value)
	assert.Equal(t, "15-20", lengths[2].Key.Value)

	scores := report.ByGrouping(ByScore)
	require.Len(t, scores, 3)
	assert.Equal(t, "bach_fugue_a", scores[0].Key.Value)
	assert.Equal(t, 2, scores[0].Attempts)
}

func TestEvaluateSplitsByAlgorithm(t *testing.T) {
	e, err := New(corpus(), &fakeLookup{}, DefaultThreshold)
	require.NoError(t, err)

	a := attempt("bach_fugue_a_0_0_0", "violin", "AB", "bach_fugue_a_0_0_0")
	b := attempt("bach_fugue_a_0_0_0", "violin", "AB", "moz_sonata_c_0_0_0")
	b.Algorithm = "smith-waterman"

	report, err := e.Evaluate([]*store.SearchAttempt{a, b})
	require.NoError(t, err)

	overall := report.ByGrouping(Overall)
	require.Len(t, overall, 2)
	assert.Equal(t, "blast", overall[0].Key.Algorithm)
	assert.Equal(t, 1.0, overall[0].HitRate[1])
	assert.Equal(t, "smith-waterman", overall[1].Key.Algorithm)
	assert.Equal(t, 0.0, overall[1].HitRate[5])
}

func TestLengthBucket(t *testing.T) {
	tests := map[int]string{
		0: "<10", 9: "<10", 10: "10-15", 15: "10-15", 16: "15-20", 20: "15-20",
		21: "20-25", 45: "40-45", 46: "45-50", 50: "45-50", 51: ">50", 400: ">50",
	}
	for n, want := range tests {
		assert.Equal(t, want, LengthBucket(n), "LengthBucket(%d)", n)
	}
}

func TestMetricInvariants(t *testing.T) {
	ids := make([]string, 0, 30)
	var lines []*store.MelodicLine
	for s := 0; s < 10; s++ {
		for l := 0; l < 3; l++ {
			id := "comp_form_s" + string(rune('a'+s)) + "_" + string(rune('0'+l)) + "_0_0"
			ids = append(ids, id)
			lines = append(lines, &store.MelodicLine{ID: id, ScoreID: store.ParseLineID(id).ScoreID})
		}
	}

	rng := rand.New(rand.NewSource(7))
	lk := &fakeLookup{}
	for i := 0; i < 60; i++ {
		a, b := ids[rng.Intn(len(ids))], ids[rng.Intn(len(ids))]
		lk.put(a, b, rng.Float64()*20, rng.Float64()*20, rng.Float64()*20-1)
	}

	var attempts []*store.SearchAttempt
	for i := 0; i < 200; i++ {
		ranked := make([]string, rng.Intn(8))
		for j := range ranked {
			ranked[j] = ids[rng.Intn(len(ids))]
		}
		a := attempt(ids[rng.Intn(len(ids))], []string{"violin", "flute", "voice"}[rng.Intn(3)], "ABCDEFGHIJKLMNOPQRSTUVWXYZ"[:rng.Intn(26)+1], ranked...)
		attempts = append(attempts, a)
	}

	e, err := New(lines, lk, DefaultThreshold)
	require.NoError(t, err)
	report, err := e.Evaluate(attempts)
	require.NoError(t, err)

	for _, g := range report.Groups {
		assert.LessOrEqual(t, g.HitRate[1], g.HitRate[3], "group %+v", g.Key)
		assert.LessOrEqual(t, g.HitRate[3], g.HitRate[5], "group %+v", g.Key)
		assert.GreaterOrEqual(t, g.MRR, 0.0)
		assert.LessOrEqual(t, g.MRR, 1.0)
		if g.Hits[5] > 0 {
			assert.Greater(t, g.MRR, 0.0, "group %+v has hits", g.Key)
		}
	}
}
