package alphabet

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/fuga/internal/util"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2", "2", false},
		{"+3", "3", false},
		{"-1", "-1", false},
		{"2/4", "1/2", false},
		{"4/2", "2", false},
		{"0.5", "1/2", false},
		{"1/2r", "1/2r", false},
		{" 3/6r ", "1/2r", false},
		{"-0", "0", false},
		{"", "", true},
		{"r", "", true},
		{"abc", "", true},
		{"1/0", "", true},
	}
	for _, tt := range tests {
		got, err := Canonical(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, util.ErrInvalidToken, "Canonical(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "Canonical(%q)", tt.in)
		assert.Equal(t, tt.want, got, "Canonical(%q)", tt.in)
	}
}

func TestParseTokens(t *testing.T) {
	toks, err := ParseTokens("2;-1;+3;2/4r;;")
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "-1", "3", "1/2r"}, toks)

	toks, err = ParseTokens("")
	require.NoError(t, err)
	assert.Empty(t, toks)

	_, err = ParseTokens("1;x;2")
	assert.ErrorIs(t, err, util.ErrInvalidToken)

	toks, err = ParseTokens("\uff12;\uff0d1;\uff0b3;")
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "-1", "3"}, toks, "fullwidth forms fold to ASCII")
}

func TestValue(t *testing.T) {
	v, err := Value("3/2r")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	v, err = Value("-2")
	require.NoError(t, err)
	assert.Equal(t, -2.0, v)
}

func TestEncodeScenario(t *testing.T) {
	dict := Dictionary{"2": "A", "-1": "B", "3": "C"}
	got := NewEncoder(dict, NewNormalizer("0", false)).Encode([]string{"2", "-1", "0", "3"})
	assert.Equal(t, "ABC", got)
}

func TestEncodeDropsUnknownTokens(t *testing.T) {
	dict := Dictionary{"1": "X", "2": "Y"}
	enc := NewEncoder(dict, Normalizer{})

	got, gaps := enc.EncodeWithGaps([]string{"1", "7", "2", "7", "1"})
	assert.Equal(t, "XYX", got)
	assert.Equal(t, 2, gaps)
	assert.Equal(t, "", Encode(nil, dict))
}

func TestEncodeIsPure(t *testing.T) {
	dict := Dictionary{"1": "X", "2": "Y", "1/2": "Z"}
	tokens := []string{"1", "1/2", "2", "1/2"}
	first := Encode(tokens, dict)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Encode(tokens, dict))
	}
	assert.Equal(t, []string{"1", "1/2", "2", "1/2"}, tokens, "input must not be modified")
}

func TestRestFolding(t *testing.T) {
	dict := Dictionary{"1/2": "A", "1": "B"}

	folded := NewEncoder(dict, ForTrack(Rhythmic, false, false))
	assert.Equal(t, "AB", folded.Encode([]string{"1/2r", "1"}))

	kept := NewEncoder(dict, ForTrack(Rhythmic, true, false))
	assert.Equal(t, "B", kept.Encode([]string{"1/2r", "1"}))
}

func TestForTrackIgnoresNoChange(t *testing.T) {
	dict := Dictionary{"0": "Z", "1": "O", "2": "T"}
	tokens := []string{"0", "1", "2"}

	assert.Equal(t, "OT", NewEncoder(dict, ForTrack(Chromatic, false, false)).Encode(tokens))
	assert.Equal(t, "ZT", NewEncoder(dict, ForTrack(Diatonic, false, false)).Encode(tokens))
	assert.Equal(t, "ZOT", NewEncoder(dict, ForTrack(Rhythmic, false, false)).Encode(tokens))
	assert.Equal(t, "ZOT", NewEncoder(dict, ForTrack(Chromatic, false, true)).Encode(tokens))
}

func TestSymbols(t *testing.T) {
	protein := ProteinSymbols()
	assert.Len(t, protein, 20)
	assert.Equal(t, "A", protein[0])
	assert.Equal(t, "Y", protein[19])

	printable := PrintableSymbols()
	require.Len(t, printable, ApproximateSize)
	seen := make(map[string]bool)
	for _, s := range printable {
		assert.Len(t, []rune(s), 1, "symbol %q", s)
		assert.False(t, seen[s], "duplicate symbol %q", s)
		assert.NotContains(t, []string{"\"", "'", "`", " ", ";", "-"}, s)
		seen[s] = true
	}
	assert.Equal(t, "A", printable[0])
	assert.Equal(t, "a", printable[26])
	assert.Equal(t, "0", printable[52])
}

func TestCounterSortedBreaksTiesByToken(t *testing.T) {
	c := NewCounter(Normalizer{})
	c.Add([]string{"3", "1", "2", "2", "3", "-1"})

	assert.Equal(t, []Frequency{
		{Token: "2", Count: 2},
		{Token: "3", Count: 2},
		{Token: "-1", Count: 1},
		{Token: "1", Count: 1},
	}, c.Sorted())
	assert.Equal(t, 6, c.Total())
	assert.Equal(t, 4, c.Distinct())
}

func TestBuild(t *testing.T) {
	freqs := []Frequency{{"2", 10}, {"-1", 7}, {"3", 1}}

	dict, err := Build(freqs, []string{"A", "B", "C", "D"}, 2)
	require.NoError(t, err)
	assert.Equal(t, Dictionary{"2": "A", "-1": "B"}, dict)

	dict, err = Build(freqs, []string{"A", "B", "C", "D"}, 4)
	require.NoError(t, err)
	assert.Len(t, dict, 3, "fewer distinct tokens than top yields a smaller dictionary")

	_, err = Build(freqs, []string{"A", "B"}, 3)
	assert.ErrorIs(t, err, util.ErrInvalidConfig)

	_, err = Build(freqs, []string{"A"}, 0)
	assert.ErrorIs(t, err, util.ErrInvalidConfig)
}

func TestCoverage(t *testing.T) {
	freqs := []Frequency{{"2", 6}, {"3", 3}, {"4", 1}}
	assert.InDelta(t, 0.9, Coverage(freqs, Dictionary{"2": "A", "3": "B"}), 1e-9)
	assert.Equal(t, 0.0, Coverage(nil, Dictionary{}))
}

func TestFrequencyCSVRoundTrip(t *testing.T) {
	freqs := []Frequency{{"1/2r", 4}, {"-1", 2}}
	var buf bytes.Buffer
	require.NoError(t, WriteFrequencyCSV(&buf, freqs))
	assert.Equal(t, "token,count\n1/2r,4\n-1,2\n", buf.String())

	got, err := ReadFrequencyCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, freqs, got)
}

func TestCounterAddFrequencies(t *testing.T) {
	c := NewCounter(ForTrack(Rhythmic, false, false))
	c.AddFrequencies([]Frequency{{"1/2r", 4}, {"1/2", 3}, {"1", 5}, {"2", 0}})

	assert.Equal(t, 12, c.Total())
	assert.Equal(t, []Frequency{{"1/2", 7}, {"1", 5}}, c.Sorted(), "rests fold into their duration")

	p := NewCounter(ForTrack(Chromatic, false, false))
	p.AddFrequencies([]Frequency{{"0", 9}, {"2", 1}})
	assert.Equal(t, []Frequency{{"2", 1}}, p.Sorted(), "no-change interval is dropped")
}

func TestDictionaryValidate(t *testing.T) {
	assert.NoError(t, Dictionary{"1": "A", "2": "é"}.Validate())
	assert.ErrorIs(t, Dictionary{"1": "A", "2": "A"}.Validate(), util.ErrCorrupt)
	assert.ErrorIs(t, Dictionary{"1": "AB"}.Validate(), util.ErrCorrupt)
}

func TestParseTrackAndRegime(t *testing.T) {
	tr, err := ParseTrack("rhythm")
	require.NoError(t, err)
	assert.Equal(t, Rhythmic, tr)

	_, err = ParseTrack("melodic")
	assert.ErrorIs(t, err, util.ErrUnsupported)

	r, err := ParseRegime("blast")
	require.NoError(t, err)
	assert.Equal(t, Exact, r)
	assert.Equal(t, 20, r.DefaultTop())
	assert.Equal(t, ApproximateSize, Approximate.DefaultTop())
}

func TestLoadSetKeepsKeysAsStored(t *testing.T) {
	decomposed, precomposed := "e\u0301", "\u00e9"
	set := &Set{
		Version: "v1",
		Regime:  Approximate,
		Dictionaries: map[Track]Dictionary{
			Chromatic: {"1": decomposed, "2": precomposed},
			Diatonic:  {decomposed: "A", precomposed: "B"},
			Rhythmic:  {},
		},
	}

	path := filepath.Join(t.TempDir(), "approximate.json")
	require.NoError(t, SaveSet(path, set))

	loaded, err := LoadSet(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, set.Dictionaries, loaded.Dictionaries)
	assert.Len(t, loaded.Dictionaries[Diatonic], 2)
}

func TestSetSaveLoad(t *testing.T) {
	opts := BuildOptions{Regime: Exact, Top: 3}
	counters := NewCounters(opts)
	counters[Chromatic].Add([]string{"2", "2", "0", "-1", "5", "5", "5", "7"})
	counters[Diatonic].Add([]string{"1", "2", "2", "3"})
	counters[Rhythmic].Add([]string{"1/2r", "1/2", "1"})

	set, err := BuildSet(counters, opts)
	require.NoError(t, err)
	assert.NotEmpty(t, set.Version)
	assert.Equal(t, Dictionary{"5": "A", "2": "C", "-1": "D"}, set.Dictionaries[Chromatic])
	assert.Equal(t, Dictionary{"2": "A", "3": "C"}, set.Dictionaries[Diatonic])
	assert.Equal(t, Dictionary{"1/2": "A", "1": "C"}, set.Dictionaries[Rhythmic])

	path := filepath.Join(t.TempDir(), "dict", "exact.json")
	require.NoError(t, SaveSet(path, set))

	loaded, err := LoadSet(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, set.Version, loaded.Version)
	assert.Equal(t, set.Dictionaries, loaded.Dictionaries)
	assert.True(t, set.CreatedAt.Equal(loaded.CreatedAt))

	enc, err := loaded.Encoder(Chromatic)
	require.NoError(t, err)
	assert.Equal(t, "CADA", enc.Encode([]string{"2", "0", "5", "-1", "5"}))

	rebuilt, err := BuildSet(counters, opts)
	require.NoError(t, err)
	assert.NotEqual(t, set.Version, rebuilt.Version, "every build is a new version")
	assert.Equal(t, set.Dictionaries, rebuilt.Dictionaries)
}

func TestLoadSetErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadSet(context.Background(), filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, util.ErrNotFound), "got %v", err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = LoadSet(context.Background(), bad)
	assert.ErrorIs(t, err, util.ErrCorrupt)

	partial := filepath.Join(dir, "partial.json")
	require.NoError(t, os.WriteFile(partial, []byte(`{"regime":"exact","dictionaries":{"chromatic":{"1":"A"}}}`), 0o644))
	_, err = LoadSet(context.Background(), partial)
	assert.ErrorIs(t, err, util.ErrCorrupt)
}
