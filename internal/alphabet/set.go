package alphabet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"

	"github.com/franz/fuga/internal/util"
)

// Set is a versioned dictionary artifact: one dictionary per track for one
// regime. A rebuilt set gets a new version; sets are never edited in place.
type Set struct {
	Version      string               `json:"version"`
	Regime       Regime               `json:"regime"`
	Silences     bool                 `json:"silences"`
	KeepNoChange bool                 `json:"keep_no_change"`
	Top          int                  `json:"top"`
	CreatedAt    time.Time            `json:"created_at"`
	Dictionaries map[Track]Dictionary `json:"dictionaries"`
}

// BuildOptions controls dictionary construction
type BuildOptions struct {
	Regime       Regime
	Top          int  // 0 means the regime's full alphabet
	Silences     bool // keep rest markers as distinct tokens
	KeepNoChange bool // keep the no-change interval on pitch tracks
}

// BuildSet builds a new set from per-track frequency counters
func BuildSet(counters map[Track]*Counter, opts BuildOptions) (*Set, error) {
	symbols := opts.Regime.Symbols()
	top := opts.Top
	if top == 0 {
		top = len(symbols)
	}

	set := &Set{
		Version:      uuid.NewString(),
		Regime:       opts.Regime,
		Silences:     opts.Silences,
		KeepNoChange: opts.KeepNoChange,
		Top:          top,
		CreatedAt:    time.Now().UTC(),
		Dictionaries: make(map[Track]Dictionary, len(Tracks)),
	}
	for _, t := range Tracks {
		c, ok := counters[t]
		if !ok {
			c = NewCounter(set.Normalizer(t))
		}
		dict, err := Build(c.Sorted(), symbols, top)
		if err != nil {
			return nil, fmt.Errorf("%s dictionary: %w", t, err)
		}
		set.Dictionaries[t] = dict
	}
	return set, nil
}

// Normalizer returns the normalization this set was built with for a track
func (s *Set) Normalizer(t Track) Normalizer {
	return ForTrack(t, s.Silences, s.KeepNoChange)
}

// NewCounters returns one empty counter per track, normalizing tokens the
// way a set built with opts will encode them
func NewCounters(opts BuildOptions) map[Track]*Counter {
	out := make(map[Track]*Counter, len(Tracks))
	for _, t := range Tracks {
		out[t] = NewCounter(ForTrack(t, opts.Silences, opts.KeepNoChange))
	}
	return out
}

// Dictionary returns the dictionary of a track
func (s *Set) Dictionary(t Track) (Dictionary, error) {
	d, ok := s.Dictionaries[t]
	if !ok {
		return nil, fmt.Errorf("%s dictionary: %w", t, util.ErrNotFound)
	}
	return d, nil
}

// Encoder returns an encoder for a track using this set's normalization
func (s *Set) Encoder(t Track) (*Encoder, error) {
	d, err := s.Dictionary(t)
	if err != nil {
		return nil, err
	}
	return NewEncoder(d, s.Normalizer(t)), nil
}

// SaveSet writes the set as indented JSON, atomically
func SaveSet(path string, s *Set) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dictionary set: %w", err)
	}
	return util.WriteFileAtomic(path, append(data, '\n'), 0o644)
}

// LoadSet reads a set written by SaveSet. Tokens and symbols are kept
// byte for byte.
func LoadSet(ctx context.Context, path string) (*Set, error) {
	data, err := util.RetryableReadFile(ctx, path, nil)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("dictionary set %s: %w", path, util.ErrNotFound)
		}
		return nil, err
	}

	var s Set
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: dictionary set %s: %v", util.ErrCorrupt, path, err)
	}
	if _, err := ParseRegime(string(s.Regime)); err != nil {
		return nil, fmt.Errorf("%w: dictionary set %s: %v", util.ErrCorrupt, path, err)
	}

	for t, d := range s.Dictionaries {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("dictionary set %s, track %s: %w", path, t, err)
		}
	}
	for _, t := range Tracks {
		if _, ok := s.Dictionaries[t]; !ok {
			return nil, fmt.Errorf("%w: dictionary set %s has no %s dictionary", util.ErrCorrupt, path, t)
		}
	}
	return &s, nil
}
