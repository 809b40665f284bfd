package store

import (
	"database/sql"
	"fmt"

	"github.com/franz/fuga/internal/alphabet"
)

// FailedRate marks a track whose alignment could not be computed
const FailedRate = -1.0

// Alignment holds the three track distances of one unordered pair of lines
type Alignment struct {
	LineID1       string
	LineID2       string
	ChromaticRate float64
	DiatonicRate  float64
	RhythmicRate  float64
	RunID         string
}

// HasFailure reports whether any track failed
func (a *Alignment) HasFailure() bool {
	return a.ChromaticRate == FailedRate || a.DiatonicRate == FailedRate || a.RhythmicRate == FailedRate
}

// Rate returns the distance of a track
func (a *Alignment) Rate(t alphabet.Track) float64 {
	switch t {
	case alphabet.Chromatic:
		return a.ChromaticRate
	case alphabet.Diatonic:
		return a.DiatonicRate
	case alphabet.Rhythmic:
		return a.RhythmicRate
	}
	return FailedRate
}

// SetRate sets the distance of a track
func (a *Alignment) SetRate(t alphabet.Track, rate float64) {
	switch t {
	case alphabet.Chromatic:
		a.ChromaticRate = rate
	case alphabet.Diatonic:
		a.DiatonicRate = rate
	case alphabet.Rhythmic:
		a.RhythmicRate = rate
	}
}

// PairKey identifies an unordered pair independent of direction
func PairKey(id1, id2 string) string {
	if id2 < id1 {
		id1, id2 = id2, id1
	}
	return id1 + "\x00" + id2
}

// InsertAlignmentBatch appends a batch of results in one transaction. The
// whole batch is committed or none of it is.
func (s *Store) InsertAlignmentBatch(batch []Alignment) error {
	if len(batch) == 0 {
		return nil
	}

	return s.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO global_alignment (
			  melodic_line_id_1, melodic_line_id_2,
			  chromatic_rate, diatonic_rate, rhythmic_rate, run_id
			) VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, a := range batch {
			if _, err := stmt.Exec(a.LineID1, a.LineID2, a.ChromaticRate, a.DiatonicRate, a.RhythmicRate, a.RunID); err != nil {
				return fmt.Errorf("failed to insert alignment %s/%s: %w", a.LineID1, a.LineID2, err)
			}
		}
		return nil
	})
}

// ClearAlignments removes every alignment result
func (s *Store) ClearAlignments() error {
	if _, err := s.db.Exec(`DELETE FROM global_alignment`); err != nil {
		return fmt.Errorf("failed to clear alignments: %w", err)
	}
	return nil
}

// CountAlignments returns the number of stored results
func (s *Store) CountAlignments() (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM global_alignment`).Scan(&count)
	return count, err
}

// CountFailedAlignments returns the number of results with a failed track
func (s *Store) CountFailedAlignments() (int64, error) {
	var count int64
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM global_alignment
		WHERE chromatic_rate = -1 OR diatonic_rate = -1 OR rhythmic_rate = -1
	`).Scan(&count)
	return count, err
}

// GetAlignedPairs returns the PairKey of every stored result
func (s *Store) GetAlignedPairs() (map[string]struct{}, error) {
	rows, err := s.db.Query(`SELECT melodic_line_id_1, melodic_line_id_2 FROM global_alignment`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pairs := make(map[string]struct{})
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, err
		}
		pairs[PairKey(a, b)] = struct{}{}
	}
	return pairs, rows.Err()
}

// LookupAlignment returns the result stored as (id1, id2) in that
// direction, or nil if there is none
func (s *Store) LookupAlignment(id1, id2 string) (*Alignment, error) {
	var a Alignment
	err := s.db.QueryRow(`
		SELECT melodic_line_id_1, melodic_line_id_2,
		       chromatic_rate, diatonic_rate, rhythmic_rate, run_id
		FROM global_alignment
		WHERE melodic_line_id_1 = ? AND melodic_line_id_2 = ?
		LIMIT 1
	`, id1, id2).Scan(&a.LineID1, &a.LineID2, &a.ChromaticRate, &a.DiatonicRate, &a.RhythmicRate, &a.RunID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
