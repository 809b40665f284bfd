package store

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"
)

// SearchResult is one ranked candidate returned by a search
type SearchResult struct {
	LineID string `json:"melodic_line_id"`
	Rank   int    `json:"ranking_position"`
}

// Timing holds the resource usage of one search in milliseconds
type Timing struct {
	FeatureUserMs     float64 `json:"fe_user_ms"`
	FeatureSystemMs   float64 `json:"fe_system_ms"`
	FeatureClockMs    float64 `json:"fe_clock_ms"`
	AlignmentUserMs   float64 `json:"alignment_user_ms"`
	AlignmentSystemMs float64 `json:"alignment_system_ms"`
	AlignmentClockMs  float64 `json:"alignment_clock_ms"`
}

// SearchAttempt is one logged query run against the corpus by the search
// engine, joined with the recording it was made from
type SearchAttempt struct {
	SearchID     int64          `json:"search_id,omitempty"`
	QueryID      int64          `json:"query_id"`
	RecordingID  string         `json:"recording_id"`
	MusicianCode string         `json:"musician_code"`
	Instrument   string         `json:"instrument"`
	Format       string         `json:"format"`
	TargetLineID string         `json:"melodic_line_id"`
	Algorithm    string         `json:"algorithm"`
	SearchType   string         `json:"search_type"`
	Sequence     string         `json:"sequence"`
	Timing       Timing         `json:"timing"`
	Results      []SearchResult `json:"results"`
}

// QueryLength is the number of tokens in the query. A ";"-separated
// sequence counts its fields; an encoded symbol string counts its runes.
func (a *SearchAttempt) QueryLength() int {
	if strings.Contains(a.Sequence, ";") {
		n := 0
		for _, f := range strings.Split(a.Sequence, ";") {
			if strings.TrimSpace(f) != "" {
				n++
			}
		}
		return n
	}
	return utf8.RuneCountInString(strings.TrimSpace(a.Sequence))
}

// InsertSearchAttempt records an attempt with its recording, query and
// results in one transaction and sets a.SearchID
func (s *Store) InsertSearchAttempt(a *SearchAttempt) error {
	return s.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO recordings (recording_id, musician_code, instrument, format, melodic_line_id)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(recording_id) DO NOTHING
		`, a.RecordingID, a.MusicianCode, a.Instrument, a.Format, a.TargetLineID); err != nil {
			return fmt.Errorf("failed to insert recording %s: %w", a.RecordingID, err)
		}

		if _, err := tx.Exec(`
			INSERT INTO queries (query_id, recording_id) VALUES (?, ?)
			ON CONFLICT(query_id) DO NOTHING
		`, a.QueryID, a.RecordingID); err != nil {
			return fmt.Errorf("failed to insert query %d: %w", a.QueryID, err)
		}

		res, err := tx.Exec(`
			INSERT INTO searches (
			  query_id, algorithm, search_type, sequence,
			  fe_user_ms, fe_system_ms, fe_clock_ms,
			  alignment_user_ms, alignment_system_ms, alignment_clock_ms
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.QueryID, a.Algorithm, a.SearchType, a.Sequence,
			a.Timing.FeatureUserMs, a.Timing.FeatureSystemMs, a.Timing.FeatureClockMs,
			a.Timing.AlignmentUserMs, a.Timing.AlignmentSystemMs, a.Timing.AlignmentClockMs)
		if err != nil {
			return fmt.Errorf("failed to insert search: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}

		stmt, err := tx.Prepare(`INSERT INTO search_results (search_id, melodic_line_id, ranking_position) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()
		for _, r := range a.Results {
			if _, err := stmt.Exec(id, r.LineID, r.Rank); err != nil {
				return fmt.Errorf("failed to insert search result: %w", err)
			}
		}

		a.SearchID = id
		return nil
	})
}

// GetSearchAttempts returns every attempt with its results ordered by rank
func (s *Store) GetSearchAttempts() ([]*SearchAttempt, error) {
	rows, err := s.db.Query(`
		SELECT se.search_id, se.query_id, r.recording_id, r.musician_code, r.instrument,
		       r.format, r.melodic_line_id, se.algorithm, se.search_type, se.sequence,
		       se.fe_user_ms, se.fe_system_ms, se.fe_clock_ms,
		       se.alignment_user_ms, se.alignment_system_ms, se.alignment_clock_ms
		FROM searches se
		JOIN queries q ON q.query_id = se.query_id
		JOIN recordings r ON r.recording_id = q.recording_id
		ORDER BY se.search_id
	`)
	if err != nil {
		return nil, err
	}

	var attempts []*SearchAttempt
	byID := make(map[int64]*SearchAttempt)
	for rows.Next() {
		var a SearchAttempt
		err := rows.Scan(&a.SearchID, &a.QueryID, &a.RecordingID, &a.MusicianCode, &a.Instrument,
			&a.Format, &a.TargetLineID, &a.Algorithm, &a.SearchType, &a.Sequence,
			&a.Timing.FeatureUserMs, &a.Timing.FeatureSystemMs, &a.Timing.FeatureClockMs,
			&a.Timing.AlignmentUserMs, &a.Timing.AlignmentSystemMs, &a.Timing.AlignmentClockMs)
		if err != nil {
			rows.Close()
			return nil, err
		}
		attempts = append(attempts, &a)
		byID[a.SearchID] = &a
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	results, err := s.db.Query(`
		SELECT search_id, melodic_line_id, ranking_position
		FROM search_results
		ORDER BY search_id, ranking_position
	`)
	if err != nil {
		return nil, err
	}
	defer results.Close()

	for results.Next() {
		var id int64
		var r SearchResult
		if err := results.Scan(&id, &r.LineID, &r.Rank); err != nil {
			return nil, err
		}
		if a, ok := byID[id]; ok {
			a.Results = append(a.Results, r)
		}
	}
	return attempts, results.Err()
}

// CountSearchAttempts returns the number of logged searches
func (s *Store) CountSearchAttempts() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM searches`).Scan(&count)
	return count, err
}
