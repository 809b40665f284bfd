package store

import (
	"database/sql"
	"fmt"

	"github.com/franz/fuga/internal/alphabet"
)

// MelodicLine is one monophonic voice of a score with its feature tracks
type MelodicLine struct {
	ID                string
	ScoreID           string
	LineNumber        int
	MusicalForm       string
	FileExtension     string
	ChromaticTokens   string
	DiatonicTokens    string
	RhythmicTokens    string
	ChromaticFeature  string
	DiatonicFeature   string
	RhythmicFeature   string
	DictionaryVersion string
	SourcePath        string
}

// Feature returns the encoded string of a track
func (l *MelodicLine) Feature(t alphabet.Track) string {
	switch t {
	case alphabet.Chromatic:
		return l.ChromaticFeature
	case alphabet.Diatonic:
		return l.DiatonicFeature
	case alphabet.Rhythmic:
		return l.RhythmicFeature
	}
	return ""
}

// SetFeature stores the encoded string of a track
func (l *MelodicLine) SetFeature(t alphabet.Track, encoded string) {
	switch t {
	case alphabet.Chromatic:
		l.ChromaticFeature = encoded
	case alphabet.Diatonic:
		l.DiatonicFeature = encoded
	case alphabet.Rhythmic:
		l.RhythmicFeature = encoded
	}
}

// InsertMelodicLineBatch upserts lines and their scores in one transaction.
// Re-ingesting a line replaces its features.
func (s *Store) InsertMelodicLineBatch(lines []*MelodicLine) error {
	if len(lines) == 0 {
		return nil
	}

	return s.Transaction(func(tx *sql.Tx) error {
		scoreStmt, err := tx.Prepare(`
			INSERT INTO scores (score_id, musical_form, file_extension)
			VALUES (?, ?, ?)
			ON CONFLICT(score_id) DO UPDATE SET
			  musical_form = excluded.musical_form,
			  file_extension = CASE WHEN excluded.file_extension <> '' THEN excluded.file_extension ELSE scores.file_extension END
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer scoreStmt.Close()

		lineStmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO melodic_lines (
			  melodic_line_id, score_id, line_number,
			  chromatic_tokens, diatonic_tokens, rhythmic_tokens,
			  chromatic_feature, diatonic_feature, rhythmic_feature,
			  dictionary_version, source_path
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer lineStmt.Close()

		for _, l := range lines {
			if _, err := scoreStmt.Exec(l.ScoreID, l.MusicalForm, l.FileExtension); err != nil {
				return fmt.Errorf("failed to insert score %s: %w", l.ScoreID, err)
			}
			if _, err := lineStmt.Exec(
				l.ID, l.ScoreID, l.LineNumber,
				l.ChromaticTokens, l.DiatonicTokens, l.RhythmicTokens,
				l.ChromaticFeature, l.DiatonicFeature, l.RhythmicFeature,
				l.DictionaryVersion, l.SourcePath,
			); err != nil {
				return fmt.Errorf("failed to insert melodic line %s: %w", l.ID, err)
			}
		}
		return nil
	})
}

const lineColumns = `
	l.melodic_line_id, l.score_id, l.line_number, s.musical_form, s.file_extension,
	l.chromatic_tokens, l.diatonic_tokens, l.rhythmic_tokens,
	l.chromatic_feature, l.diatonic_feature, l.rhythmic_feature,
	l.dictionary_version, l.source_path`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLine(row rowScanner) (*MelodicLine, error) {
	var l MelodicLine
	var form, ext sql.NullString
	err := row.Scan(&l.ID, &l.ScoreID, &l.LineNumber, &form, &ext,
		&l.ChromaticTokens, &l.DiatonicTokens, &l.RhythmicTokens,
		&l.ChromaticFeature, &l.DiatonicFeature, &l.RhythmicFeature,
		&l.DictionaryVersion, &l.SourcePath)
	if err != nil {
		return nil, err
	}
	l.MusicalForm = form.String
	l.FileExtension = ext.String
	return &l, nil
}

// GetAllMelodicLines returns every line ordered by id. The order is the
// pair enumeration order of an alignment run.
func (s *Store) GetAllMelodicLines() ([]*MelodicLine, error) {
	rows, err := s.db.Query(`
		SELECT` + lineColumns + `
		FROM melodic_lines l
		LEFT JOIN scores s ON s.score_id = l.score_id
		ORDER BY l.melodic_line_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []*MelodicLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetMelodicLine returns a line by id, or nil if it does not exist
func (s *Store) GetMelodicLine(id string) (*MelodicLine, error) {
	row := s.db.QueryRow(`
		SELECT`+lineColumns+`
		FROM melodic_lines l
		LEFT JOIN scores s ON s.score_id = l.score_id
		WHERE l.melodic_line_id = ?
	`, id)
	l, err := scanLine(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

// CountMelodicLines returns the number of ingested lines
func (s *Store) CountMelodicLines() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM melodic_lines`).Scan(&count)
	return count, err
}

// CountScores returns the number of distinct scores
func (s *Store) CountScores() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM scores`).Scan(&count)
	return count, err
}

// GetDictionaryVersions returns the distinct dictionary versions lines were
// encoded with. More than one means the corpus mixes encodings.
func (s *Store) GetDictionaryVersions() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT dictionary_version FROM melodic_lines ORDER BY dictionary_version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
