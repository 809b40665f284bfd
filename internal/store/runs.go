package store

import (
	"database/sql"
	"time"
)

// Run statuses
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// AlignmentRun records one execution of the pairwise orchestrator
type AlignmentRun struct {
	ID                string
	Engine            string
	Workers           int
	BatchSize         int
	TotalPairs        int64
	ProcessedPairs    int64
	FailedInvocations int64
	Status            string
	Error             string
	StartedAt         time.Time
	UpdatedAt         time.Time
	FinishedAt        time.Time
}

// StartRun records a new run in the running state
func (s *Store) StartRun(run *AlignmentRun) error {
	_, err := s.db.Exec(`
		INSERT INTO alignment_runs (run_id, engine, workers, batch_size, total_pairs, status, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))
	`, run.ID, run.Engine, run.Workers, run.BatchSize, run.TotalPairs, RunRunning)
	return err
}

// UpdateRunProgress records how far a run has come
func (s *Store) UpdateRunProgress(runID string, processed, failed int64) error {
	_, err := s.db.Exec(`
		UPDATE alignment_runs
		SET processed_pairs = ?, failed_invocations = ?, updated_at = datetime('now')
		WHERE run_id = ?
	`, processed, failed, runID)
	return err
}

// FinishRun stores the final counters and status of a run
func (s *Store) FinishRun(runID, status string, processed, failed int64, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	_, err := s.db.Exec(`
		UPDATE alignment_runs
		SET status = ?, processed_pairs = ?, failed_invocations = ?, error = ?,
		    updated_at = datetime('now'), finished_at = datetime('now')
		WHERE run_id = ?
	`, status, processed, failed, msg, runID)
	return err
}

// GetRun returns a run by id, or nil if it does not exist
func (s *Store) GetRun(runID string) (*AlignmentRun, error) {
	runs, err := s.queryRuns(`WHERE run_id = ?`, runID)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

// GetRuns returns all runs, newest first
func (s *Store) GetRuns() ([]*AlignmentRun, error) {
	return s.queryRuns(``)
}

// HasRunningRun reports whether a run was left in the running state, which
// means a previous process stopped before finishing
func (s *Store) HasRunningRun() (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM alignment_runs WHERE status = ?`, RunRunning).Scan(&count)
	return count > 0, err
}

func (s *Store) queryRuns(where string, args ...any) ([]*AlignmentRun, error) {
	rows, err := s.db.Query(`
		SELECT run_id, engine, workers, batch_size, total_pairs, processed_pairs,
		       failed_invocations, status, error, started_at, updated_at, finished_at
		FROM alignment_runs `+where+`
		ORDER BY started_at DESC, rowid DESC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*AlignmentRun
	for rows.Next() {
		var r AlignmentRun
		var startedAt, updatedAt, finishedAt sql.NullString
		err := rows.Scan(&r.ID, &r.Engine, &r.Workers, &r.BatchSize, &r.TotalPairs, &r.ProcessedPairs,
			&r.FailedInvocations, &r.Status, &r.Error, &startedAt, &updatedAt, &finishedAt)
		if err != nil {
			return nil, err
		}
		r.StartedAt = parseTimestamp(startedAt)
		r.UpdatedAt = parseTimestamp(updatedAt)
		r.FinishedAt = parseTimestamp(finishedAt)
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

func parseTimestamp(v sql.NullString) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, v.String); err == nil {
			return t
		}
	}
	return time.Time{}
}
