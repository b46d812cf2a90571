package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// InsertRun writes the write-once summary row for a pipeline invocation.
func (s *Store) InsertRun(ctx context.Context, run *RunRecord) error {
	if run == nil {
		return errors.New("run record is nil")
	}
	if run.RunAt.IsZero() {
		run.RunAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO prediction_runs (run_id, bronze_rows, silver_rows, gold_rows, status, run_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.BronzeRows,
		run.SilverRows,
		run.GoldRows,
		string(run.Status),
		formatTime(run.RunAt),
	)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

// RecentRuns returns the newest run records up to limit.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, run_id, bronze_rows, silver_rows, gold_rows, status, run_at
         FROM prediction_runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		var (
			run       RunRecord
			statusStr string
			runAtRaw  string
		)
		if err := rows.Scan(&run.ID, &run.RunID, &run.BronzeRows, &run.SilverRows, &run.GoldRows, &statusStr, &runAtRaw); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		run.Status = RunStatus(statusStr)
		if runAt, err := parseTimeString(runAtRaw); err == nil {
			run.RunAt = runAt
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// InsertMetric records a named model metric observation with optional labels.
func (s *Store) InsertMetric(ctx context.Context, name string, value float64, labelsJSON string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO model_metrics (name, value, labels_json, recorded_at) VALUES (?, ?, ?, ?)`,
		name,
		value,
		nullableString(labelsJSON),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}
