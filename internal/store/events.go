package store

import (
	"context"
	"fmt"
	"time"
)

// InsertBronze inserts a raw event, keyed by its content hash. Duplicate
// hashes are a defined no-op; the return value reports whether a new row was
// actually created.
func (s *Store) InsertBronze(ctx context.Context, payload, sourceFile string, eventHash []byte) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO bronze_raw_events (payload, source_file, event_hash, ingested_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (event_hash) DO NOTHING`,
		payload,
		sourceFile,
		eventHash,
		formatTime(time.Now()),
	)
	if err != nil {
		return false, fmt.Errorf("insert bronze event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UnnormalizedBronze returns bronze rows that have no silver row yet, oldest
// first. The silver stage drives its idempotence off this query.
func (s *Store) UnnormalizedBronze(ctx context.Context) ([]*BronzeEvent, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT b.id, b.payload, b.source_file, b.event_hash, b.ingested_at
         FROM bronze_raw_events b
         LEFT JOIN silver_normalized_events sv ON sv.bronze_id = b.id
         WHERE sv.id IS NULL
         ORDER BY b.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query unnormalized bronze: %w", err)
	}
	defer rows.Close()

	var events []*BronzeEvent
	for rows.Next() {
		var (
			event       BronzeEvent
			ingestedRaw string
		)
		if err := rows.Scan(&event.ID, &event.Payload, &event.SourceFile, &event.EventHash, &ingestedRaw); err != nil {
			return nil, fmt.Errorf("scan bronze event: %w", err)
		}
		if ingested, err := parseTimeString(ingestedRaw); err == nil {
			event.IngestedAt = ingested
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// InsertSilver materializes the normalized form of a bronze row. At most one
// silver row exists per bronze id; a duplicate insert is a no-op and reports
// false.
func (s *Store) InsertSilver(ctx context.Context, textInput, sourceFile string, bronzeID int64) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO silver_normalized_events (text_input, source_file, bronze_id, normalized_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (bronze_id) DO NOTHING`,
		textInput,
		nullableString(sourceFile),
		bronzeID,
		formatTime(time.Now()),
	)
	if err != nil {
		return false, fmt.Errorf("insert silver event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UnpredictedSilver returns silver rows lacking a gold prediction, oldest
// first. The gold stage drives its idempotence off this query.
func (s *Store) UnpredictedSilver(ctx context.Context) ([]*SilverEvent, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT sv.id, sv.text_input, COALESCE(sv.source_file, ''), sv.bronze_id, sv.normalized_at
         FROM silver_normalized_events sv
         LEFT JOIN gold_brand_predictions g ON g.silver_id = sv.id
         WHERE g.id IS NULL
         ORDER BY sv.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query unpredicted silver: %w", err)
	}
	defer rows.Close()

	var events []*SilverEvent
	for rows.Next() {
		var (
			event         SilverEvent
			normalizedRaw string
		)
		if err := rows.Scan(&event.ID, &event.TextInput, &event.SourceFile, &event.BronzeID, &normalizedRaw); err != nil {
			return nil, fmt.Errorf("scan silver event: %w", err)
		}
		if normalized, err := parseTimeString(normalizedRaw); err == nil {
			event.NormalizedAt = normalized
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// Counts returns row totals for the three medallion tables.
func (s *Store) Counts(ctx context.Context) (StageCounts, error) {
	var counts StageCounts
	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(1) FROM bronze_raw_events", &counts.Bronze},
		{"SELECT COUNT(1) FROM silver_normalized_events", &counts.Silver},
		{"SELECT COUNT(1) FROM gold_brand_predictions", &counts.Gold},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return StageCounts{}, fmt.Errorf("count rows: %w", err)
		}
	}
	return counts, nil
}
