package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertPrediction persists a gold prediction. When the prediction references
// a silver row, a second insert for the same silver id is a no-op and returns
// (0, false, nil). Online predictions carry a nil SilverID and always insert.
func (s *Store) InsertPrediction(ctx context.Context, p *GoldPrediction) (int64, bool, error) {
	if p == nil {
		return 0, false, errors.New("prediction is nil")
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO gold_brand_predictions
            (silver_id, text_input, brand, confidence, model_version, dictionary_version, context_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (silver_id) DO NOTHING`,
		nullableInt64(p.SilverID),
		p.TextInput,
		p.Brand,
		p.Confidence,
		p.ModelVersion,
		p.DictionaryVersion,
		nullableString(p.ContextJSON),
		formatTime(time.Now()),
	)
	if err != nil {
		return 0, false, fmt.Errorf("insert prediction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return 0, false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("last insert id: %w", err)
	}
	return id, true, nil
}

// PredictionBySilverID fetches the gold prediction for a silver row, or nil.
func (s *Store) PredictionBySilverID(ctx context.Context, silverID int64) (*GoldPrediction, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, silver_id, text_input, brand, confidence, model_version, dictionary_version,
                COALESCE(context_json, ''), created_at
         FROM gold_brand_predictions WHERE silver_id = ?`,
		silverID,
	)
	return scanPrediction(row)
}

// RecentPredictions returns the newest gold predictions up to limit.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]*GoldPrediction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, silver_id, text_input, brand, confidence, model_version, dictionary_version,
                COALESCE(context_json, ''), created_at
         FROM gold_brand_predictions ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var predictions []*GoldPrediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

func scanPrediction(scanner interface{ Scan(dest ...any) error }) (*GoldPrediction, error) {
	var (
		p          GoldPrediction
		silverID   sql.NullInt64
		createdRaw string
	)
	err := scanner.Scan(
		&p.ID,
		&silverID,
		&p.TextInput,
		&p.Brand,
		&p.Confidence,
		&p.ModelVersion,
		&p.DictionaryVersion,
		&p.ContextJSON,
		&createdRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan prediction: %w", err)
	}
	if silverID.Valid {
		v := silverID.Int64
		p.SilverID = &v
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		p.CreatedAt = created
	}
	return &p, nil
}

// UpsertDictionaryVersion records dictionary content under its version key so
// historical predictions can be traced to the exact ruleset that produced
// them. Re-upserting a known version refreshes its checksum and content.
func (s *Store) UpsertDictionaryVersion(ctx context.Context, version, checksum, dictionaryJSON string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO dictionary_versions (version, checksum, dictionary_json, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (version) DO UPDATE
         SET checksum = excluded.checksum,
             dictionary_json = excluded.dictionary_json,
             created_at = excluded.created_at`,
		version,
		checksum,
		dictionaryJSON,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("upsert dictionary version: %w", err)
	}
	return nil
}

// DictionaryVersion fetches a stored dictionary version record, or nil.
func (s *Store) DictionaryVersion(ctx context.Context, version string) (*DictionaryVersionRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT version, checksum, dictionary_json, created_at FROM dictionary_versions WHERE version = ?`,
		version,
	)
	var (
		record     DictionaryVersionRecord
		createdRaw string
	)
	err := row.Scan(&record.Version, &record.Checksum, &record.DictionaryJSON, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dictionary version: %w", err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	return &record, nil
}
