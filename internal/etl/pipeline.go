package etl

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"scout/internal/brand"
	"scout/internal/config"
	"scout/internal/dictionary"
	"scout/internal/store"
	"scout/internal/textutil"
)

// ErrPipelineLocked indicates another pipeline invocation holds the run lock.
var ErrPipelineLocked = errors.New("another scout pipeline invocation is already running")

// Summary reports the per-stage row counts of a completed pipeline run.
type Summary struct {
	RunID      string
	BronzeRows int
	SilverRows int
	GoldRows   int
}

// Pipeline drives the bronze, silver, and gold stages against a single store.
// Each stage is idempotent and resumable: re-running never duplicates rows,
// and a failed stage picks up exactly where prior state left off because the
// stages select only not-yet-processed rows.
type Pipeline struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
}

// New constructs a pipeline bound to the supplied configuration and store.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, store: st, logger: logger}
}

// Run executes all three stages in order and writes exactly one run record,
// on success and on failure alike, so operational visibility is never lost.
// A file lock guards against concurrent invocations racing on the same store.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	lock := flock.New(p.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return Summary{}, fmt.Errorf("acquire pipeline lock: %w", err)
	}
	if !locked {
		return Summary{}, ErrPipelineLocked
	}
	defer func() { _ = lock.Unlock() }()

	summary := Summary{RunID: uuid.NewString()}

	fail := func(stage string, stageErr error) (Summary, error) {
		p.logger.Error("pipeline failed",
			slog.String("run_id", summary.RunID),
			slog.String("stage", stage),
			slog.String("error", stageErr.Error()))
		record := &store.RunRecord{RunID: summary.RunID, Status: store.RunFailed}
		if recordErr := p.store.InsertRun(context.WithoutCancel(ctx), record); recordErr != nil {
			p.logger.Error("record failed run", slog.String("error", recordErr.Error()))
		}
		return Summary{}, fmt.Errorf("%s stage: %w", stage, stageErr)
	}

	if summary.BronzeRows, err = p.Bronze(ctx); err != nil {
		return fail("bronze", err)
	}
	if summary.SilverRows, err = p.Silver(ctx); err != nil {
		return fail("silver", err)
	}
	if summary.GoldRows, err = p.Gold(ctx); err != nil {
		return fail("gold", err)
	}

	record := &store.RunRecord{
		RunID:      summary.RunID,
		BronzeRows: summary.BronzeRows,
		SilverRows: summary.SilverRows,
		GoldRows:   summary.GoldRows,
		Status:     store.RunSuccess,
	}
	if err := p.store.InsertRun(ctx, record); err != nil {
		return Summary{}, fmt.Errorf("record run: %w", err)
	}
	p.recordStageMetrics(ctx, summary)

	p.logger.Info("pipeline complete",
		slog.String("run_id", summary.RunID),
		slog.Int("bronze_rows", summary.BronzeRows),
		slog.Int("silver_rows", summary.SilverRows),
		slog.Int("gold_rows", summary.GoldRows))
	return summary, nil
}

// Bronze ingests every CSV file in the input directory. Each row becomes a
// canonical JSON payload hashed for deduplication; re-ingesting identical
// rows is a no-op at the store. The returned count is rows processed, not
// rows inserted: a full re-run of unchanged inputs reports the same count.
func (p *Pipeline) Bronze(ctx context.Context) (int, error) {
	pattern := filepath.Join(p.cfg.Paths.InputDir, "*.csv")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return 0, fmt.Errorf("glob input files: %w", err)
	}
	sort.Strings(files)

	processed := 0
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		rows, err := readCSVRecords(file)
		if err != nil {
			return processed, fmt.Errorf("read %s: %w", file, err)
		}
		for _, payload := range rows {
			canonical, err := canonicalPayload(payload)
			if err != nil {
				return processed, fmt.Errorf("serialize payload from %s: %w", file, err)
			}
			hash := sha256.Sum256(canonical)
			if _, err := p.store.InsertBronze(ctx, string(canonical), file, hash[:]); err != nil {
				return processed, err
			}
			processed++
		}
		p.logger.Debug("ingested file", slog.String("file", file), slog.Int("rows", len(rows)))
	}

	p.logger.Info("bronze stage complete", slog.Int("rows", processed))
	return processed, nil
}

// Silver materializes one normalized row per bronze row carrying a usable
// text field. Bronze rows without text are skipped, not failed. Idempotent:
// with no new bronze data a second run inserts nothing.
func (p *Pipeline) Silver(ctx context.Context) (int, error) {
	pending, err := p.store.UnnormalizedBronze(ctx)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, event := range pending {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
			p.logger.Warn("skipping bronze row with unreadable payload",
				slog.Int64("bronze_id", event.ID),
				slog.String("error", err.Error()))
			continue
		}
		raw, ok := payload["text"].(string)
		if !ok {
			continue
		}
		text := textutil.Normalize(raw)
		if text == "" {
			continue
		}
		created, err := p.store.InsertSilver(ctx, text, event.SourceFile, event.ID)
		if err != nil {
			return inserted, err
		}
		if created {
			inserted++
		}
	}

	p.logger.Info("silver stage complete", slog.Int("rows", inserted))
	return inserted, nil
}

// Gold loads and versions the dictionary once, then predicts a brand for
// every silver row lacking one. Idempotent by silver id.
func (p *Pipeline) Gold(ctx context.Context) (int, error) {
	dict, err := dictionary.Load(p.cfg.Paths.DictionaryPath, p.logger)
	if err != nil {
		return 0, fmt.Errorf("load dictionary: %w", err)
	}
	dictJSON, err := dict.MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("serialize dictionary: %w", err)
	}
	if err := p.store.UpsertDictionaryVersion(ctx, dict.Version(), dict.Checksum(), string(dictJSON)); err != nil {
		return 0, err
	}

	matcher := brand.NewMatcher(dict)

	pending, err := p.store.UnpredictedSilver(ctx)
	if err != nil {
		return 0, err
	}

	predicted := 0
	for _, event := range pending {
		if err := ctx.Err(); err != nil {
			return predicted, err
		}
		if strings.TrimSpace(event.TextInput) == "" {
			continue
		}
		prediction := matcher.Predict(event.TextInput)
		silverID := event.ID
		_, created, err := p.store.InsertPrediction(ctx, &store.GoldPrediction{
			SilverID:          &silverID,
			TextInput:         event.TextInput,
			Brand:             prediction.Brand,
			Confidence:        prediction.Confidence,
			ModelVersion:      prediction.ModelVersion,
			DictionaryVersion: prediction.DictionaryVersion,
		})
		if err != nil {
			return predicted, err
		}
		if created {
			predicted++
		}
	}

	p.logger.Info("gold stage complete",
		slog.Int("predictions", predicted),
		slog.String("dictionary_version", dict.Version()))
	return predicted, nil
}

func (p *Pipeline) recordStageMetrics(ctx context.Context, summary Summary) {
	labels, err := json.Marshal(map[string]string{"run_id": summary.RunID})
	if err != nil {
		return
	}
	metrics := []struct {
		name  string
		value int
	}{
		{"etl_rows_bronze", summary.BronzeRows},
		{"etl_rows_silver", summary.SilverRows},
		{"etl_rows_gold", summary.GoldRows},
	}
	for _, metric := range metrics {
		if err := p.store.InsertMetric(ctx, metric.name, float64(metric.value), string(labels)); err != nil {
			p.logger.Warn("record stage metric",
				slog.String("metric", metric.name),
				slog.String("error", err.Error()))
		}
	}
}

// canonicalPayload serializes a flat payload with sorted keys so identical
// content always hashes identically.
func canonicalPayload(payload map[string]string) ([]byte, error) {
	return json.Marshal(payload)
}
