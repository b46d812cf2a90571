package etl_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"scout/internal/config"
	"scout/internal/etl"
	"scout/internal/store"
	"scout/internal/testsupport"
)

const testDictionary = `
brands:
  coke:
    pattern: coca cola|coke
    weight: 1.0
  pepsi:
    pattern: "\\bpepsi\\b"
    weight: 1.0
`

func newPipeline(t *testing.T) (*etl.Pipeline, *config.Config, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteDictionary(t, cfg, testDictionary)
	return etl.New(cfg, st, nil), cfg, st
}

func TestRunFullPipeline(t *testing.T) {
	pipeline, cfg, st := newPipeline(t)
	testsupport.WriteCSV(t, cfg, "events.csv",
		[]string{"text", "store_id"},
		[][]string{
			{"bought 2 coke cans", "s1"},
			{"pepsi for the office", "s2"},
			{"", "s3"},
		})

	summary, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.BronzeRows != 3 {
		t.Fatalf("bronze rows = %d, want 3", summary.BronzeRows)
	}
	if summary.SilverRows != 2 {
		t.Fatalf("silver rows = %d, want 2 (empty text skipped)", summary.SilverRows)
	}
	if summary.GoldRows != 2 {
		t.Fatalf("gold rows = %d, want 2", summary.GoldRows)
	}

	predictions, err := st.RecentPredictions(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentPredictions failed: %v", err)
	}
	brands := map[string]bool{}
	for _, p := range predictions {
		brands[p.Brand] = true
		if p.DictionaryVersion == "" || len(p.DictionaryVersion) != 8 {
			t.Fatalf("prediction missing dictionary version: %+v", p)
		}
		if p.ModelVersion != "1.0.0" {
			t.Fatalf("prediction missing model version: %+v", p)
		}
	}
	if !brands["coke"] || !brands["pepsi"] {
		t.Fatalf("expected coke and pepsi predictions, got %v", brands)
	}

	runs, err := st.RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != store.RunSuccess {
		t.Fatalf("expected one successful run record, got %+v", runs)
	}
}

func TestBronzeIdempotentAcrossRuns(t *testing.T) {
	pipeline, cfg, st := newPipeline(t)
	testsupport.WriteCSV(t, cfg, "events.csv",
		[]string{"text"},
		[][]string{{"coke"}, {"pepsi"}})

	ctx := context.Background()
	processed, err := pipeline.Bronze(ctx)
	if err != nil {
		t.Fatalf("Bronze failed: %v", err)
	}
	if processed != 2 {
		t.Fatalf("processed = %d, want 2", processed)
	}

	// Re-running reports the same processed count but inserts nothing new.
	processed, err = pipeline.Bronze(ctx)
	if err != nil {
		t.Fatalf("second Bronze failed: %v", err)
	}
	if processed != 2 {
		t.Fatalf("re-run processed = %d, want 2", processed)
	}

	counts, err := st.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts.Bronze != 2 {
		t.Fatalf("bronze table has %d rows, want 2", counts.Bronze)
	}
}

func TestSilverAndGoldIdempotent(t *testing.T) {
	pipeline, cfg, _ := newPipeline(t)
	testsupport.WriteCSV(t, cfg, "events.csv",
		[]string{"text"},
		[][]string{{"coke"}})

	ctx := context.Background()
	if _, err := pipeline.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	silver, err := pipeline.Silver(ctx)
	if err != nil {
		t.Fatalf("Silver failed: %v", err)
	}
	if silver != 0 {
		t.Fatalf("second silver run inserted %d rows, want 0", silver)
	}

	gold, err := pipeline.Gold(ctx)
	if err != nil {
		t.Fatalf("Gold failed: %v", err)
	}
	if gold != 0 {
		t.Fatalf("second gold run inserted %d rows, want 0", gold)
	}
}

func TestGoldResumesAfterPartialFailure(t *testing.T) {
	pipeline, cfg, st := newPipeline(t)
	testsupport.WriteCSV(t, cfg, "events.csv",
		[]string{"text"},
		[][]string{{"coke one"}, {"pepsi two"}, {"coke three"}})

	ctx := context.Background()
	if _, err := pipeline.Bronze(ctx); err != nil {
		t.Fatalf("Bronze failed: %v", err)
	}
	if _, err := pipeline.Silver(ctx); err != nil {
		t.Fatalf("Silver failed: %v", err)
	}

	// Simulate a gold stage that died after one prediction.
	silver, err := st.UnpredictedSilver(ctx)
	if err != nil {
		t.Fatalf("UnpredictedSilver failed: %v", err)
	}
	if len(silver) != 3 {
		t.Fatalf("expected 3 silver rows, got %d", len(silver))
	}
	firstID := silver[0].ID
	if _, _, err := st.InsertPrediction(ctx, &store.GoldPrediction{
		SilverID:          &firstID,
		TextInput:         silver[0].TextInput,
		Brand:             "coke",
		Confidence:        0.6,
		ModelVersion:      "1.0.0",
		DictionaryVersion: "deadbeef",
	}); err != nil {
		t.Fatalf("InsertPrediction failed: %v", err)
	}

	// A full re-run does not duplicate bronze or silver rows and completes
	// predictions only for the remaining silver rows.
	summary, err := pipeline.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.SilverRows != 0 {
		t.Fatalf("re-run silver rows = %d, want 0", summary.SilverRows)
	}
	if summary.GoldRows != 2 {
		t.Fatalf("re-run gold rows = %d, want 2", summary.GoldRows)
	}

	counts, err := st.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts.Bronze != 3 || counts.Silver != 3 || counts.Gold != 3 {
		t.Fatalf("unexpected table counts after resume: %+v", counts)
	}
}

func TestRunRecordsFailure(t *testing.T) {
	pipeline, cfg, st := newPipeline(t)

	// A directory masquerading as a CSV file makes the bronze stage fail.
	if err := os.MkdirAll(filepath.Join(cfg.Paths.InputDir, "bad.csv"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if _, err := pipeline.Run(context.Background()); err == nil {
		t.Fatal("expected pipeline failure")
	}

	runs, err := st.RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != store.RunFailed {
		t.Fatalf("failure should still record a run row, got %+v", runs)
	}
	if runs[0].BronzeRows != 0 || runs[0].GoldRows != 0 {
		t.Fatalf("failed run should carry zero counts, got %+v", runs[0])
	}
}

func TestGoldFallsBackWithoutDictionary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	pipeline := etl.New(cfg, st, nil)
	testsupport.WriteCSV(t, cfg, "events.csv",
		[]string{"text"},
		[][]string{{"totally unknown brand"}})

	summary, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.GoldRows != 1 {
		t.Fatalf("gold rows = %d, want 1", summary.GoldRows)
	}

	predictions, err := st.RecentPredictions(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentPredictions failed: %v", err)
	}
	// The fallback dictionary's generic entry matches anything.
	if predictions[0].Brand != "generic" {
		t.Fatalf("expected generic fallback prediction, got %+v", predictions[0])
	}

	record, err := st.DictionaryVersion(context.Background(), predictions[0].DictionaryVersion)
	if err != nil {
		t.Fatalf("DictionaryVersion failed: %v", err)
	}
	if record == nil {
		t.Fatal("dictionary version should be persisted for traceability")
	}
}

func TestBronzeSkipsRowsWithoutText(t *testing.T) {
	pipeline, cfg, st := newPipeline(t)
	testsupport.WriteCSV(t, cfg, "events.csv",
		[]string{"amount", "store_id"},
		[][]string{{"12.50", "s1"}})

	ctx := context.Background()
	if _, err := pipeline.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	counts, err := st.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts.Bronze != 1 || counts.Silver != 0 || counts.Gold != 0 {
		t.Fatalf("rows without text should stop at bronze: %+v", counts)
	}
}
