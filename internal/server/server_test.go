package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scout/internal/config"
	"scout/internal/server"
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

func newServer(t *testing.T, opts ...testsupport.ConfigOption) (*server.Server, *config.Config, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteDictionary(t, cfg, testDictionary)
	srv, err := server.New(cfg, st, nil)
	if err != nil {
		t.Fatalf("server.New failed: %v", err)
	}
	return srv, cfg, st
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestPredictPersistsOnlinePrediction(t *testing.T) {
	srv, _, st := newServer(t)
	router := srv.Router()

	rec := postJSON(t, router, "/predict", server.PredictRequest{
		Text:    "two cans of coke",
		Context: map[string]any{"store_id": "s1"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("predict status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse[server.PredictResponse](t, rec)
	if resp.Brand != "coke" {
		t.Fatalf("brand = %q, want coke", resp.Brand)
	}
	if resp.Confidence <= 0.5 || resp.Confidence > 1.0 {
		t.Fatalf("confidence %v outside expected range", resp.Confidence)
	}
	if resp.ModelVersion != "1.0.0" {
		t.Fatalf("model version = %q", resp.ModelVersion)
	}
	if len(resp.DictionaryVersion) != 8 {
		t.Fatalf("dictionary version = %q", resp.DictionaryVersion)
	}
	if resp.PredictionID == 0 {
		t.Fatal("expected a persisted prediction id")
	}

	predictions, err := st.RecentPredictions(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentPredictions failed: %v", err)
	}
	if len(predictions) != 1 {
		t.Fatalf("stored predictions = %d, want 1", len(predictions))
	}
	if predictions[0].SilverID != nil {
		t.Fatalf("online prediction should have no silver row, got %+v", predictions[0])
	}
	if !strings.Contains(predictions[0].ContextJSON, "store_id") {
		t.Fatalf("context not persisted: %q", predictions[0].ContextJSON)
	}
}

func TestPredictWithoutPersistence(t *testing.T) {
	srv, _, st := newServer(t, func(c *config.Config) {
		c.Server.PersistPredictions = false
	})

	rec := postJSON(t, srv.Router(), "/predict", server.PredictRequest{Text: "pepsi please"})
	if rec.Code != http.StatusOK {
		t.Fatalf("predict status = %d", rec.Code)
	}
	resp := decodeResponse[server.PredictResponse](t, rec)
	if resp.Brand != "pepsi" {
		t.Fatalf("brand = %q, want pepsi", resp.Brand)
	}
	if resp.PredictionID != 0 {
		t.Fatalf("prediction id should be absent, got %d", resp.PredictionID)
	}

	predictions, err := st.RecentPredictions(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentPredictions failed: %v", err)
	}
	if len(predictions) != 0 {
		t.Fatalf("expected no stored predictions, got %d", len(predictions))
	}
}

func TestPredictRejectsEmptyText(t *testing.T) {
	srv, _, _ := newServer(t)
	rec := postJSON(t, srv.Router(), "/predict", server.PredictRequest{Text: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPredictRejectsMalformedBody(t *testing.T) {
	srv, _, _ := newServer(t)
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDictionaryUpsertSwapsMatcher(t *testing.T) {
	srv, _, st := newServer(t)
	router := srv.Router()

	before := postJSON(t, router, "/predict", server.PredictRequest{Text: "fanta orange"})
	if got := decodeResponse[server.PredictResponse](t, before); got.Brand != "generic" {
		t.Fatalf("before upsert brand = %q, want generic", got.Brand)
	}

	rec := postJSON(t, router, "/dictionary/upsert", server.DictionaryUpsertRequest{
		Brands: map[string]server.DictionaryUpsertEntry{
			"fanta": {Pattern: "fanta", Weight: 1.0},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d, body %s", rec.Code, rec.Body.String())
	}
	upserted := decodeResponse[server.DictionaryUpsertResponse](t, rec)
	if upserted.Status != "success" || len(upserted.Version) != 8 {
		t.Fatalf("unexpected upsert response: %+v", upserted)
	}

	after := postJSON(t, router, "/predict", server.PredictRequest{Text: "fanta orange"})
	resp := decodeResponse[server.PredictResponse](t, after)
	if resp.Brand != "fanta" {
		t.Fatalf("after upsert brand = %q, want fanta", resp.Brand)
	}
	if resp.DictionaryVersion != upserted.Version {
		t.Fatalf("prediction version %q != upserted version %q", resp.DictionaryVersion, upserted.Version)
	}

	record, err := st.DictionaryVersion(context.Background(), upserted.Version)
	if err != nil {
		t.Fatalf("DictionaryVersion failed: %v", err)
	}
	if record == nil || record.Checksum != upserted.Checksum {
		t.Fatalf("dictionary version not persisted: %+v", record)
	}
}

func TestDictionaryUpsertCustomVersionLabel(t *testing.T) {
	srv, _, st := newServer(t)

	rec := postJSON(t, srv.Router(), "/dictionary/upsert", server.DictionaryUpsertRequest{
		Brands: map[string]server.DictionaryUpsertEntry{
			"sprite": {Pattern: "sprite", Weight: 1.0},
		},
		Version: "campaign-2026-08",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d", rec.Code)
	}
	resp := decodeResponse[server.DictionaryUpsertResponse](t, rec)
	if resp.Version != "campaign-2026-08" {
		t.Fatalf("version = %q, want campaign-2026-08", resp.Version)
	}

	record, err := st.DictionaryVersion(context.Background(), "campaign-2026-08")
	if err != nil {
		t.Fatalf("DictionaryVersion failed: %v", err)
	}
	if record == nil {
		t.Fatal("labeled version should be persisted")
	}
}

func TestDictionaryUpsertRejectsEmptyPayload(t *testing.T) {
	srv, _, _ := newServer(t)
	rec := postJSON(t, srv.Router(), "/dictionary/upsert", server.DictionaryUpsertRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDictionaryUpsertRejectsAllInvalidPatterns(t *testing.T) {
	srv, _, _ := newServer(t)
	rec := postJSON(t, srv.Router(), "/dictionary/upsert", server.DictionaryUpsertRequest{
		Brands: map[string]server.DictionaryUpsertEntry{
			"broken": {Pattern: "[unclosed", Weight: 1.0},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _, st := newServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d", rec.Code)
	}

	// Readiness degrades once the database is gone.
	if err := st.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with closed store = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpointExposesCounters(t *testing.T) {
	srv, _, _ := newServer(t)
	router := srv.Router()

	if rec := postJSON(t, router, "/predict", server.PredictRequest{Text: "coke"}); rec.Code != http.StatusOK {
		t.Fatalf("predict status = %d", rec.Code)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics body: %v", err)
	}
	for _, metric := range []string{"brand_predictions_total", "brand_prediction_duration_seconds", "api_requests_total"} {
		if !strings.Contains(string(body), metric) {
			t.Fatalf("metrics output missing %s", metric)
		}
	}
}
