package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"scout/internal/brand"
	"scout/internal/dictionary"
	"scout/internal/store"
)

// PredictRequest is the online prediction input.
type PredictRequest struct {
	Text    string         `json:"text"`
	Context map[string]any `json:"context,omitempty"`
}

// PredictResponse mirrors the batch gold record shape plus a server timestamp.
type PredictResponse struct {
	Brand             string  `json:"brand"`
	Confidence        float64 `json:"confidence"`
	ModelVersion      string  `json:"model_version"`
	DictionaryVersion string  `json:"dictionary_version"`
	Timestamp         string  `json:"timestamp"`
	PredictionID      int64   `json:"prediction_id,omitempty"`
}

// DictionaryUpsertRequest carries a replacement dictionary payload.
type DictionaryUpsertRequest struct {
	Brands  map[string]DictionaryUpsertEntry `json:"brands"`
	Version string                           `json:"version,omitempty"`
}

// DictionaryUpsertEntry is one brand rule in an upsert payload.
type DictionaryUpsertEntry struct {
	Pattern string  `json:"pattern"`
	Weight  float64 `json:"weight"`
}

// DictionaryUpsertResponse reports the stored version and checksum.
type DictionaryUpsertResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Checksum string `json:"checksum"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "database not ready: "+err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.observePrediction("error", start)
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.metrics.observePrediction("error", start)
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	prediction := s.currentMatcher().Predict(req.Text)

	resp := PredictResponse{
		Brand:             prediction.Brand,
		Confidence:        prediction.Confidence,
		ModelVersion:      prediction.ModelVersion,
		DictionaryVersion: prediction.DictionaryVersion,
		Timestamp:         time.Now().UTC().Format(time.RFC3339Nano),
	}

	if s.cfg.Server.PersistPredictions {
		contextJSON := ""
		if len(req.Context) > 0 {
			encoded, err := json.Marshal(req.Context)
			if err != nil {
				s.metrics.observePrediction("error", start)
				s.writeError(w, http.StatusBadRequest, "invalid context: "+err.Error())
				return
			}
			contextJSON = string(encoded)
		}
		id, _, err := s.store.InsertPrediction(r.Context(), &store.GoldPrediction{
			TextInput:         req.Text,
			Brand:             prediction.Brand,
			Confidence:        prediction.Confidence,
			ModelVersion:      prediction.ModelVersion,
			DictionaryVersion: prediction.DictionaryVersion,
			ContextJSON:       contextJSON,
		})
		if err != nil {
			s.metrics.observePrediction("error", start)
			s.logger.Error("persist prediction", slog.String("error", err.Error()))
			s.writeError(w, http.StatusInternalServerError, "persist prediction: "+err.Error())
			return
		}
		resp.PredictionID = id

		labels, err := json.Marshal(map[string]string{"brand": prediction.Brand})
		if err == nil {
			if err := s.store.InsertMetric(r.Context(), "prediction_count", 1, string(labels)); err != nil {
				s.logger.Warn("record prediction metric", slog.String("error", err.Error()))
			}
		}
	}

	s.metrics.observePrediction("success", start)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDictionaryUpsert(w http.ResponseWriter, r *http.Request) {
	var req DictionaryUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Brands) == 0 {
		s.writeError(w, http.StatusBadRequest, "brands must not be empty")
		return
	}

	// JSON objects carry no order, so entries are sorted by name to keep the
	// tie-break deterministic across uploads of the same payload.
	names := make([]string, 0, len(req.Brands))
	for name := range req.Brands {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]dictionary.Entry, 0, len(names))
	for _, name := range names {
		entry := req.Brands[name]
		weight := entry.Weight
		if weight == 0 {
			weight = 1.0
		}
		entries = append(entries, dictionary.Entry{Name: name, Pattern: entry.Pattern, Weight: weight})
	}

	dict := dictionary.New(entries, s.logger)
	if dict.Len() == 0 {
		s.writeError(w, http.StatusBadRequest, "no usable brand entries in payload")
		return
	}

	version := strings.TrimSpace(req.Version)
	if version == "" {
		version = dict.Version()
	}

	dictJSON, err := dict.MarshalJSON()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "serialize dictionary: "+err.Error())
		return
	}
	if err := s.store.UpsertDictionaryVersion(r.Context(), version, dict.Checksum(), string(dictJSON)); err != nil {
		s.logger.Error("upsert dictionary version", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "store dictionary version: "+err.Error())
		return
	}
	if version != dict.Version() {
		// Predictions reference the content-derived version, so record the
		// content under that key as well when a caller-supplied label differs.
		if err := s.store.UpsertDictionaryVersion(r.Context(), dict.Version(), dict.Checksum(), string(dictJSON)); err != nil {
			s.logger.Error("upsert dictionary content version", slog.String("error", err.Error()))
			s.writeError(w, http.StatusInternalServerError, "store dictionary version: "+err.Error())
			return
		}
	}

	// Stored predictions keep the dictionary version they were made with;
	// only new predictions see the swapped matcher.
	s.swapMatcher(brand.NewMatcher(dict))
	s.logger.Info("dictionary updated",
		slog.String("version", version),
		slog.Int("entries", dict.Len()))

	s.writeJSON(w, http.StatusOK, DictionaryUpsertResponse{
		Status:   "success",
		Version:  version,
		Checksum: dict.Checksum(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}
