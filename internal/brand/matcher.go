package brand

import (
	"strings"

	"scout/internal/dictionary"
)

// ModelVersion identifies the matching algorithm itself, independent of the
// dictionary content it runs against.
const ModelVersion = "1.0.0"

// Fallback values returned when no dictionary entry matches. These are fixed
// constants, not dictionary-driven: a dictionary-defined "generic" entry
// scores like any other entry, but the no-match result is always this pair.
const (
	FallbackBrand      = "generic"
	FallbackConfidence = 0.1
)

// Prediction is the matcher's result for a single text input.
type Prediction struct {
	Brand             string  `json:"brand"`
	Confidence        float64 `json:"confidence"`
	ModelVersion      string  `json:"model_version"`
	DictionaryVersion string  `json:"dictionary_version"`
}

// Matcher scores free text against an immutable dictionary snapshot. It holds
// no mutable state, so a single Matcher serves concurrent callers without
// locking.
type Matcher struct {
	dict *dictionary.Dictionary
}

// NewMatcher constructs a matcher over the given dictionary.
func NewMatcher(dict *dictionary.Dictionary) *Matcher {
	return &Matcher{dict: dict}
}

// Dictionary returns the dictionary snapshot the matcher was built with.
func (m *Matcher) Dictionary() *dictionary.Dictionary {
	return m.dict
}

// Predict evaluates every dictionary entry against the text and returns the
// best-scoring brand. Confidence combines the entry weight with the fraction
// of the text covered by the match:
//
//	confidence = weight * (0.5 + 0.5 * len(match)/len(text))
//
// Every entry is evaluated; there is no early exit, so the true maximum is
// always found. Ties keep the first-seen entry in dictionary order. Empty
// text never matches. When nothing matches, the fixed fallback is returned.
// The result is clamped to 1.0.
func (m *Matcher) Predict(text string) Prediction {
	lowered := strings.ToLower(text)

	bestBrand := ""
	bestConfidence := 0.0

	if len(lowered) > 0 {
		for _, entry := range m.dict.Entries() {
			pattern := entry.Compiled()
			if pattern == nil {
				continue
			}
			loc := pattern.FindStringIndex(lowered)
			if loc == nil {
				continue
			}
			ratio := float64(loc[1]-loc[0]) / float64(len(lowered))
			confidence := entry.Weight * (0.5 + 0.5*ratio)
			if confidence > bestConfidence {
				bestConfidence = confidence
				bestBrand = entry.Name
			}
		}
	}

	if bestBrand == "" {
		bestBrand = FallbackBrand
		bestConfidence = FallbackConfidence
	}
	if bestConfidence > 1.0 {
		bestConfidence = 1.0
	}

	return Prediction{
		Brand:             bestBrand,
		Confidence:        bestConfidence,
		ModelVersion:      ModelVersion,
		DictionaryVersion: m.dict.Version(),
	}
}
