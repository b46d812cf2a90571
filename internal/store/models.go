package store

import "time"

// BronzeEvent is a verbatim ingested record. EventHash is the SHA-256 of the
// canonical JSON payload and is the dedup key: re-ingesting an identical
// payload is a no-op. Bronze rows are never mutated or deleted by the pipeline.
type BronzeEvent struct {
	ID         int64
	Payload    string
	SourceFile string
	EventHash  []byte
	IngestedAt time.Time
}

// SilverEvent is a normalized text record derived from exactly one bronze row.
type SilverEvent struct {
	ID           int64
	TextInput    string
	SourceFile   string
	BronzeID     int64
	NormalizedAt time.Time
}

// GoldPrediction is an immutable brand prediction. SilverID is nil for
// predictions persisted by the online service; batch and online rows are
// otherwise indistinguishable to downstream consumers.
type GoldPrediction struct {
	ID                int64
	SilverID          *int64
	TextInput         string
	Brand             string
	Confidence        float64
	ModelVersion      string
	DictionaryVersion string
	ContextJSON       string
	CreatedAt         time.Time
}

// RunStatus is the terminal state of a pipeline invocation.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// RunRecord summarizes one pipeline invocation. Written exactly once per run,
// on success and on failure alike.
type RunRecord struct {
	ID         int64
	RunID      string
	BronzeRows int
	SilverRows int
	GoldRows   int
	Status     RunStatus
	RunAt      time.Time
}

// DictionaryVersionRecord traces a prediction's dictionary_version back to the
// exact dictionary content it was produced with.
type DictionaryVersionRecord struct {
	Version        string
	Checksum       string
	DictionaryJSON string
	CreatedAt      time.Time
}

// StageCounts reports the row totals of the three medallion tables.
type StageCounts struct {
	Bronze int64
	Silver int64
	Gold   int64
}
