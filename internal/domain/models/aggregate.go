package models

import "time"

// Indication is one source's positive/negative read on a subject.
type Indication struct {
	Subject  string  `json:"subject"`
	Positive bool    `json:"positive"`
	Value    float64 `json:"value,omitempty"`
}

// SourceResult is the payload a single source produced for a batch.
type SourceResult struct {
	Source      string        `json:"source"`
	Priority    int           `json:"priority"`
	Indications []Indication  `json:"indications"`
	CacheHit    bool          `json:"cache_hit"`
	Duration    time.Duration `json:"duration"`
}

// ErrorEntry records a source failure without failing the batch.
type ErrorEntry struct {
	Source string    `json:"source"`
	Error  string    `json:"error"`
	At     time.Time `json:"at"`
}

// CollectionStats summarizes one CollectAll run.
type CollectionStats struct {
	SourcesQueried int           `json:"sources_queried"`
	Errors         int           `json:"errors"`
	DataPoints     int           `json:"data_points"`
	CacheHits      int           `json:"cache_hits"`
	Duration       time.Duration `json:"duration"`
}

// AggregateResult is everything CollectAll gathered for a batch of subjects.
type AggregateResult struct {
	Subjects    []string                `json:"subjects"`
	Results     map[string]SourceResult `json:"results"`
	Errors      []ErrorEntry            `json:"errors,omitempty"`
	Stats       CollectionStats         `json:"stats"`
	CollectedAt time.Time               `json:"collected_at"`
}

// ConvictionTier buckets a subject score.
type ConvictionTier string

const (
	TierHigh   ConvictionTier = "high"
	TierMedium ConvictionTier = "medium"
	TierLow    ConvictionTier = "low"
)

// SubjectIntel is the cross-source tally for a subject.
type SubjectIntel struct {
	Subject  string         `json:"subject"`
	Positive int            `json:"positive"`
	Total    int            `json:"total"`
	Score    float64        `json:"score"`
	Tier     ConvictionTier `json:"tier"`
	Sources  []string       `json:"sources"`
}
