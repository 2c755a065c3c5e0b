package types

import (
	"time"
)

// SignalType is the category of social/emotional cue assigned to a fragment.
type SignalType string

const (
	SignalNone      SignalType = "none"
	SignalSarcasm   SignalType = "sarcasm"
	SignalEmotion   SignalType = "emotion"
	SignalAmbiguous SignalType = "ambiguous"
)

// Valid reports whether s is one of the known signal types.
func (s SignalType) Valid() bool {
	switch s {
	case SignalNone, SignalSarcasm, SignalEmotion, SignalAmbiguous:
		return true
	}
	return false
}

// ClassificationOutcome is what a classifier returns for one fragment.
// Derived carries classifier-defined fields (matched patterns, emotion
// subtype, model scores) that the pipeline passes through untouched.
type ClassificationOutcome struct {
	Signal     SignalType     `json:"signal"`
	Confidence float64        `json:"confidence"`
	Derived    map[string]any `json:"derived,omitempty"`
}

// AnalysisResult is a completed analysis. Immutable once created.
type AnalysisResult struct {
	RequestID      string         `json:"request_id"`
	Text           string         `json:"text"`
	Signal         SignalType     `json:"signal"`
	Confidence     float64        `json:"confidence"`
	Derived        map[string]any `json:"derived,omitempty"`
	ProcessingTime time.Duration  `json:"processing_time_ns"`
	CompletedAt    time.Time      `json:"completed_at"`
}

// InterventionPriority orders interventions for a consuming UI.
type InterventionPriority string

const (
	PriorityLow    InterventionPriority = "low"
	PriorityMedium InterventionPriority = "medium"
	PriorityHigh   InterventionPriority = "high"
)

// InterventionRecord is a single emitted intervention. Immutable once
// created; emission frequency per signal type is bounded by the debounce
// cooldown.
type InterventionRecord struct {
	Signal     SignalType           `json:"signal"`
	Message    string               `json:"message"`
	Priority   InterventionPriority `json:"priority"`
	Confidence float64              `json:"confidence"`
	Timestamp  time.Time            `json:"timestamp"`
}

// PerformanceSample is a read-only snapshot of pipeline counters.
// AverageLatency is a true running mean over all completions since the
// last tuner reset, not a windowed approximation.
type PerformanceSample struct {
	AnalysisCount    int64         `json:"analysis_count"`
	AverageLatency   time.Duration `json:"average_latency_ns"`
	MaxLatency       time.Duration `json:"max_latency_ns"`
	BatchesProcessed int64         `json:"batches_processed"`
	AvgBatchAssembly time.Duration `json:"avg_batch_assembly_ns"`
	QueueDepth       int           `json:"queue_depth"`
	MemoryEstimate   uint64        `json:"memory_estimate_bytes"`

	TimeoutCount         int64 `json:"timeout_count"`
	ClassifierErrorCount int64 `json:"classifier_error_count"`
	SupersededCount      int64 `json:"superseded_count"`
	LateDiscardCount     int64 `json:"late_discard_count"`
	CleanupPasses        int64 `json:"cleanup_passes"`

	SampledAt time.Time `json:"sampled_at"`
}
