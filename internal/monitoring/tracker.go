package monitoring

import (
	"sync"
	"time"

	"github.com/velvetlabs/signalpipe/internal/types"
)

// PerformanceTracker accumulates pipeline counters. All writes come from
// the pipeline coordinator goroutine; the mutex exists so external readers
// (metrics endpoint, dashboards) can snapshot concurrently.
//
// The latency average is a true running mean over every completion since
// the last ResetRolling, not a sliding window. Timed-out requests are
// folded into the mean at the full worker timeout so sustained slowness is
// visible to the auto-tuner even when nothing completes.
type PerformanceTracker struct {
	mu sync.RWMutex

	analysisCount int64
	latencyTotal  time.Duration
	maxLatency    time.Duration

	batchesProcessed   int64
	batchAssemblyTotal time.Duration
	queueDepth         int

	timeoutCount         int64
	classifierErrorCount int64
	supersededCount      int64
	lateDiscardCount     int64
	cleanupPasses        int64
}

// NewPerformanceTracker creates an empty tracker.
func NewPerformanceTracker() *PerformanceTracker {
	return &PerformanceTracker{}
}

// RecordCompletion folds one successful completion into the rolling mean.
func (pt *PerformanceTracker) RecordCompletion(latency time.Duration) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.analysisCount++
	pt.latencyTotal += latency
	if latency > pt.maxLatency {
		pt.maxLatency = latency
	}
}

// RecordTimeout counts a deadline expiry as a degradation signal. The
// worker timeout is charged to the rolling mean.
func (pt *PerformanceTracker) RecordTimeout(workerTimeout time.Duration) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.timeoutCount++
	pt.analysisCount++
	pt.latencyTotal += workerTimeout
	if workerTimeout > pt.maxLatency {
		pt.maxLatency = workerTimeout
	}
}

// RecordClassifierError counts a classifier failure.
func (pt *PerformanceTracker) RecordClassifierError() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.classifierErrorCount++
}

// RecordSuperseded counts an eviction of the oldest outstanding request.
func (pt *PerformanceTracker) RecordSuperseded() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.supersededCount++
}

// RecordLateDiscard counts a classifier result that arrived after its
// request was already resolved.
func (pt *PerformanceTracker) RecordLateDiscard() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.lateDiscardCount++
}

// RecordBatch counts one dispatched batch and its assembly duration (time
// from batch open to dispatch).
func (pt *PerformanceTracker) RecordBatch(size int, assembly time.Duration) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.batchesProcessed++
	pt.batchAssemblyTotal += assembly
}

// RecordCleanup counts one forced cleanup pass.
func (pt *PerformanceTracker) RecordCleanup() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.cleanupPasses++
}

// SetQueueDepth records the current number of outstanding requests.
func (pt *PerformanceTracker) SetQueueDepth(depth int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.queueDepth = depth
}

// AverageLatency returns the current rolling mean.
func (pt *PerformanceTracker) AverageLatency() time.Duration {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.averageLocked()
}

func (pt *PerformanceTracker) averageLocked() time.Duration {
	if pt.analysisCount == 0 {
		return 0
	}
	return pt.latencyTotal / time.Duration(pt.analysisCount)
}

// Snapshot returns a point-in-time copy of all counters plus the supplied
// memory estimate.
func (pt *PerformanceTracker) Snapshot(memoryEstimate uint64) types.PerformanceSample {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	var avgAssembly time.Duration
	if pt.batchesProcessed > 0 {
		avgAssembly = pt.batchAssemblyTotal / time.Duration(pt.batchesProcessed)
	}

	return types.PerformanceSample{
		AnalysisCount:        pt.analysisCount,
		AverageLatency:       pt.averageLocked(),
		MaxLatency:           pt.maxLatency,
		BatchesProcessed:     pt.batchesProcessed,
		AvgBatchAssembly:     avgAssembly,
		QueueDepth:           pt.queueDepth,
		MemoryEstimate:       memoryEstimate,
		TimeoutCount:         pt.timeoutCount,
		ClassifierErrorCount: pt.classifierErrorCount,
		SupersededCount:      pt.supersededCount,
		LateDiscardCount:     pt.lateDiscardCount,
		CleanupPasses:        pt.cleanupPasses,
		SampledAt:            time.Now(),
	}
}

// ResetRolling zeroes the rolling latency counters so future averages
// reflect the newly tuned configuration. Cumulative counters (batches,
// timeouts, evictions) are preserved.
func (pt *PerformanceTracker) ResetRolling() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.analysisCount = 0
	pt.latencyTotal = 0
	pt.maxLatency = 0
}
