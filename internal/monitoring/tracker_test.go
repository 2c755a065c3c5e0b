package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunningMeanIsTrueAverage(t *testing.T) {
	pt := NewPerformanceTracker()

	pt.RecordCompletion(10 * time.Millisecond)
	pt.RecordCompletion(20 * time.Millisecond)
	pt.RecordCompletion(60 * time.Millisecond)

	assert.Equal(t, 30*time.Millisecond, pt.AverageLatency())

	sample := pt.Snapshot(0)
	assert.Equal(t, int64(3), sample.AnalysisCount)
	assert.Equal(t, 60*time.Millisecond, sample.MaxLatency)
}

func TestTimeoutChargedAtWorkerTimeout(t *testing.T) {
	pt := NewPerformanceTracker()

	pt.RecordCompletion(50 * time.Millisecond)
	pt.RecordTimeout(150 * time.Millisecond)

	assert.Equal(t, 100*time.Millisecond, pt.AverageLatency())

	sample := pt.Snapshot(0)
	assert.Equal(t, int64(1), sample.TimeoutCount)
	assert.Equal(t, 150*time.Millisecond, sample.MaxLatency)
}

func TestResetRollingPreservesCumulativeCounters(t *testing.T) {
	pt := NewPerformanceTracker()

	pt.RecordCompletion(400 * time.Millisecond)
	pt.RecordBatch(8, time.Millisecond)
	pt.RecordSuperseded()
	pt.RecordCleanup()

	pt.ResetRolling()

	sample := pt.Snapshot(0)
	assert.Equal(t, int64(0), sample.AnalysisCount)
	assert.Equal(t, time.Duration(0), sample.AverageLatency)
	assert.Equal(t, time.Duration(0), sample.MaxLatency)
	assert.Equal(t, int64(1), sample.BatchesProcessed)
	assert.Equal(t, int64(1), sample.SupersededCount)
	assert.Equal(t, int64(1), sample.CleanupPasses)
}

func TestEmptyTrackerAverageIsZero(t *testing.T) {
	pt := NewPerformanceTracker()

	assert.Equal(t, time.Duration(0), pt.AverageLatency())
}

func TestSnapshotCarriesMemoryEstimate(t *testing.T) {
	pt := NewPerformanceTracker()
	pt.SetQueueDepth(7)

	sample := pt.Snapshot(42 * 1024 * 1024)

	assert.Equal(t, uint64(42*1024*1024), sample.MemoryEstimate)
	assert.Equal(t, 7, sample.QueueDepth)
	assert.WithinDuration(t, time.Now(), sample.SampledAt, time.Second)
}
