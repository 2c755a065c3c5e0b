package monitoring

import (
	"log/slog"
	"runtime"
	"time"
)

// MemoryEstimate returns the current heap allocation in bytes. The
// auto-tuner compares this against the configured memory ceiling.
func MemoryEstimate() uint64 {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return memStats.HeapAlloc
}

// ForceGC runs a garbage collection cycle and logs its duration. Invoked
// by the cleanup pass when the memory ceiling is breached.
func ForceGC(logger *Logger) {
	start := time.Now()
	runtime.GC()
	duration := time.Since(start)

	if logger != nil {
		logger.PerformanceLogger("forced_gc", float64(duration.Milliseconds()), "ms")
	}
	slog.Debug("forced garbage collection completed", "duration_ms", duration.Milliseconds())
}
