package monitoring

import (
	"log/slog"
	"os"
	"time"

	"github.com/velvetlabs/signalpipe/internal/types"
)

// Logger provides structured logging with pipeline-specific helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger writing to stdout.
func NewLogger() *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{Logger: slog.New(handler)}
}

// AnalysisLogger logs a completed analysis.
func (l *Logger) AnalysisLogger(result types.AnalysisResult, latency time.Duration, cacheHit bool) {
	l.Info("analysis completed",
		"request_id", result.RequestID,
		"input_length", len(result.Text),
		"signal", string(result.Signal),
		"confidence", result.Confidence,
		"processing_ms", result.ProcessingTime.Milliseconds(),
		"latency_ms", latency.Milliseconds(),
		"cache_hit", cacheHit,
	)
}

// InterventionLogger logs an emitted intervention.
func (l *Logger) InterventionLogger(rec types.InterventionRecord) {
	l.Info("intervention emitted",
		"signal", string(rec.Signal),
		"priority", string(rec.Priority),
		"confidence", rec.Confidence,
	)
}

// PerformanceLogger logs a performance metric.
func (l *Logger) PerformanceLogger(metric string, value float64, unit string) {
	l.Info("performance metric",
		"metric", metric,
		"value", value,
		"unit", unit,
	)
}

// TuningLogger logs an auto-tuner adjustment.
func (l *Logger) TuningLogger(reason string, batchSize int, batchInterval time.Duration) {
	l.Warn("batch parameters tightened",
		"reason", reason,
		"batch_size", batchSize,
		"batch_interval_ms", batchInterval.Milliseconds(),
	)
}

// SystemLogger logs a system-level event.
func (l *Logger) SystemLogger(event, details string) {
	l.Info("system event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

var startTime = time.Now()
