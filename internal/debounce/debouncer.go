// Package debounce decides whether a completed analysis should surface an
// intervention. At most one intervention per signal type is emitted inside
// a cooldown window; same-type repeats are dropped, not delayed, because a
// stale nudge about an utterance that already scrolled past is worse than
// none.
package debounce

import (
	"time"

	"github.com/velvetlabs/signalpipe/internal/types"
)

// Config holds debouncer tunables.
type Config struct {
	// ConfidenceThreshold is the minimum confidence for emission.
	ConfidenceThreshold float64
	// Cooldown is the minimum interval between two emissions of the same
	// signal type.
	Cooldown time.Duration
	// Retention bounds how long last-emitted timestamps are kept before
	// the maintenance pass evicts them.
	Retention time.Duration
}

// DefaultConfig returns the default debouncer configuration.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.8,
		Cooldown:            time.Second,
		Retention:           60 * time.Second,
	}
}

// messages maps signal types to the gentle phrasing surfaced to the user.
var messages = map[types.SignalType]string{
	types.SignalSarcasm:   "That may have landed as sarcasm. Worth a softer follow-up?",
	types.SignalEmotion:   "This exchange is carrying some emotional weight. A pause might help.",
	types.SignalAmbiguous: "That message could be read more than one way.",
}

// priorities maps signal types to the priority a consuming UI sorts by.
var priorities = map[types.SignalType]types.InterventionPriority{
	types.SignalSarcasm:   types.PriorityMedium,
	types.SignalEmotion:   types.PriorityHigh,
	types.SignalAmbiguous: types.PriorityLow,
}

// Debouncer tracks the last emission time per signal type. It is not safe
// for concurrent use; the pipeline coordinator is its single writer.
type Debouncer struct {
	cfg         Config
	lastEmitted map[types.SignalType]time.Time
	suppressed  int64
}

// New creates a debouncer with the given configuration.
func New(cfg Config) *Debouncer {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultConfig().Retention
	}
	return &Debouncer{
		cfg:         cfg,
		lastEmitted: make(map[types.SignalType]time.Time),
	}
}

// Decide returns an InterventionRecord for the result if one should be
// emitted at time now, and records the emission. Results below the
// confidence threshold, of type none, or inside the cooldown window for
// their type produce no record.
func (d *Debouncer) Decide(result types.AnalysisResult, now time.Time) (types.InterventionRecord, bool) {
	if result.Signal == types.SignalNone || result.Confidence < d.cfg.ConfidenceThreshold {
		return types.InterventionRecord{}, false
	}

	if last, ok := d.lastEmitted[result.Signal]; ok && now.Sub(last) < d.cfg.Cooldown {
		d.suppressed++
		return types.InterventionRecord{}, false
	}

	d.lastEmitted[result.Signal] = now

	msg, ok := messages[result.Signal]
	if !ok {
		msg = "Something in that last message might be worth a second look."
	}
	prio, ok := priorities[result.Signal]
	if !ok {
		prio = types.PriorityLow
	}

	return types.InterventionRecord{
		Signal:     result.Signal,
		Message:    msg,
		Priority:   prio,
		Confidence: result.Confidence,
		Timestamp:  now,
	}, true
}

// Evict drops last-emitted entries older than the retention window. Called
// periodically by the coordinator's maintenance pass to bound memory.
func (d *Debouncer) Evict(now time.Time) int {
	evicted := 0
	for signal, last := range d.lastEmitted {
		if now.Sub(last) > d.cfg.Retention {
			delete(d.lastEmitted, signal)
			evicted++
		}
	}
	return evicted
}

// SetCooldown updates the cooldown window. Hot-reloadable.
func (d *Debouncer) SetCooldown(cooldown time.Duration) {
	if cooldown > 0 {
		d.cfg.Cooldown = cooldown
	}
}

// SetConfidenceThreshold updates the emission threshold. Hot-reloadable.
func (d *Debouncer) SetConfidenceThreshold(threshold float64) {
	if threshold >= 0 && threshold <= 1 {
		d.cfg.ConfidenceThreshold = threshold
	}
}

// Suppressed returns how many same-type repeats were dropped inside the
// cooldown window.
func (d *Debouncer) Suppressed() int64 { return d.suppressed }

// TrackedTypes returns how many signal types currently hold a last-emitted
// timestamp.
func (d *Debouncer) TrackedTypes() int { return len(d.lastEmitted) }
