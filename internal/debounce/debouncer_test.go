package debounce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/velvetlabs/signalpipe/internal/types"
)

func result(signal types.SignalType, confidence float64) types.AnalysisResult {
	return types.AnalysisResult{
		RequestID:  "req-1",
		Signal:     signal,
		Confidence: confidence,
	}
}

func TestEmitsAboveThreshold(t *testing.T) {
	d := New(DefaultConfig())
	now := time.Now()

	rec, ok := d.Decide(result(types.SignalSarcasm, 0.85), now)

	assert.True(t, ok)
	assert.Equal(t, types.SignalSarcasm, rec.Signal)
	assert.Equal(t, 0.85, rec.Confidence)
	assert.Equal(t, now, rec.Timestamp)
	assert.NotEmpty(t, rec.Message)
}

func TestDropsBelowThreshold(t *testing.T) {
	d := New(DefaultConfig())

	_, ok := d.Decide(result(types.SignalSarcasm, 0.79), time.Now())

	assert.False(t, ok)
}

func TestDropsSignalNone(t *testing.T) {
	d := New(DefaultConfig())

	_, ok := d.Decide(result(types.SignalNone, 0.99), time.Now())

	assert.False(t, ok)
}

func TestSameTypeInsideCooldownDropped(t *testing.T) {
	d := New(Config{ConfidenceThreshold: 0.8, Cooldown: time.Second, Retention: time.Minute})
	t0 := time.Now()

	_, ok := d.Decide(result(types.SignalSarcasm, 0.9), t0)
	assert.True(t, ok)

	// 400ms later, inside the 1s cooldown: dropped silently.
	_, ok = d.Decide(result(types.SignalSarcasm, 0.95), t0.Add(400*time.Millisecond))
	assert.False(t, ok)
	assert.Equal(t, int64(1), d.Suppressed())
}

func TestSameTypeAfterCooldownEmits(t *testing.T) {
	d := New(Config{ConfidenceThreshold: 0.8, Cooldown: time.Second, Retention: time.Minute})
	t0 := time.Now()

	_, ok := d.Decide(result(types.SignalSarcasm, 0.9), t0)
	assert.True(t, ok)

	_, ok = d.Decide(result(types.SignalSarcasm, 0.9), t0.Add(time.Second))
	assert.True(t, ok)
}

func TestDifferentTypesBothEmit(t *testing.T) {
	d := New(DefaultConfig())
	t0 := time.Now()

	_, ok := d.Decide(result(types.SignalSarcasm, 0.9), t0)
	assert.True(t, ok)

	_, ok = d.Decide(result(types.SignalEmotion, 0.9), t0)
	assert.True(t, ok)
}

func TestEvictDropsStaleEntries(t *testing.T) {
	d := New(Config{ConfidenceThreshold: 0.8, Cooldown: time.Second, Retention: 60 * time.Second})
	t0 := time.Now()

	d.Decide(result(types.SignalSarcasm, 0.9), t0)
	d.Decide(result(types.SignalEmotion, 0.9), t0.Add(30*time.Second))
	assert.Equal(t, 2, d.TrackedTypes())

	evicted := d.Evict(t0.Add(70 * time.Second))

	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, d.TrackedTypes())

	// The evicted type may emit again immediately.
	_, ok := d.Decide(result(types.SignalSarcasm, 0.9), t0.Add(70*time.Second))
	assert.True(t, ok)
}

func TestSetCooldownHotReload(t *testing.T) {
	d := New(DefaultConfig())
	t0 := time.Now()

	d.Decide(result(types.SignalSarcasm, 0.9), t0)
	d.SetCooldown(100 * time.Millisecond)

	_, ok := d.Decide(result(types.SignalSarcasm, 0.9), t0.Add(150*time.Millisecond))
	assert.True(t, ok)
}
