package classifier

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velvetlabs/signalpipe/internal/types"
)

func TestCacheHitSkipsInnerClassifier(t *testing.T) {
	var calls atomic.Int64
	inner := Func(func(ctx context.Context, text string, meta map[string]any) (types.ClassificationOutcome, error) {
		calls.Add(1)
		return types.ClassificationOutcome{Signal: types.SignalSarcasm, Confidence: 0.85}, nil
	})

	cc := NewCachedClassifier(inner, 16, time.Minute)

	first, err := cc.Classify(context.Background(), "Sure, fine.", nil)
	require.NoError(t, err)

	second, err := cc.Classify(context.Background(), "Sure, fine.", nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), calls.Load())

	hits, misses := cc.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestDistinctTextsMissCache(t *testing.T) {
	var calls atomic.Int64
	inner := Func(func(ctx context.Context, text string, meta map[string]any) (types.ClassificationOutcome, error) {
		calls.Add(1)
		return types.ClassificationOutcome{Signal: types.SignalNone, Confidence: 0.9}, nil
	})

	cc := NewCachedClassifier(inner, 16, time.Minute)

	_, err := cc.Classify(context.Background(), "first", nil)
	require.NoError(t, err)
	_, err = cc.Classify(context.Background(), "second", nil)
	require.NoError(t, err)

	assert.Equal(t, int64(2), calls.Load())
}

func TestErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int64
	inner := Func(func(ctx context.Context, text string, meta map[string]any) (types.ClassificationOutcome, error) {
		if calls.Add(1) == 1 {
			return types.ClassificationOutcome{}, errors.New("model unavailable")
		}
		return types.ClassificationOutcome{Signal: types.SignalEmotion, Confidence: 0.9}, nil
	})

	cc := NewCachedClassifier(inner, 16, time.Minute)

	_, err := cc.Classify(context.Background(), "hello", nil)
	assert.Error(t, err)

	outcome, err := cc.Classify(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, types.SignalEmotion, outcome.Signal)
	assert.Equal(t, int64(2), calls.Load())
}

func TestPurge(t *testing.T) {
	var calls atomic.Int64
	inner := Func(func(ctx context.Context, text string, meta map[string]any) (types.ClassificationOutcome, error) {
		calls.Add(1)
		return types.ClassificationOutcome{Signal: types.SignalNone, Confidence: 0.9}, nil
	})

	cc := NewCachedClassifier(inner, 16, time.Minute)

	_, _ = cc.Classify(context.Background(), "hello", nil)
	cc.Purge()
	_, _ = cc.Classify(context.Background(), "hello", nil)

	assert.Equal(t, int64(2), calls.Load())
}
