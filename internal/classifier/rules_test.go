package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velvetlabs/signalpipe/internal/types"
)

func classify(t *testing.T, text string) types.ClassificationOutcome {
	t.Helper()
	outcome, err := NewRuleClassifier().Classify(context.Background(), text, nil)
	require.NoError(t, err)
	return outcome
}

func TestDetectsSarcasm(t *testing.T) {
	outcome := classify(t, "Sure, that's fine I guess.")

	assert.Equal(t, types.SignalSarcasm, outcome.Signal)
	assert.GreaterOrEqual(t, outcome.Confidence, 0.8)
	assert.Contains(t, outcome.Derived["matched"], "i guess")
}

func TestDetectsFrustration(t *testing.T) {
	outcome := classify(t, "Ugh, this is so annoying, I'm fed up with it!!")

	assert.Equal(t, types.SignalEmotion, outcome.Signal)
	assert.GreaterOrEqual(t, outcome.Confidence, 0.8)
	assert.Equal(t, "frustration", outcome.Derived["emotion"])
}

func TestDetectsAnxiety(t *testing.T) {
	outcome := classify(t, "I'm really worried, what if this goes wrong and I panic")

	assert.Equal(t, types.SignalEmotion, outcome.Signal)
	assert.Equal(t, "anxiety", outcome.Derived["emotion"])
	assert.GreaterOrEqual(t, outcome.Confidence, 0.8)
}

func TestNeutralTextIsNone(t *testing.T) {
	tests := []string{
		"The meeting is at three.",
		"Please send the report when ready.",
		"It rained today.",
	}

	for _, text := range tests {
		outcome := classify(t, text)
		assert.Equal(t, types.SignalNone, outcome.Signal, "text: %s", text)
	}
}

func TestConfidenceBounds(t *testing.T) {
	// Stack every marker at once; confidence must stay capped.
	outcome := classify(t, "sure fine i guess whatever yeah right obviously totally how original...")

	assert.LessOrEqual(t, outcome.Confidence, 0.95)
	assert.GreaterOrEqual(t, outcome.Confidence, 0.0)
}

func TestShoutingReadsAsEmotion(t *testing.T) {
	outcome := classify(t, "I HATE this, it is RIDICULOUS!!")

	assert.Equal(t, types.SignalEmotion, outcome.Signal)
	assert.Equal(t, "frustration", outcome.Derived["emotion"])
}
