package classifier

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/velvetlabs/signalpipe/internal/types"
)

// sarcasmMarkers are weighted phrases that, stacked together, read as
// sarcasm in short conversational fragments.
var sarcasmMarkers = map[string]float64{
	"sure":        0.35,
	"fine":        0.25,
	"i guess":     0.30,
	"whatever":    0.40,
	"yeah right":  0.50,
	"obviously":   0.30,
	"totally":     0.30,
	"if you say":  0.40,
	"how original": 0.45,
}

// frustrationMarkers and anxietyMarkers are the two emotion clusters the
// rules distinguish; the winning cluster is reported in the derived
// "emotion" field.
var frustrationMarkers = map[string]float64{
	"ugh":          0.40,
	"ridiculous":   0.40,
	"hate":         0.35,
	"can't believe": 0.35,
	"so annoying":  0.45,
	"fed up":       0.45,
	"again?!":      0.40,
}

var anxietyMarkers = map[string]float64{
	"worried":    0.40,
	"nervous":    0.40,
	"what if":    0.30,
	"scared":     0.45,
	"panic":      0.50,
	"i'm not sure i can": 0.40,
}

var (
	capsWordRe    = regexp.MustCompile(`\b[A-Z]{3,}\b`)
	multiExclaimRe = regexp.MustCompile(`!{2,}`)
)

const (
	// minSignalScore is the floor below which a fragment reads as no signal.
	minSignalScore = 0.25
	// ambiguityMargin: when sarcasm and emotion scores land this close
	// together, the fragment is reported as ambiguous.
	ambiguityMargin = 0.10
	maxConfidence   = 0.95
)

// RuleClassifier scores fragments with weighted keyword and punctuation
// heuristics. Stateless after construction, safe for concurrent use.
type RuleClassifier struct{}

// NewRuleClassifier creates the default heuristic classifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify implements Classifier.
func (rc *RuleClassifier) Classify(_ context.Context, text string, _ map[string]any) (types.ClassificationOutcome, error) {
	lower := strings.ToLower(text)

	sarcasm, sarcasmHits := scoreMarkers(lower, sarcasmMarkers)
	frustration, frustrationHits := scoreMarkers(lower, frustrationMarkers)
	anxiety, anxietyHits := scoreMarkers(lower, anxietyMarkers)

	// Trailing ellipsis reads as trailing-off sarcasm; shouting and
	// stacked exclamation marks read as emotional load.
	if strings.HasSuffix(strings.TrimSpace(text), "...") {
		sarcasm += 0.10
	}
	if capsWordRe.MatchString(text) {
		frustration += 0.15
	}
	if multiExclaimRe.MatchString(text) {
		frustration += 0.10
	}

	emotion := frustration
	emotionKind := "frustration"
	emotionHits := frustrationHits
	if anxiety > frustration {
		emotion = anxiety
		emotionKind = "anxiety"
		emotionHits = anxietyHits
	}

	sarcasm = clamp(sarcasm)
	emotion = clamp(emotion)

	switch {
	case sarcasm < minSignalScore && emotion < minSignalScore:
		return types.ClassificationOutcome{
			Signal:     types.SignalNone,
			Confidence: clamp(1 - max(sarcasm, emotion)),
		}, nil

	case sarcasm >= minSignalScore && emotion >= minSignalScore &&
		abs(sarcasm-emotion) < ambiguityMargin:
		return types.ClassificationOutcome{
			Signal:     types.SignalAmbiguous,
			Confidence: clamp((sarcasm + emotion) / 2),
			Derived: map[string]any{
				"sarcasm_score": sarcasm,
				"emotion_score": emotion,
			},
		}, nil

	case sarcasm > emotion:
		return types.ClassificationOutcome{
			Signal:     types.SignalSarcasm,
			Confidence: sarcasm,
			Derived: map[string]any{
				"matched": sarcasmHits,
			},
		}, nil

	default:
		return types.ClassificationOutcome{
			Signal:     types.SignalEmotion,
			Confidence: emotion,
			Derived: map[string]any{
				"emotion": emotionKind,
				"matched": emotionHits,
			},
		}, nil
	}
}

// scoreMarkers sums the weights of all markers present in the fragment and
// returns the matched markers in deterministic order.
func scoreMarkers(lower string, markers map[string]float64) (float64, []string) {
	score := 0.0
	var hits []string
	for marker, weight := range markers {
		if strings.Contains(lower, marker) {
			score += weight
			hits = append(hits, marker)
		}
	}
	sort.Strings(hits)
	return score, hits
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > maxConfidence {
		return maxConfidence
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
