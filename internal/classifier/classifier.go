// Package classifier defines the pluggable scoring boundary of the
// pipeline and ships three implementations: keyword/pattern rules, a
// remote HTTP backend, and a caching decorator. The pipeline assumes
// nothing about a classifier beyond bounded-but-unspecified latency and
// either an outcome or an error.
package classifier

import (
	"context"

	"github.com/velvetlabs/signalpipe/internal/types"
)

// Classifier scores a text fragment for social/emotional signal. Must be
// safe to invoke concurrently from multiple in-flight requests. The
// context carries the per-request deadline; implementations should abort
// when it is cancelled, though the pipeline discards late results either
// way.
type Classifier interface {
	Classify(ctx context.Context, text string, meta map[string]any) (types.ClassificationOutcome, error)
}

// Func adapts a plain function to the Classifier interface.
type Func func(ctx context.Context, text string, meta map[string]any) (types.ClassificationOutcome, error)

// Classify implements Classifier.
func (f Func) Classify(ctx context.Context, text string, meta map[string]any) (types.ClassificationOutcome, error) {
	return f(ctx, text, meta)
}
