package classifier

import (
	"context"
	"crypto/md5"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/velvetlabs/signalpipe/internal/types"
)

// CachedClassifier wraps another classifier with an expirable LRU keyed on
// the fragment text. Conversations repeat themselves; an identical fragment
// inside the TTL skips the inner classifier entirely.
type CachedClassifier struct {
	inner Classifier
	lru   *expirable.LRU[string, types.ClassificationOutcome]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedClassifier wraps inner with a cache of the given size and TTL.
func NewCachedClassifier(inner Classifier, size int, ttl time.Duration) *CachedClassifier {
	if size <= 0 {
		size = 512
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedClassifier{
		inner: inner,
		lru:   expirable.NewLRU[string, types.ClassificationOutcome](size, nil, ttl),
	}
}

// Classify implements Classifier. Cache hits return the stored outcome
// without invoking the inner classifier.
func (cc *CachedClassifier) Classify(ctx context.Context, text string, meta map[string]any) (types.ClassificationOutcome, error) {
	key := cacheKey(text)

	if outcome, ok := cc.lru.Get(key); ok {
		cc.hits.Add(1)
		return outcome, nil
	}
	cc.misses.Add(1)

	outcome, err := cc.inner.Classify(ctx, text, meta)
	if err != nil {
		return types.ClassificationOutcome{}, err
	}

	cc.lru.Add(key, outcome)
	return outcome, nil
}

// Stats returns cache hit and miss counts.
func (cc *CachedClassifier) Stats() (hits, misses int64) {
	return cc.hits.Load(), cc.misses.Load()
}

// Purge empties the cache.
func (cc *CachedClassifier) Purge() {
	cc.lru.Purge()
}

// cacheKey hashes the fragment so arbitrary text never becomes a raw map
// key in metrics or logs.
func cacheKey(text string) string {
	sum := md5.Sum([]byte(text))
	return fmt.Sprintf("%x", sum)
}
