package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/finsight/finsight/internal/model"
)

const (
	defaultCacheExpiration = 15 * time.Minute
	cacheCleanupInterval   = 30 * time.Minute
)

// AnalyticsService wraps the engine with a per-user result cache. Cache keys
// combine the user ID with a fingerprint of the batch, so a changed transaction
// set misses the cache and one user's results can never be served to another.
type AnalyticsService struct {
	engine  *Engine
	results *cache.Cache
}

// NewAnalyticsService creates a service around the given engine.
func NewAnalyticsService(e *Engine) *AnalyticsService {
	return &AnalyticsService{
		engine:  e,
		results: cache.New(defaultCacheExpiration, cacheCleanupInterval),
	}
}

// Analyze runs the engine for one user's batch, reusing a cached result when
// the same batch was analyzed recently.
func (s *AnalyticsService) Analyze(ctx context.Context, userID string, txns []*model.Transaction) (*Result, error) {
	key := resultKey(userID, txns)
	if cached, ok := s.results.Get(key); ok {
		return cached.(*Result), nil
	}

	start := time.Now()
	res, err := s.engine.Run(ctx, txns)
	if err != nil {
		return nil, fmt.Errorf("analytics run for user %s: %w", userID, err)
	}
	log.Printf("[Analytics] user=%s txns=%d anomalies=%d subscriptions=%d streams=%d took=%s",
		userID, len(txns), len(res.Anomalies), len(res.Subscriptions), len(res.IncomeStreams),
		time.Since(start).Round(time.Millisecond))

	s.results.Set(key, res, cache.DefaultExpiration)
	return res, nil
}

// Invalidate drops any cached results for the user, e.g. after new
// transactions were synced.
func (s *AnalyticsService) Invalidate(userID string) {
	prefix := userID + ":"
	for key := range s.results.Items() {
		if strings.HasPrefix(key, prefix) {
			s.results.Delete(key)
		}
	}
}

// resultKey fingerprints the batch by its transaction IDs, order-independent.
func resultKey(userID string, txns []*model.Transaction) string {
	ids := make([]string, len(txns))
	for i, t := range txns {
		ids[i] = t.ID
	}
	sort.Strings(ids)

	h := fnv.New64a()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s:%d:%x", userID, len(txns), h.Sum64())
}
