// Package retrieval exposes the Tag-Walker domain engine (internal/domain/retrieval)
// as an application-layer service, the seam the HTTP and CLI interfaces call
// through to run a search against the production CorpusReader backend.
package retrieval

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/tagwalker/tagwalker/internal/domain/retrieval"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	"github.com/tagwalker/tagwalker/pkg/errors"
)

// Cache is the narrow seam onto the result cache; satisfied directly by
// internal/infrastructure/database/redis's Cache interface. Left nil, Search
// runs uncached.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, value int64) (int64, error)
}

// epochKey is the coarse cache-invalidation counter bumped by the ingest
// service after every successful write (spec.md §4.G result caching). Search
// has no bucket parameter, so invalidation is global rather than per-bucket.
const epochKey = "retrieval:epoch"

// Service runs Tag-Walker searches and applies request-level validation
// (budget bounds) the domain engine itself deliberately leaves to its caller.
type Service struct {
	engine        *retrieval.Engine
	cache         Cache // may be nil
	cacheTTL      time.Duration
	defaultBudget int
	logger        logging.Logger
}

// New constructs the retrieval application service around an already-wired
// retrieval.Engine (itself built from a CorpusReader adapter).
func New(engine *retrieval.Engine, defaultBudget int) *Service {
	if defaultBudget <= 0 {
		defaultBudget = 4000
	}
	return &Service{engine: engine, defaultBudget: defaultBudget, logger: logging.NewNopLogger()}
}

// WithCache attaches a result cache and its TTL. Returns s for chaining.
func (s *Service) WithCache(cache Cache, ttl time.Duration, logger logging.Logger) *Service {
	s.cache = cache
	s.cacheTTL = ttl
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Search runs a Tag-Walker query. A budgetBytes of zero falls back to the
// service's configured default; a negative budget is rejected outright
// (errors.CodeEmptyBudget). Results are read through a Redis cache keyed on
// (epoch, budget, query) when one is configured.
func (s *Service) Search(ctx context.Context, query string, budgetBytes int) (*retrieval.Result, error) {
	if budgetBytes < 0 {
		return nil, errors.New(errors.CodeEmptyBudget, "retrieval budget must be >= 0")
	}
	if budgetBytes == 0 {
		budgetBytes = s.defaultBudget
	}

	if s.cache == nil {
		return s.engine.Search(ctx, query, budgetBytes)
	}

	key := s.cacheKey(ctx, query, budgetBytes)
	var cached retrieval.Result
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	result, err := s.engine.Search(ctx, query, budgetBytes)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
		s.logger.Warn("retrieval cache write failed", logging.Err(err))
	}
	return result, nil
}

func (s *Service) cacheKey(ctx context.Context, query string, budgetBytes int) string {
	epoch, err := s.cache.IncrBy(ctx, epochKey, 0)
	if err != nil {
		s.logger.Warn("retrieval cache epoch read failed", logging.Err(err))
	}
	sum := sha1.Sum([]byte(query))
	return fmt.Sprintf("search:%d:%d:%s", epoch, budgetBytes, hex.EncodeToString(sum[:]))
}
