// Package repositories adapts the ingest domain's repository interfaces onto
// PostgreSQL via pgx, implementing the Ghost Data Protocol (spec §9): every
// UpsertBatch writes in chunks of upsertBatchSize, retries transient failures
// with exponential backoff, and re-reads what it just wrote before returning.
package repositories

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	"github.com/tagwalker/tagwalker/pkg/errors"
)

// upsertBatchSize is the Ghost-Data Protocol's fixed batch size (spec §4.C).
const upsertBatchSize = 50

// retryConfig carries the exponential-backoff tunables read from
// config.IngestConfig so every repository retries writes identically.
type retryConfig struct {
	BaseInterval time.Duration
	MaxRetries   int
}

func defaultRetryConfig() retryConfig {
	return retryConfig{BaseInterval: 50 * time.Millisecond, MaxRetries: 5}
}

// withRetry wraps a write operation in an exponential backoff loop, used to
// ride out transient pool exhaustion or lock contention without surfacing
// errors.CodeStoreBusy on the first failure.
func withRetry(ctx context.Context, cfg retryConfig, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.BaseInterval
	policy.MaxElapsedTime = 0
	bounded := backoff.WithMaxRetries(policy, uint64(cfg.MaxRetries))
	return backoff.Retry(op, backoff.WithContext(bounded, ctx))
}

// chunk splits items into slices of at most size, preserving order.
func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

// verifyCount wraps the Ghost Data Protocol's read-after-write check: after
// an upsert batch commits, the caller re-counts rows matching ids and this
// helper turns a short count into errors.CodeIngestVerifyFailed.
func verifyCount(logger logging.Logger, table string, expected, got int) error {
	if got < expected {
		logger.Error("ghost data detected: read-after-write verification short",
			logging.String("table", table),
			logging.Int("expected", expected),
			logging.Int("observed", got))
		return errors.New(errors.CodeIngestVerifyFailed, "read-after-write verification failed for "+table)
	}
	return nil
}
