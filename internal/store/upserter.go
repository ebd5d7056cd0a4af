package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kbforge/ragpipe/internal/logutil"
	"github.com/kbforge/ragpipe/internal/model"
	appErr "github.com/kbforge/ragpipe/internal/pkg/errors"
	"github.com/kbforge/ragpipe/internal/pkg/retry"
)

const (
	defaultUpsertCeiling  = 1000
	defaultUpsertAttempts = 3
	defaultUpsertBackoff  = 500 * time.Millisecond
)

type UpserterConfig struct {
	MaxBatchSize  int
	RetryAttempts int
	RetryBackoff  time.Duration
}

// Upserter writes embedded chunks into an index in sub-batches no larger
// than the store's per-request ceiling. Writes are identifier-keyed, so
// re-upserting unchanged chunks is a no-op in effect and edited chunks are
// cleanly replaced.
type Upserter struct {
	cfg UpserterConfig
}

func NewUpserter(cfg UpserterConfig) *Upserter {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = defaultUpsertCeiling
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultUpsertAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultUpsertBackoff
	}
	return &Upserter{cfg: cfg}
}

// Upsert writes all items. A sub-batch that still fails after retries aborts
// the run; the returned PartialUpsertError lists which identifier ranges
// landed and which did not, so the caller can resume from the failure point
// instead of starting over.
func (u *Upserter) Upsert(ctx context.Context, idx Index, items []model.EmbeddedChunk) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if dim := idx.Dimension(); dim > 0 && len(items[i].Vector) != dim {
			return fmt.Errorf("%w: chunk %s has vector dimension %d, index %q expects %d",
				appErr.ErrConfiguration, items[i].ID, len(items[i].Vector), idx.Name(), dim)
		}
	}

	logger := logutil.GetLogger(ctx).With(zap.String("index", idx.Name()))
	batches := splitBatches(items, u.cfg.MaxBatchSize)
	logger.Info("upserting chunks", zap.Int("chunks", len(items)), zap.Int("sub_batches", len(batches)))

	retryable := func(err error) bool {
		return errors.Is(err, appErr.ErrStoreUnavailable)
	}
	for i, batch := range batches {
		err := retry.Do(ctx, u.cfg.RetryAttempts, u.cfg.RetryBackoff, retryable, func() error {
			return idx.Upsert(ctx, batch)
		})
		if err != nil {
			logger.Error("sub-batch failed after retries",
				zap.Int("sub_batch", i+1),
				zap.Int("of", len(batches)),
				zap.Error(err),
			)
			return partialFailure(batches, i, err)
		}
		logger.Debug("sub-batch written", zap.Int("sub_batch", i+1), zap.Int("size", len(batch)))
	}
	return nil
}

func splitBatches(items []model.EmbeddedChunk, size int) [][]model.EmbeddedChunk {
	var out [][]model.EmbeddedChunk
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

func partialFailure(batches [][]model.EmbeddedChunk, failedAt int, cause error) error {
	perr := &appErr.PartialUpsertError{Cause: cause}
	for i, batch := range batches {
		r := appErr.IDRange{
			First: batch[0].ID,
			Last:  batch[len(batch)-1].ID,
			Count: len(batch),
		}
		if i < failedAt {
			perr.Succeeded = append(perr.Succeeded, r)
			perr.Written += r.Count
		} else {
			perr.Failed = append(perr.Failed, r)
			perr.Remaining += r.Count
		}
	}
	return perr
}
