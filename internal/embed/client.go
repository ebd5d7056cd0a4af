package embed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kbforge/ragpipe/internal/ai"
	"github.com/kbforge/ragpipe/internal/logutil"
	appErr "github.com/kbforge/ragpipe/internal/pkg/errors"
	"github.com/kbforge/ragpipe/internal/pkg/retry"
)

const (
	defaultMaxBatchSize  = 1000
	defaultMaxParallel   = 4
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 500 * time.Millisecond
)

type Config struct {
	Model         string
	Dimension     int
	MaxBatchSize  int
	MaxParallel   int
	RetryAttempts int
	RetryBackoff  time.Duration
}

// Client turns ordered text lists into equal-length ordered vector lists. It
// splits work into sub-batches at or below the provider's request ceiling,
// runs them through a bounded worker pool and reassembles results in input
// order. Nothing is cached: query embeddings are always computed fresh with
// the same model used at ingestion.
type Client struct {
	provider ai.IEmbedProvider
	cfg      Config
}

func NewClient(provider ai.IEmbedProvider, cfg Config) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: embedding provider is required", appErr.ErrConfiguration)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: embedding model is required", appErr.ErrConfiguration)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive, got %d", appErr.ErrConfiguration, cfg.Dimension)
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = defaultMaxBatchSize
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = defaultMaxParallel
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	return &Client{provider: provider, cfg: cfg}, nil
}

func (c *Client) Dimension() int {
	return c.cfg.Dimension
}

func (c *Client) ModelName() string {
	return c.cfg.Model
}

// EmbedTexts embeds texts, preserving order. Sub-batches may complete in any
// order on the wire; the result slice is indexed by input position.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	logger := logutil.GetLogger(ctx)
	vectors := make([][]float32, len(texts))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(c.cfg.MaxParallel)
	for start := 0; start < len(texts); start += c.cfg.MaxBatchSize {
		end := start + c.cfg.MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end
		group.Go(func() error {
			batch, err := c.embedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	logger.Debug("embedded texts",
		zap.Int("count", len(texts)),
		zap.String("model", c.cfg.Model),
		zap.Int("dimension", c.cfg.Dimension),
	)
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var batch [][]float32
	err := retry.Do(ctx, c.cfg.RetryAttempts, c.cfg.RetryBackoff, ai.IsRetryable, func() error {
		out, embedErr := c.provider.Embed(ctx, c.cfg.Model, texts)
		if embedErr != nil {
			return embedErr
		}
		batch = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: provider %s failed after %d attempts: %v",
			appErr.ErrEmbeddingProvider, c.provider.Name(), c.cfg.RetryAttempts, err)
	}
	if len(batch) != len(texts) {
		return nil, fmt.Errorf("%w: provider %s returned %d vectors for %d texts",
			appErr.ErrEmbeddingProvider, c.provider.Name(), len(batch), len(texts))
	}
	for i, vec := range batch {
		if len(vec) != c.cfg.Dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, index expects %d (model %s)",
				appErr.ErrConfiguration, i, len(vec), c.cfg.Dimension, c.cfg.Model)
		}
	}
	return batch, nil
}
