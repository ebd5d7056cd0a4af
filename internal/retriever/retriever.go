package retriever

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/kbforge/ragpipe/internal/embed"
	"github.com/kbforge/ragpipe/internal/logutil"
	"github.com/kbforge/ragpipe/internal/model"
	appErr "github.com/kbforge/ragpipe/internal/pkg/errors"
	"github.com/kbforge/ragpipe/internal/store"
)

const (
	DefaultTopK = 5
	DefaultEf   = 128
)

type Config struct {
	TopK int
	Ef   int
}

// Options tune a single retrieval; zero values fall back to the configured
// defaults.
type Options struct {
	TopK   int
	Ef     int
	Filter map[string]string
}

// Retriever embeds a query and runs a similarity search against the index.
// An empty or unreachable index produces an empty result list, not an
// error: absence of context is a normal outcome the answer path handles.
type Retriever struct {
	embedder *embed.Client
	indexes  *store.Manager
	desc     model.IndexDescriptor
	cfg      Config
}

func New(embedder *embed.Client, indexes *store.Manager, desc model.IndexDescriptor, cfg Config) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Ef <= 0 {
		cfg.Ef = DefaultEf
	}
	return &Retriever{embedder: embedder, indexes: indexes, desc: desc, cfg: cfg}
}

// Retrieve returns up to topK chunks ranked by descending similarity, ties
// broken by ascending chunk identifier so ordering is deterministic. The
// query embedding is always computed fresh with the ingestion model.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) ([]model.RetrievedChunk, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("index", r.desc.Name))
	topK := opts.TopK
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	ef := opts.Ef
	if ef <= 0 {
		ef = r.cfg.Ef
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	idx, err := r.indexes.EnsureIndex(ctx, r.desc)
	if err != nil {
		if appErr.IsConfiguration(err) {
			return nil, err
		}
		logger.Warn("index unreachable, returning no results", zap.Error(err))
		return []model.RetrievedChunk{}, nil
	}

	hits, err := idx.Query(ctx, vector, topK, ef, opts.Filter)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("similarity query failed, returning no results", zap.Error(err))
		return []model.RetrievedChunk{}, nil
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].ID < hits[b].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	if len(hits) > 0 {
		logger.Debug("retrieved context",
			zap.Int("results", len(hits)),
			zap.String("top_source", hits[0].Source),
			zap.Float64("top_score", hits[0].Score),
		)
	}
	return hits, nil
}
