// Package store manages the lifecycle of named vector indexes and the
// batched writes into them. The vector database itself is an external
// network service addressed by index name; this package is the only layer
// that talks to it.
package store

import (
	"context"

	"github.com/kbforge/ragpipe/internal/model"
)

// Client is the vector-store backend boundary. Implementations translate
// whatever shapes the backend returns into the normalized types here; no
// other package interprets backend responses.
type Client interface {
	CreateIndex(ctx context.Context, desc model.IndexDescriptor) error
	GetIndex(ctx context.Context, name string) (Index, error)
	ListIndexes(ctx context.Context) ([]string, error)
	DeleteIndex(ctx context.Context, name string) error
}

// Index is a handle to one live vector index.
type Index interface {
	Name() string
	Dimension() int
	// Upsert writes items keyed by chunk identifier; an existing identifier
	// is overwritten. Callers must keep len(items) at or below the store's
	// per-request ceiling.
	Upsert(ctx context.Context, items []model.EmbeddedChunk) error
	// Query runs a similarity search and returns ranked results. filter
	// restricts matches on metadata fields when non-empty.
	Query(ctx context.Context, vector []float32, topK, ef int, filter map[string]string) ([]model.RetrievedChunk, error)
}
