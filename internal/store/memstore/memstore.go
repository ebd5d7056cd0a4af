// Package memstore is an in-process vector store with brute-force cosine
// search. It backs tests and small local setups where running Endee is not
// worth the trouble; it implements the same Client contract, conflicts and
// all, so lifecycle behavior matches the real backend.
package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kbforge/ragpipe/internal/model"
	appErr "github.com/kbforge/ragpipe/internal/pkg/errors"
	"github.com/kbforge/ragpipe/internal/store"
)

type Client struct {
	mu      sync.RWMutex
	indexes map[string]*indexState
}

type indexState struct {
	desc  model.IndexDescriptor
	items map[string]model.EmbeddedChunk
}

func NewClient() *Client {
	return &Client{indexes: make(map[string]*indexState)}
}

func (c *Client) CreateIndex(ctx context.Context, desc model.IndexDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.indexes[desc.Name]; ok {
		return fmt.Errorf("%w: index %q already exists", appErr.ErrConflict, desc.Name)
	}
	c.indexes[desc.Name] = &indexState{
		desc:  desc,
		items: make(map[string]model.EmbeddedChunk),
	}
	return nil
}

func (c *Client) GetIndex(ctx context.Context, name string) (store.Index, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: index %q", appErr.ErrNotFound, name)
	}
	return &index{client: c, name: name, dimension: state.desc.Dimension}, nil
}

func (c *Client) ListIndexes(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.indexes))
	for name := range c.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.indexes[name]; !ok {
		return fmt.Errorf("%w: index %q", appErr.ErrNotFound, name)
	}
	delete(c.indexes, name)
	return nil
}

// Count reports how many chunks the named index holds.
func (c *Client) Count(name string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.indexes[name]
	if !ok {
		return 0
	}
	return len(state.items)
}

type index struct {
	client    *Client
	name      string
	dimension int
}

func (i *index) Name() string {
	return i.name
}

func (i *index) Dimension() int {
	return i.dimension
}

func (i *index) Upsert(ctx context.Context, items []model.EmbeddedChunk) error {
	i.client.mu.Lock()
	defer i.client.mu.Unlock()
	state, ok := i.client.indexes[i.name]
	if !ok {
		return fmt.Errorf("%w: index %q", appErr.ErrNotFound, i.name)
	}
	for _, item := range items {
		if len(item.Vector) != state.desc.Dimension {
			return fmt.Errorf("%w: chunk %s has dimension %d, index expects %d",
				appErr.ErrConfiguration, item.ID, len(item.Vector), state.desc.Dimension)
		}
	}
	for _, item := range items {
		state.items[item.ID] = item
	}
	return nil
}

func (i *index) Query(ctx context.Context, vector []float32, topK, ef int, filter map[string]string) ([]model.RetrievedChunk, error) {
	i.client.mu.RLock()
	defer i.client.mu.RUnlock()
	state, ok := i.client.indexes[i.name]
	if !ok {
		return nil, fmt.Errorf("%w: index %q", appErr.ErrNotFound, i.name)
	}
	if topK <= 0 {
		topK = 5
	}
	results := make([]model.RetrievedChunk, 0, len(state.items))
	for _, item := range state.items {
		if filter != nil {
			if source, ok := filter["source"]; ok && item.Source != source {
				continue
			}
		}
		results = append(results, model.RetrievedChunk{
			ID:     item.ID,
			Text:   item.Text,
			Source: item.Source,
			Index:  item.Index,
			Score:  cosineSimilarity(vector, item.Vector),
		})
	}
	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].ID < results[b].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
