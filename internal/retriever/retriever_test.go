package retriever_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kbforge/ragpipe/internal/ai"
	"github.com/kbforge/ragpipe/internal/embed"
	"github.com/kbforge/ragpipe/internal/model"
	"github.com/kbforge/ragpipe/internal/retriever"
	"github.com/kbforge/ragpipe/internal/store"
	"github.com/kbforge/ragpipe/internal/store/memstore"
)

// unitEmbedProvider maps each distinct text onto a distinct axis-aligned
// unit vector, so texts only match themselves under cosine similarity.
type unitEmbedProvider struct {
	dim  int
	seen map[string]int
}

func newUnitEmbedProvider(dim int) *unitEmbedProvider {
	return &unitEmbedProvider{dim: dim, seen: map[string]int{}}
}

func (p *unitEmbedProvider) Name() string { return "unit" }

func (p *unitEmbedProvider) Embed(ctx context.Context, modelName string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		axis, ok := p.seen[text]
		if !ok {
			axis = len(p.seen) % p.dim
			p.seen[text] = axis
		}
		vec := make([]float32, p.dim)
		vec[axis] = 1
		out[i] = vec
	}
	return out, nil
}

var _ ai.IEmbedProvider = (*unitEmbedProvider)(nil)

func testSetup(t *testing.T) (*embed.Client, *store.Manager, model.IndexDescriptor) {
	t.Helper()
	provider := newUnitEmbedProvider(8)
	client, err := embed.NewClient(provider, embed.Config{Model: "unit", Dimension: 8})
	require.NoError(t, err)
	manager := store.NewManager(memstore.NewClient())
	desc := model.IndexDescriptor{Name: "kb", Dimension: 8, SpaceType: "cosine", Precision: model.PrecisionFloat32, M: 16, EfConstruction: 128}
	return client, manager, desc
}

func seedChunks(t *testing.T, client *embed.Client, manager *store.Manager, desc model.IndexDescriptor, texts []string) {
	t.Helper()
	ctx := context.Background()
	idx, err := manager.EnsureIndex(ctx, desc)
	require.NoError(t, err)
	vectors, err := client.EmbedTexts(ctx, texts)
	require.NoError(t, err)
	items := make([]model.EmbeddedChunk, len(texts))
	for i := range texts {
		items[i] = model.EmbeddedChunk{
			Chunk:  model.Chunk{ID: texts[i], Source: "doc.txt", Index: i, Text: texts[i]},
			Vector: vectors[i],
		}
	}
	require.NoError(t, idx.Upsert(ctx, items))
}

func TestRetrieve_RanksExactMatchFirst(t *testing.T) {
	client, manager, desc := testSetup(t)
	seedChunks(t, client, manager, desc, []string{"alpha", "beta", "gamma"})

	r := retriever.New(client, manager, desc, retriever.Config{})
	hits, err := r.Retrieve(context.Background(), "beta", retriever.Options{TopK: 3})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, "beta", hits[0].Text)
	require.Greater(t, hits[0].Score, 0.5)
	for i := 1; i < len(hits); i++ {
		require.LessOrEqual(t, hits[i].Score, hits[i-1].Score)
	}
}

func TestRetrieve_NeverExceedsTopK(t *testing.T) {
	client, manager, desc := testSetup(t)
	seedChunks(t, client, manager, desc, []string{"a", "b", "c", "d", "e", "f"})

	r := retriever.New(client, manager, desc, retriever.Config{})
	hits, err := r.Retrieve(context.Background(), "a", retriever.Options{TopK: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)
}

func TestRetrieve_EmptyIndexYieldsEmptyList(t *testing.T) {
	client, manager, desc := testSetup(t)

	r := retriever.New(client, manager, desc, retriever.Config{})
	hits, err := r.Retrieve(context.Background(), "anything", retriever.Options{})
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestRetrieve_TiesBrokenByAscendingID(t *testing.T) {
	client, manager, desc := testSetup(t)
	// Same text twice under different IDs: identical vectors, identical
	// scores.
	ctx := context.Background()
	idx, err := manager.EnsureIndex(ctx, desc)
	require.NoError(t, err)
	vectors, err := client.EmbedTexts(ctx, []string{"same", "same"})
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []model.EmbeddedChunk{
		{Chunk: model.Chunk{ID: "z-later", Source: "doc", Index: 1, Text: "same"}, Vector: vectors[0]},
		{Chunk: model.Chunk{ID: "a-early", Source: "doc", Index: 0, Text: "same"}, Vector: vectors[1]},
	}))

	r := retriever.New(client, manager, desc, retriever.Config{})
	hits, err := r.Retrieve(ctx, "same", retriever.Options{TopK: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "a-early", hits[0].ID)
	require.Equal(t, "z-later", hits[1].ID)
}

func TestRetrieve_SourceFilter(t *testing.T) {
	client, manager, desc := testSetup(t)
	ctx := context.Background()
	idx, err := manager.EnsureIndex(ctx, desc)
	require.NoError(t, err)
	vectors, err := client.EmbedTexts(ctx, []string{"shared", "shared2"})
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []model.EmbeddedChunk{
		{Chunk: model.Chunk{ID: "c1", Source: "a.txt", Index: 0, Text: "shared"}, Vector: vectors[0]},
		{Chunk: model.Chunk{ID: "c2", Source: "b.txt", Index: 0, Text: "shared2"}, Vector: vectors[1]},
	}))

	r := retriever.New(client, manager, desc, retriever.Config{})
	hits, err := r.Retrieve(ctx, "shared", retriever.Options{Filter: map[string]string{"source": "b.txt"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "b.txt", hits[0].Source)
}
