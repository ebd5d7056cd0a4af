package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kbforge/ragpipe/internal/ai"
	"github.com/kbforge/ragpipe/internal/answer"
	"github.com/kbforge/ragpipe/internal/chunker"
	"github.com/kbforge/ragpipe/internal/embed"
	"github.com/kbforge/ragpipe/internal/model"
	"github.com/kbforge/ragpipe/internal/retriever"
	"github.com/kbforge/ragpipe/internal/service"
	"github.com/kbforge/ragpipe/internal/store"
	"github.com/kbforge/ragpipe/internal/store/memstore"
)

const testDimension = 32

// vocabEmbedProvider assigns each distinct word its own dimension, so texts
// sharing vocabulary land close under cosine similarity and disjoint texts
// score exactly zero.
type vocabEmbedProvider struct {
	mu    sync.Mutex
	words map[string]int
}

func newVocabEmbedProvider() *vocabEmbedProvider {
	return &vocabEmbedProvider{words: make(map[string]int)}
}

func (p *vocabEmbedProvider) Name() string { return "vocab" }

func (p *vocabEmbedProvider) dim(word string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.words[word]; ok {
		return d
	}
	d := len(p.words) % testDimension
	p.words[word] = d
	return d
}

func (p *vocabEmbedProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, testDimension)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			vec[p.dim(word)]++
		}
		out[i] = vec
	}
	return out, nil
}

type countingGenerator struct {
	calls atomic.Int64
	reply string
}

func (g *countingGenerator) Name() string { return "stub" }

func (g *countingGenerator) Generate(ctx context.Context, model string, prompt string) (string, error) {
	g.calls.Add(1)
	return g.reply, nil
}

type failingGenerator struct{}

func (failingGenerator) Name() string { return "down" }

func (failingGenerator) Generate(ctx context.Context, model string, prompt string) (string, error) {
	return "", errors.New("connection refused")
}

type fixture struct {
	svc       *service.RAGService
	store     *memstore.Client
	generator *countingGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	splitter, err := chunker.New(512, 50)
	require.NoError(t, err)

	embedder, err := embed.NewClient(newVocabEmbedProvider(), embed.Config{
		Model:     "test-embed",
		Dimension: testDimension,
	})
	require.NoError(t, err)

	client := memstore.NewClient()
	manager := store.NewManager(client)
	desc := model.IndexDescriptor{
		Name:           "kb",
		Dimension:      testDimension,
		SpaceType:      "cosine",
		Precision:      model.PrecisionInt8D,
		M:              16,
		EfConstruction: 128,
	}

	gen := &countingGenerator{reply: "Berlin is the capital of Germany."}
	chain := ai.NewGroupGenerator([]ai.GeneratorEntry{
		{Name: "down", Model: "m1", Provider: failingGenerator{}},
		{Name: "stub", Model: "m2", Provider: gen},
	})

	svc := service.NewRAGService(
		splitter,
		embedder,
		manager,
		store.NewUpserter(store.UpserterConfig{MaxBatchSize: 1000}),
		retriever.New(embedder, manager, desc, retriever.Config{TopK: 5, Ef: 128}),
		answer.NewGenerator(chain),
		desc,
	)
	return &fixture{svc: svc, store: client, generator: gen}
}

func TestIngestChunksAndReportsCounts(t *testing.T) {
	fx := newFixture(t)
	doc := model.Document{Name: "guide", Text: strings.Repeat("a", 1000)}

	report, err := fx.svc.Ingest(context.Background(), []model.Document{doc})
	require.NoError(t, err)
	require.Equal(t, 1, report.Documents)
	require.Equal(t, 3, report.ChunksWritten)
	require.Equal(t, 0, report.ChunksFailed)
	require.Equal(t, 3, fx.store.Count("kb"))
}

func TestIngestSkipsEmptyDocuments(t *testing.T) {
	fx := newFixture(t)
	docs := []model.Document{
		{Name: "empty", Text: ""},
		{Name: "real", Text: "capital cities of europe"},
	}

	report, err := fx.svc.Ingest(context.Background(), docs)
	require.NoError(t, err)
	require.Equal(t, 1, report.Documents)
	require.Equal(t, 1, report.ChunksWritten)
}

func TestQueryAnswersFromRelevantContext(t *testing.T) {
	fx := newFixture(t)
	docs := []model.Document{
		{Name: "germany", Text: "berlin is the capital city of germany and its largest city"},
		{Name: "cooking", Text: "whisk eggs with butter over low heat for soft scrambled eggs"},
		{Name: "astronomy", Text: "jupiter is the largest planet orbiting the sun"},
	}
	_, err := fx.svc.Ingest(context.Background(), docs)
	require.NoError(t, err)

	ans, err := fx.svc.Query(context.Background(), "what is the capital city of germany", 5)
	require.NoError(t, err)
	require.Equal(t, "Berlin is the capital of Germany.", ans.Text)
	require.Equal(t, "stub", ans.Provider)
	require.NotEmpty(t, ans.Sources)
	require.Equal(t, "germany", ans.Sources[0].Source)
	require.Greater(t, ans.Sources[0].Score, 0.5)
}

func TestQueryAgainstEmptyIndex(t *testing.T) {
	fx := newFixture(t)

	ans, err := fx.svc.Query(context.Background(), "what is the capital of germany", 5)
	require.NoError(t, err)
	require.Equal(t, answer.NoContextAnswer, ans.Text)
	require.Empty(t, ans.Sources)
	require.Equal(t, "none", ans.Provider)
	require.Zero(t, fx.generator.calls.Load())
}

func TestQueryRejectsBlankQuestion(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.Query(context.Background(), "   ", 5)
	require.Error(t, err)
}

func TestQueryCachesGenerationForIdenticalContext(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.Ingest(context.Background(), []model.Document{
		{Name: "germany", Text: "berlin is the capital city of germany"},
	})
	require.NoError(t, err)

	first, err := fx.svc.Query(context.Background(), "capital city of germany", 5)
	require.NoError(t, err)
	second, err := fx.svc.Query(context.Background(), "capital city of germany", 5)
	require.NoError(t, err)

	require.Equal(t, first.Text, second.Text)
	require.Equal(t, first.Provider, second.Provider)
	require.Equal(t, first.Sources, second.Sources)
	require.Equal(t, int64(1), fx.generator.calls.Load())
}

func TestReingestOverwritesInsteadOfDuplicating(t *testing.T) {
	fx := newFixture(t)
	doc := model.Document{Name: "guide", Text: strings.Repeat("b", 1000)}

	_, err := fx.svc.Ingest(context.Background(), []model.Document{doc})
	require.NoError(t, err)
	_, err = fx.svc.Ingest(context.Background(), []model.Document{doc})
	require.NoError(t, err)

	require.Equal(t, 3, fx.store.Count("kb"))
}

func TestSearchAppliesRelevanceFloor(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.Ingest(context.Background(), []model.Document{
		{Name: "germany", Text: "berlin is the capital city of germany"},
		{Name: "cooking", Text: "whisk eggs with butter over low heat"},
	})
	require.NoError(t, err)

	all, err := fx.svc.Search(context.Background(), "capital city of germany", 5, 0, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	relevant, err := fx.svc.Search(context.Background(), "capital city of germany", 5, 0.5, "")
	require.NoError(t, err)
	require.Len(t, relevant, 1)
	require.Equal(t, "germany", relevant[0].Source)
}

func TestSearchFiltersBySource(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.Ingest(context.Background(), []model.Document{
		{Name: "germany", Text: "berlin is the capital city of germany"},
		{Name: "france", Text: "paris is the capital city of france"},
	})
	require.NoError(t, err)

	hits, err := fx.svc.Search(context.Background(), "capital city", 5, 0, "france")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "france", hits[0].Source)
}

func TestSummarizeUsesRetrievedContext(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.Ingest(context.Background(), []model.Document{
		{Name: "germany", Text: "berlin is the capital city of germany"},
		{Name: "cooking", Text: "whisk eggs with butter over low heat"},
	})
	require.NoError(t, err)

	ans, err := fx.svc.Summarize(context.Background(), "capital city of germany", 0, 0, "")
	require.NoError(t, err)
	require.Equal(t, "stub", ans.Provider)
	require.NotEmpty(t, ans.Sources)
	require.Equal(t, "germany", ans.Sources[0].Source)
	require.Equal(t, int64(1), fx.generator.calls.Load())
}

func TestSummarizeEmptyIndex(t *testing.T) {
	fx := newFixture(t)

	ans, err := fx.svc.Summarize(context.Background(), "anything at all", 0, 0, "")
	require.NoError(t, err)
	require.Equal(t, answer.NoContextAnswer, ans.Text)
	require.Equal(t, "none", ans.Provider)
	require.Zero(t, fx.generator.calls.Load())
}

func TestSummarizeRejectsBlankTopic(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.Summarize(context.Background(), "  ", 0, 0, "")
	require.Error(t, err)
}

func TestDeleteKnowledgeBase(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.Ingest(context.Background(), []model.Document{
		{Name: "germany", Text: "berlin is the capital city of germany"},
	})
	require.NoError(t, err)

	require.NoError(t, fx.svc.DeleteKnowledgeBase(context.Background(), ""))
	names, err := fx.svc.ListIndexes(context.Background())
	require.NoError(t, err)
	require.Empty(t, names)

	// idempotent
	require.NoError(t, fx.svc.DeleteKnowledgeBase(context.Background(), ""))
}
