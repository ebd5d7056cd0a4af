package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/kbforge/ragpipe/internal/answer"
	"github.com/kbforge/ragpipe/internal/chunker"
	"github.com/kbforge/ragpipe/internal/embed"
	"github.com/kbforge/ragpipe/internal/logutil"
	"github.com/kbforge/ragpipe/internal/model"
	appErr "github.com/kbforge/ragpipe/internal/pkg/errors"
	"github.com/kbforge/ragpipe/internal/retriever"
	"github.com/kbforge/ragpipe/internal/store"
)

const (
	// Summaries draw on more context than focused answers.
	DefaultSummaryTopK = 10
	// DefaultSummaryMaxLength bounds a summary, in words.
	DefaultSummaryMaxLength = 500
)

// cachedGeneration memoizes only the generation step. Retrieval always runs
// fresh; a hit requires the same question against the exact same ranked
// context, so index changes invalidate naturally.
type cachedGeneration struct {
	Text     string
	Provider string
}

// RAGService wires the ingestion and query pipelines over one knowledge
// base. Both pipelines may run concurrently; the index manager's idempotent
// creation makes that safe.
type RAGService struct {
	chunker   *chunker.Chunker
	embedder  *embed.Client
	indexes   *store.Manager
	upserter  *store.Upserter
	retriever *retriever.Retriever
	generator *answer.Generator
	desc      model.IndexDescriptor
	cache     *expirable.LRU[string, cachedGeneration]
}

func NewRAGService(
	splitter *chunker.Chunker,
	embedder *embed.Client,
	indexes *store.Manager,
	upserter *store.Upserter,
	retr *retriever.Retriever,
	generator *answer.Generator,
	desc model.IndexDescriptor,
) *RAGService {
	return &RAGService{
		chunker:   splitter,
		embedder:  embedder,
		indexes:   indexes,
		upserter:  upserter,
		retriever: retr,
		generator: generator,
		desc:      desc,
		cache:     expirable.NewLRU[string, cachedGeneration](10000, nil, 2*time.Hour),
	}
}

// Ingest chunks, embeds and upserts docs into the knowledge base. The
// report carries success counts even when the run fails partway; on a
// partial upsert the error is an appErr.PartialUpsertError whose ranges say
// where to resume.
func (s *RAGService) Ingest(ctx context.Context, docs []model.Document) (*model.IngestReport, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("index", s.desc.Name))
	report := &model.IngestReport{}

	var chunks []model.Chunk
	for _, doc := range docs {
		docChunks := s.chunker.SplitAll(doc)
		if len(docChunks) == 0 {
			logger.Warn("document produced no chunks, skipping", zap.String("document", doc.Name))
			continue
		}
		report.Documents++
		chunks = append(chunks, docChunks...)
		logger.Info("document chunked", zap.String("document", doc.Name), zap.Int("chunks", len(docChunks)))
	}
	if len(chunks) == 0 {
		return report, nil
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		report.ChunksFailed = len(chunks)
		return report, err
	}

	items := make([]model.EmbeddedChunk, len(chunks))
	for i := range chunks {
		items[i] = model.EmbeddedChunk{Chunk: chunks[i], Vector: vectors[i]}
	}

	idx, err := s.indexes.EnsureIndex(ctx, s.desc)
	if err != nil {
		report.ChunksFailed = len(items)
		return report, err
	}

	if err := s.upserter.Upsert(ctx, idx, items); err != nil {
		var perr *appErr.PartialUpsertError
		if errors.As(err, &perr) {
			report.ChunksWritten = perr.Written
			report.ChunksFailed = perr.Remaining
		} else {
			report.ChunksFailed = len(items)
		}
		return report, err
	}

	report.ChunksWritten = len(items)
	logger.Info("ingestion complete",
		zap.Int("documents", report.Documents),
		zap.Int("chunks_written", report.ChunksWritten),
	)
	return report, nil
}

// Query retrieves grounding context for question and generates an answer.
// The caller always receives a well-formed Answer; "nothing relevant found"
// is an answer, not an error.
func (s *RAGService) Query(ctx context.Context, question string, topK int) (model.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return model.Answer{}, appErr.ErrInvalid
	}

	hits, err := s.retriever.Retrieve(ctx, question, retriever.Options{TopK: topK})
	if err != nil {
		return model.Answer{}, err
	}

	key := s.generationKey(question, hits)
	if cached, ok := s.cache.Get(key); ok {
		return model.Answer{Text: cached.Text, Sources: hits, Provider: cached.Provider}, nil
	}

	ans := s.generator.Answer(ctx, question, hits)
	if ans.Provider != "none" {
		s.cache.Add(key, cachedGeneration{Text: ans.Text, Provider: ans.Provider})
	}
	return ans, nil
}

// Summarize retrieves topK chunks about topic and generates a summary
// bounded to maxLength words. Zero topK and maxLength fall back to wider
// defaults than Query uses, since a summary wants broader context. A
// non-empty source restricts the context to chunks of that document.
func (s *RAGService) Summarize(ctx context.Context, topic string, topK, maxLength int, source string) (model.Answer, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return model.Answer{}, appErr.ErrInvalid
	}
	if topK <= 0 {
		topK = DefaultSummaryTopK
	}
	if maxLength <= 0 {
		maxLength = DefaultSummaryMaxLength
	}

	var filter map[string]string
	if source != "" {
		filter = map[string]string{"source": source}
	}
	hits, err := s.retriever.Retrieve(ctx, topic, retriever.Options{TopK: topK, Filter: filter})
	if err != nil {
		return model.Answer{}, err
	}
	return s.generator.Summarize(ctx, topic, maxLength, hits), nil
}

// Search runs retrieval without generation, dropping hits scoring below
// threshold. threshold is embedding-model dependent; pass the configured
// relevance floor, or 0 to keep everything. A non-empty source restricts
// hits to chunks of that document.
func (s *RAGService) Search(ctx context.Context, query string, topK int, threshold float64, source string) ([]model.RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, appErr.ErrInvalid
	}
	var filter map[string]string
	if source != "" {
		filter = map[string]string{"source": source}
	}
	hits, err := s.retriever.Retrieve(ctx, query, retriever.Options{TopK: topK, Filter: filter})
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		return hits, nil
	}
	filtered := make([]model.RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		if hit.Score >= threshold {
			filtered = append(filtered, hit)
		}
	}
	return filtered, nil
}

// DeleteKnowledgeBase drops the named index; the service's own index is
// dropped when name is empty. Absence is not an error.
func (s *RAGService) DeleteKnowledgeBase(ctx context.Context, name string) error {
	if name == "" {
		name = s.desc.Name
	}
	if err := s.indexes.DeleteIndex(ctx, name); err != nil {
		return err
	}
	s.cache.Purge()
	return nil
}

// ListIndexes names every index the store currently holds.
func (s *RAGService) ListIndexes(ctx context.Context) ([]string, error) {
	return s.indexes.ListIndexes(ctx)
}

func (s *RAGService) generationKey(question string, hits []model.RetrievedChunk) string {
	h := sha256.New()
	h.Write([]byte(question))
	for _, hit := range hits {
		h.Write([]byte{0})
		h.Write([]byte(hit.ID))
	}
	return hex.EncodeToString(h.Sum(nil))
}
