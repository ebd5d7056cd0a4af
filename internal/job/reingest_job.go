package job

import (
	"context"

	"github.com/kbforge/ragpipe/internal/docsource"
	"github.com/kbforge/ragpipe/internal/service"
)

// ReingestJob re-reads the source directory and writes every document back
// into the knowledge base. Chunk identifiers are deterministic, so unchanged
// documents overwrite themselves in place.
type ReingestJob struct {
	rag    *service.RAGService
	loader *docsource.Loader
}

func NewReingestJob(rag *service.RAGService, loader *docsource.Loader) *ReingestJob {
	return &ReingestJob{rag: rag, loader: loader}
}

func (j *ReingestJob) Name() string {
	return "reingest"
}

func (j *ReingestJob) Run(ctx context.Context) error {
	if j.rag == nil || j.loader == nil {
		return nil
	}
	docs, err := j.loader.Load(ctx)
	if err != nil {
		return err
	}
	_, err = j.rag.Ingest(ctx, docs)
	return err
}
