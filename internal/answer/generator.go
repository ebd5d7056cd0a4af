package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kbforge/ragpipe/internal/ai"
	"github.com/kbforge/ragpipe/internal/logutil"
	"github.com/kbforge/ragpipe/internal/model"
)

const promptTemplate = `Context information is below:
---
%s
---

Given the context above, answer the following question. If the context doesn't contain relevant information to answer the question, say "I don't have enough information in the provided context to answer this question."

Question: %s

Answer:`

const summaryPromptTemplate = `Based on the following information, provide a comprehensive summary about %q.
Maximum length: %d words.

Context:
%s

Summary:`

const (
	// NoContextAnswer is returned when retrieval found nothing to ground on.
	NoContextAnswer = "I couldn't find any relevant information to answer your question."
	// ExhaustedAnswer is the deterministic terminal answer after every
	// generation provider has failed.
	ExhaustedAnswer = "I was unable to generate an answer because no generation provider is currently available. Please retry later."
)

// Generator turns a question plus its retrieved grounding into an Answer by
// walking the provider fallback chain. It never returns an error: provider
// exhaustion and empty retrieval both produce well-formed Answer values.
type Generator struct {
	chain *ai.GroupGenerator
}

func NewGenerator(chain *ai.GroupGenerator) *Generator {
	return &Generator{chain: chain}
}

// Answer generates a grounded answer for question from chunks.
func (g *Generator) Answer(ctx context.Context, question string, chunks []model.RetrievedChunk) model.Answer {
	logger := logutil.GetLogger(ctx)
	if len(chunks) == 0 {
		return model.Answer{
			Text:     NoContextAnswer,
			Sources:  []model.RetrievedChunk{},
			Provider: "none",
		}
	}

	prompt := BuildPrompt(question, chunks)
	text, provider, err := g.chain.Generate(ctx, prompt)
	if err != nil {
		logger.Error("all generation providers exhausted", zap.Int("providers", g.chain.Len()), zap.Error(err))
		return model.Answer{
			Text:     ExhaustedAnswer,
			Sources:  chunks,
			Provider: "none",
		}
	}
	logger.Info("answer generated", zap.String("provider", provider), zap.Int("sources", len(chunks)))
	return model.Answer{
		Text:     text,
		Sources:  chunks,
		Provider: provider,
	}
}

// Summarize generates a bounded-length summary of topic from chunks. It
// shares the Answer contract: empty retrieval and provider exhaustion both
// produce well-formed values, never errors.
func (g *Generator) Summarize(ctx context.Context, topic string, maxLength int, chunks []model.RetrievedChunk) model.Answer {
	logger := logutil.GetLogger(ctx)
	if len(chunks) == 0 {
		return model.Answer{
			Text:     NoContextAnswer,
			Sources:  []model.RetrievedChunk{},
			Provider: "none",
		}
	}

	prompt := BuildSummaryPrompt(topic, maxLength, chunks)
	text, provider, err := g.chain.Generate(ctx, prompt)
	if err != nil {
		logger.Error("all generation providers exhausted", zap.Int("providers", g.chain.Len()), zap.Error(err))
		return model.Answer{
			Text:     ExhaustedAnswer,
			Sources:  chunks,
			Provider: "none",
		}
	}
	logger.Info("summary generated", zap.String("provider", provider), zap.Int("sources", len(chunks)))
	return model.Answer{
		Text:     text,
		Sources:  chunks,
		Provider: provider,
	}
}

// BuildSummaryPrompt joins the chunk texts into one context block and asks
// for a summary capped at maxLength words.
func BuildSummaryPrompt(topic string, maxLength int, chunks []model.RetrievedChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		parts = append(parts, chunk.Text)
	}
	return fmt.Sprintf(summaryPromptTemplate, topic, maxLength, strings.Join(parts, "\n\n"))
}

// BuildPrompt labels every chunk with its source document, instructs the
// model to answer only from that context, and appends the question.
func BuildPrompt(question string, chunks []model.RetrievedChunk) string {
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		parts = append(parts, fmt.Sprintf("[%d] From %s:\n%s", i+1, chunk.Source, chunk.Text))
	}
	return fmt.Sprintf(promptTemplate, strings.Join(parts, "\n\n"), question)
}
