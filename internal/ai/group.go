package ai

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kbforge/ragpipe/internal/logutil"
)

// GeneratorEntry binds a provider to the model it should run.
type GeneratorEntry struct {
	Name     string
	Model    string
	Provider IGenerateProvider
}

// GroupGenerator tries providers in fixed priority order until one returns
// an answer. A provider answering "I don't know" is a success, not a fault;
// only errors (auth, rate limit, timeout, network, server) move the chain to
// the next entry.
type GroupGenerator struct {
	items []GeneratorEntry
}

func NewGroupGenerator(items []GeneratorEntry) *GroupGenerator {
	return &GroupGenerator{items: items}
}

func (g *GroupGenerator) Len() int {
	return len(g.items)
}

// Generate returns the first successful completion together with the name of
// the provider that produced it. When every provider fails, the last error
// is returned.
func (g *GroupGenerator) Generate(ctx context.Context, prompt string) (string, string, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Provider == nil {
			continue
		}
		res, err := item.Provider.Generate(ctx, item.Model, prompt)
		if err == nil {
			return res, item.Name, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("generation provider failed, trying next",
			zap.Int("index", i),
			zap.String("provider", item.Name),
			zap.String("model", item.Model),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
	}
	if lastErr == nil {
		return "", "", errors.New("no generation provider configured")
	}
	return "", "", lastErr
}
