package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kbforge/ragpipe/internal/logutil"
	"github.com/kbforge/ragpipe/internal/model"
	appErr "github.com/kbforge/ragpipe/internal/pkg/errors"
)

// Manager owns the idempotent lifecycle of named indexes. Multiple pipeline
// instances may call EnsureIndex for the same descriptor concurrently; a
// create that loses the race is recovered by fetching the index the winner
// created, never surfaced as an error.
type Manager struct {
	client Client
}

func NewManager(client Client) *Manager {
	return &Manager{client: client}
}

// EnsureIndex returns a handle to an index matching desc, creating it when
// absent. A dimension mismatch with an existing index of the same name is a
// configuration error; it is never silently migrated.
func (m *Manager) EnsureIndex(ctx context.Context, desc model.IndexDescriptor) (Index, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("index", desc.Name))

	idx, err := m.client.GetIndex(ctx, desc.Name)
	switch {
	case err == nil:
		return m.checkDimension(idx, desc)
	case !appErr.IsNotFound(err):
		return nil, err
	}

	// Get-then-create is racy against other pipeline instances; a conflict
	// here means somebody else created the index between our two calls, and
	// the fetch below picks it up.
	if err := m.client.CreateIndex(ctx, desc); err != nil {
		if !appErr.IsConflict(err) {
			return nil, err
		}
		logger.Warn("index created concurrently elsewhere, reusing it")
	} else {
		logger.Info("index created",
			zap.Int("dimension", desc.Dimension),
			zap.String("space_type", desc.SpaceType),
			zap.String("precision", string(desc.Precision)),
		)
	}

	idx, err = m.client.GetIndex(ctx, desc.Name)
	if err != nil {
		return nil, err
	}
	return m.checkDimension(idx, desc)
}

// DeleteIndex removes the named index. Deleting an index that does not exist
// is not an error.
func (m *Manager) DeleteIndex(ctx context.Context, name string) error {
	err := m.client.DeleteIndex(ctx, name)
	if err == nil || appErr.IsNotFound(err) {
		logutil.GetLogger(ctx).Info("index deleted", zap.String("index", name))
		return nil
	}
	return err
}

// ListIndexes returns the names of all indexes currently present.
func (m *Manager) ListIndexes(ctx context.Context) ([]string, error) {
	return m.client.ListIndexes(ctx)
}

func (m *Manager) checkDimension(idx Index, desc model.IndexDescriptor) (Index, error) {
	if dim := idx.Dimension(); dim > 0 && dim != desc.Dimension {
		return nil, fmt.Errorf("%w: index %q has dimension %d, descriptor wants %d",
			appErr.ErrConfiguration, desc.Name, dim, desc.Dimension)
	}
	return idx, nil
}
