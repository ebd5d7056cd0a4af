package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kbforge/ragpipe/internal/model"
	appErr "github.com/kbforge/ragpipe/internal/pkg/errors"
	"github.com/kbforge/ragpipe/internal/store"
	"github.com/kbforge/ragpipe/internal/store/memstore"
)

func testDescriptor(name string) model.IndexDescriptor {
	return model.IndexDescriptor{
		Name:           name,
		Dimension:      8,
		SpaceType:      "cosine",
		Precision:      model.PrecisionInt8D,
		M:              16,
		EfConstruction: 128,
	}
}

func TestEnsureIndex_CreatesWhenAbsent(t *testing.T) {
	client := memstore.NewClient()
	manager := store.NewManager(client)

	idx, err := manager.EnsureIndex(context.Background(), testDescriptor("kb"))
	require.NoError(t, err)
	require.Equal(t, "kb", idx.Name())
	require.Equal(t, 8, idx.Dimension())

	names, err := manager.ListIndexes(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"kb"}, names)
}

func TestEnsureIndex_ReusesExisting(t *testing.T) {
	client := memstore.NewClient()
	manager := store.NewManager(client)

	_, err := manager.EnsureIndex(context.Background(), testDescriptor("kb"))
	require.NoError(t, err)
	_, err = manager.EnsureIndex(context.Background(), testDescriptor("kb"))
	require.NoError(t, err)

	names, err := manager.ListIndexes(context.Background())
	require.NoError(t, err)
	require.Len(t, names, 1)
}

func TestEnsureIndex_DimensionMismatchIsFatal(t *testing.T) {
	client := memstore.NewClient()
	manager := store.NewManager(client)

	_, err := manager.EnsureIndex(context.Background(), testDescriptor("kb"))
	require.NoError(t, err)

	other := testDescriptor("kb")
	other.Dimension = 16
	_, err = manager.EnsureIndex(context.Background(), other)
	require.ErrorIs(t, err, appErr.ErrConfiguration)
}

func TestEnsureIndex_ConcurrentCallersConverge(t *testing.T) {
	client := memstore.NewClient()
	manager := store.NewManager(client)

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = manager.EnsureIndex(context.Background(), testDescriptor("kb"))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "caller %d", i)
	}
	names, err := manager.ListIndexes(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"kb"}, names)
}

// raceClient reports "not found" to every Get until a create happened, then
// fails the create with a conflict. This forces the manager down its
// lost-the-race path deterministically.
type raceClient struct {
	*memstore.Client
	mu      sync.Mutex
	created bool
}

func (r *raceClient) GetIndex(ctx context.Context, name string) (store.Index, error) {
	r.mu.Lock()
	created := r.created
	r.mu.Unlock()
	if !created {
		return nil, fmt.Errorf("%w: index %q", appErr.ErrNotFound, name)
	}
	return r.Client.GetIndex(ctx, name)
}

func (r *raceClient) CreateIndex(ctx context.Context, desc model.IndexDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.created {
		return fmt.Errorf("%w: index %q already exists", appErr.ErrConflict, desc.Name)
	}
	// Simulate another instance winning the race between our Get and Create.
	if err := r.Client.CreateIndex(ctx, desc); err != nil {
		return err
	}
	r.created = true
	return fmt.Errorf("%w: index %q already exists", appErr.ErrConflict, desc.Name)
}

func TestEnsureIndex_SwallowsCreateConflict(t *testing.T) {
	client := &raceClient{Client: memstore.NewClient()}
	manager := store.NewManager(client)

	idx, err := manager.EnsureIndex(context.Background(), testDescriptor("kb"))
	require.NoError(t, err)
	require.Equal(t, "kb", idx.Name())
}

func TestDeleteIndex_AbsentIsNotAnError(t *testing.T) {
	client := memstore.NewClient()
	manager := store.NewManager(client)

	require.NoError(t, manager.DeleteIndex(context.Background(), "never-created"))

	_, err := manager.EnsureIndex(context.Background(), testDescriptor("kb"))
	require.NoError(t, err)
	require.NoError(t, manager.DeleteIndex(context.Background(), "kb"))
	require.NoError(t, manager.DeleteIndex(context.Background(), "kb"))
}
