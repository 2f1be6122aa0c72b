package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docubot-be/internal/pkg/logger"
	"docubot-be/pkg/apperror"
)

func newTestManager(t *testing.T, backend Backend) *Manager {
	t.Helper()
	m, err := NewManager(backend, 4, logger.NewNop())
	require.NoError(t, err)
	return m
}

type failingSaveBackend struct {
	*MemoryBackend
	fail bool
}

func (b *failingSaveBackend) Save(ctx context.Context, snap *Snapshot) error {
	if b.fail {
		return errors.New("disk full")
	}
	return b.MemoryBackend.Save(ctx, snap)
}

func TestManagerOpenOrCreate(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, NewMemoryBackend())

	store, existed, err := m.OpenOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, 0, store.Len())

	require.NoError(t, m.AddTexts(store, []string{"a"}, [][]float32{{1, 1}}))
	require.NoError(t, m.Persist(ctx, store))

	again, existed, err := m.OpenOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, 1, again.Len())

	_, _, err = m.OpenOrCreate(ctx, "../bob")
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestManagerIngestAndQuery(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	m := newTestManager(t, backend)

	res, err := m.Ingest(ctx, "alice", "faq.txt",
		[]string{"Refunds are processed in 5 days", "Shipping is free"},
		[][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	assert.Equal(t, &IngestResult{UserID: "alice", Added: 2, Total: 2, Dimension: 2, Created: true}, res)

	res, err = m.Ingest(ctx, "alice", "more.txt", []string{"Gift cards never expire"}, [][]float32{{1, 1}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.False(t, res.Created)

	// a fresh manager over the same backend sees the persisted store
	reopened := newTestManager(t, backend)
	results, err := reopened.Query(ctx, "alice", []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Refunds are processed in 5 days", results[0].Passage.Text)

	n, dim, err := reopened.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, dim)
}

func TestManagerQueryWithoutStore(t *testing.T) {
	m := newTestManager(t, NewMemoryBackend())

	_, err := m.Query(context.Background(), "nobody", []float32{1}, 3)
	assert.ErrorIs(t, err, apperror.ErrEmptyStore)
}

func TestManagerIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, NewMemoryBackend())

	_, err := m.Ingest(ctx, "alice", "", []string{"alice secret"}, [][]float32{{1, 0}})
	require.NoError(t, err)
	_, err = m.Ingest(ctx, "bob", "", []string{"bob secret"}, [][]float32{{1, 0}})
	require.NoError(t, err)

	for _, user := range []string{"alice", "bob"} {
		results, err := m.Query(ctx, user, []float32{1, 0}, 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, user+" secret", results[0].Passage.Text)
	}
}

func TestManagerIngestFailedPersistKeepsPriorState(t *testing.T) {
	ctx := context.Background()
	backend := &failingSaveBackend{MemoryBackend: NewMemoryBackend()}
	m := newTestManager(t, backend)

	_, err := m.Ingest(ctx, "alice", "", []string{"kept"}, [][]float32{{1}})
	require.NoError(t, err)

	backend.fail = true
	_, err = m.Ingest(ctx, "alice", "", []string{"lost"}, [][]float32{{2}})
	require.Error(t, err)

	backend.fail = false
	results, err := m.Query(ctx, "alice", []float32{1}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "kept", results[0].Passage.Text)
}

func TestManagerIngestValidationErrors(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, NewMemoryBackend())

	_, err := m.Ingest(ctx, "alice", "", []string{"a", "b"}, [][]float32{{1}})
	assert.ErrorIs(t, err, apperror.ErrLengthMismatch)

	_, err = m.Ingest(ctx, "alice", "", []string{"a"}, [][]float32{{1, 2}})
	require.NoError(t, err)
	_, err = m.Ingest(ctx, "alice", "", []string{"b"}, [][]float32{{1, 2, 3}})
	assert.ErrorIs(t, err, apperror.ErrDimensionMismatch)

	_, err = m.Ingest(ctx, "", "", []string{"a"}, [][]float32{{1}})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestManagerConcurrentIngestSameUser(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	m := newTestManager(t, backend)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Ingest(ctx, "alice", "", []string{fmt.Sprintf("passage %d", i)}, [][]float32{{float32(i)}})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap, err := backend.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, snap.Passages, 16)
}

func TestManagerDelete(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, NewMemoryBackend())

	_, err := m.Ingest(ctx, "alice", "", []string{"a"}, [][]float32{{1}})
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, "alice"))

	_, err = m.Query(ctx, "alice", []float32{1}, 1)
	assert.ErrorIs(t, err, apperror.ErrEmptyStore)
}
