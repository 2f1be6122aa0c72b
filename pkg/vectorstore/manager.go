package vectorstore

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"docubot-be/internal/pkg/logger"
	"docubot-be/pkg/apperror"
	"docubot-be/pkg/utils"
)

const module = "VectorStore"

// Backend persists snapshots keyed by user id. Implementations must never
// let one user id read or overwrite another's data.
type Backend interface {
	Exists(ctx context.Context, userID string) (bool, error)
	Load(ctx context.Context, userID string) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Delete(ctx context.Context, userID string) error
}

type IngestResult struct {
	UserID    string
	Added     int
	Total     int
	Dimension int
	Created   bool
}

type Manager struct {
	backend Backend
	cache   *lru.Cache[string, *Store]
	locks   *utils.KeyedMutex
	logger  logger.ILogger
}

func NewManager(backend Backend, cacheSize int, log logger.ILogger) (*Manager, error) {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[string, *Store](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create store cache: %w", err)
	}
	return &Manager{
		backend: backend,
		cache:   cache,
		locks:   utils.NewKeyedMutex(),
		logger:  log,
	}, nil
}

// Lock serializes operations on one user's store. Callers composing
// OpenOrCreate, AddTexts and Persist should hold it throughout.
func (m *Manager) Lock(userID string) func() {
	return m.locks.Lock(userID)
}

// OpenOrCreate loads the user's persisted store, or returns a fresh one with existed=false.
func (m *Manager) OpenOrCreate(ctx context.Context, userID string) (*Store, bool, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, false, err
	}
	if store, ok := m.cache.Get(userID); ok {
		return store, true, nil
	}

	exists, err := m.backend.Exists(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("check store for %s: %w", userID, err)
	}
	if !exists {
		return NewStore(userID), false, nil
	}

	snap, err := m.backend.Load(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("load store for %s: %w", userID, err)
	}
	store := RestoreStore(snap)
	m.cache.Add(userID, store)

	m.logger.Debug(module, "Store loaded", map[string]interface{}{
		"user_id":   userID,
		"passages":  store.Len(),
		"dimension": store.Dimension(),
	})
	return store, true, nil
}

func (m *Manager) AddTexts(store *Store, texts []string, vectors [][]float32) error {
	return store.Add(texts, vectors, "")
}

// Persist replaces whatever the backend holds for the store's user.
func (m *Manager) Persist(ctx context.Context, store *Store) error {
	if err := m.backend.Save(ctx, store.Snapshot()); err != nil {
		m.cache.Remove(store.UserID())
		return fmt.Errorf("persist store for %s: %w", store.UserID(), err)
	}
	m.cache.Add(store.UserID(), store)
	return nil
}

func (m *Manager) Search(store *Store, query []float32, k int) ([]SearchResult, error) {
	return store.Search(query, k)
}

// Ingest adds texts to the user's store and persists it under the user lock.
// A failed add or persist leaves the persisted store unchanged.
func (m *Manager) Ingest(ctx context.Context, userID, source string, texts []string, vectors [][]float32) (*IngestResult, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	unlock := m.Lock(userID)
	defer unlock()

	store, existed, err := m.OpenOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := store.Add(texts, vectors, source); err != nil {
		return nil, err
	}
	if err := m.Persist(ctx, store); err != nil {
		m.logger.Error(module, "Persist failed", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil, err
	}

	m.logger.Info(module, "Store persisted", map[string]interface{}{
		"user_id":  userID,
		"added":    len(texts),
		"total":    store.Len(),
		"existing": existed,
	})
	return &IngestResult{
		UserID:    userID,
		Added:     len(texts),
		Total:     store.Len(),
		Dimension: store.Dimension(),
		Created:   !existed,
	}, nil
}

// Query searches the user's store. A user without a store gets ErrEmptyStore.
func (m *Manager) Query(ctx context.Context, userID string, vector []float32, k int) ([]SearchResult, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	unlock := m.Lock(userID)
	defer unlock()

	store, existed, err := m.OpenOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !existed {
		return nil, apperror.Newf(apperror.ErrEmptyStore, "no store for user %s", userID)
	}
	return store.Search(vector, k)
}

// Stats reports the size of a user's store without creating one.
func (m *Manager) Stats(ctx context.Context, userID string) (passages, dimension int, err error) {
	if err := ValidateUserID(userID); err != nil {
		return 0, 0, err
	}
	unlock := m.Lock(userID)
	defer unlock()

	store, _, err := m.OpenOrCreate(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	return store.Len(), store.Dimension(), nil
}

func (m *Manager) Delete(ctx context.Context, userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	unlock := m.Lock(userID)
	defer unlock()

	m.cache.Remove(userID)
	if err := m.backend.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete store for %s: %w", userID, err)
	}
	m.logger.Info(module, "Store deleted", map[string]interface{}{"user_id": userID})
	return nil
}
