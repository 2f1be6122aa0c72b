package vectorstore

import (
	"context"
	"sync"
)

// MemoryBackend keeps snapshots in process memory. Nothing survives a restart.
type MemoryBackend struct {
	mu    sync.RWMutex
	snaps map[string]*Snapshot
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{snaps: make(map[string]*Snapshot)}
}

func (b *MemoryBackend) Exists(_ context.Context, userID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.snaps[userID]
	return ok, nil
}

func (b *MemoryBackend) Load(_ context.Context, userID string) (*Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap, ok := b.snaps[userID]
	if !ok {
		return &Snapshot{UserID: userID}, nil
	}
	return cloneSnapshot(snap), nil
}

func (b *MemoryBackend) Save(_ context.Context, snap *Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snaps[snap.UserID] = cloneSnapshot(snap)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.snaps, userID)
	return nil
}

func cloneSnapshot(snap *Snapshot) *Snapshot {
	out := &Snapshot{UserID: snap.UserID, Dimension: snap.Dimension, Passages: make([]Passage, len(snap.Passages))}
	for i, p := range snap.Passages {
		p.Vector = append([]float32(nil), p.Vector...)
		out.Passages[i] = p
	}
	return out
}
