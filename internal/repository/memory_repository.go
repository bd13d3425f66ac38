package repository

import (
	"context"
	"sync"
)

// MemoryRepository keeps snapshots in process memory. Used when
// STORE_BACKEND=memory and in tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		snapshots: make(map[string][]byte),
	}
}

func (m *MemoryRepository) Get(ctx context.Context, sessionID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	payload, ok := m.snapshots[sessionID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

func (m *MemoryRepository) Put(ctx context.Context, sessionID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := make([]byte, len(payload))
	copy(stored, payload)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[sessionID] = stored
	return nil
}

func (m *MemoryRepository) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, sessionID)
	return nil
}

var _ SnapshotRepository = (*MemoryRepository)(nil)
