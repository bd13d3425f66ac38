package repository

import (
	"context"
	"errors"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotRepository stores encoded session snapshots keyed by session id.
// Payloads are opaque to the repository.
type SnapshotRepository interface {
	Get(ctx context.Context, sessionID string) ([]byte, error)
	Put(ctx context.Context, sessionID string, payload []byte) error
	Delete(ctx context.Context, sessionID string) error
}
