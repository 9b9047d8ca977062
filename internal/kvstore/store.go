// Package kvstore provides the eventually consistent blob store the generation
// core persists artifacts in. Only point reads and writes are relied upon.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key is absent or not yet visible
var ErrNotFound = errors.New("key not found")

// Store is a key-value blob store
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes a key; used only to roll back partial writes
	Delete(ctx context.Context, key string) error
}
