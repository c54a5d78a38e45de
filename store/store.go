// Package store defines the key-value persistence contract for form
// snapshots and its backends: a tab-scoped in-memory map and a
// browser-scoped SQLite database.
//
// The store is shared across all registered forms, partitioned by per-form
// storage key. Writes to the same key are last-write-wins; all writes
// originate from a single event stream so no locking beyond the backend's
// own is needed.
package store

import (
	"context"
	"errors"
)

// ErrUnavailable wraps backend failures (quota, disabled storage,
// serialisation). Callers treat it as non-fatal: log and move on.
var ErrUnavailable = errors.New("store: unavailable")

// KV is the pluggable persistence contract.
type KV interface {
	// Get returns the payload for key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores the payload under key, replacing any previous value.
	Set(ctx context.Context, key string, payload []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Keys lists all stored keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
