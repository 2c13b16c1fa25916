// Package kvstore provides a key-value store with per-entry TTL, used as
// the backing store for the tool result cache.
package kvstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the key is absent or its entry has expired.
	ErrNotFound = errors.New("key not found")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store is closed")
)

// Store is a key-value store with per-entry expiry.
//
// Expired entries behave exactly like absent ones: Get returns ErrNotFound
// and never a stale value.
type Store interface {
	// Get returns the value for key, or ErrNotFound if the key is absent
	// or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key with the given TTL. A ttl of zero or
	// less stores the entry without expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the store.
	Close() error
}
