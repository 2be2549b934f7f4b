package kv

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a store after Close.
var ErrClosed = errors.New("kv store closed")

// Config configures the store.
//
// Driver values:
//   - "file": dependency-free file backend (snapshot + journal)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the minimal persistence API consumed by the history layer.
//
// All methods are safe for concurrent use. A missing key is not an error:
// Get reports ok=false.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) (keys []string, err error)
	Close() error
}
