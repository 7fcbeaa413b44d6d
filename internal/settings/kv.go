// Package settings persists saved windows, overrides and global flags in a
// JSON key/value store. Writes are atomic per key; there is no multi-key
// transaction.
package settings

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by KV.Get for a key that was never written.
var ErrNotFound = errors.New("settings key not found")

// KV is a raw key/value backend. Values are JSON documents.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Watcher is implemented by backends that can report external changes. Watch
// blocks until ctx is done, calling fn with the key that changed.
type Watcher interface {
	Watch(ctx context.Context, fn func(key string)) error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the backend by name. For "file" path is a directory, for
// "sqlite" a database file.
func Open(ctx context.Context, backend, path string) (KV, error) {
	switch backend {
	case BackendFile, "":
		return NewFileKV(path, 250*time.Millisecond)
	case BackendSQLite:
		return OpenSQLite(ctx, path, 2*time.Second)
	default:
		return nil, fmt.Errorf("unknown settings backend %q", backend)
	}
}
