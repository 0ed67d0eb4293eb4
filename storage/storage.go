// Package storage provides the durable key-value backends the session store mirrors
// into.
//
// All backends share the [Storage] contract: string keys, string values, a missing key
// reported as [ErrNotFound], and backend failures wrapped in [ErrUnavailable]. Shared
// backends (Redis, SQLite) namespace keys so several clients can use one server or
// file.
//
// # What this package must NOT do
//
//   - Interpret stored values. Encoding belongs to the session package.
//   - Expire keys. Session lifetime is decided by the token, not the store.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key has never been set or was removed.
	ErrNotFound = errors.New("storage: key not found")
	// ErrUnavailable wraps backend failures (network, disk, driver).
	ErrUnavailable = errors.New("storage unavailable")
)

// Storage is a synchronous string key-value store.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Closer is implemented by backends that hold a connection or file handle.
type Closer interface {
	Close() error
}

func namespaced(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}
