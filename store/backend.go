package store

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable marks a backend whose medium cannot be reached. Backends
	// wrap it on connection failures; Store degrades instead of failing.
	ErrUnavailable = errors.New("store unavailable")
	// ErrInvalidNamespace is returned for an empty namespace name.
	ErrInvalidNamespace = errors.New("invalid namespace")
)

// Backend is a storage medium for namespaced key-value data. Values are
// opaque JSON documents.
//
// Implementations must be safe for concurrent use. Connect and
// EnsureNamespace must be idempotent. SetIfAbsent must be atomic with respect
// to other writers of the same medium.
type Backend interface {
	// Connect opens the medium. When create is set, missing backing
	// storage is created.
	Connect(ctx context.Context, create bool) error
	EnsureNamespace(ctx context.Context, namespace string) error

	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	// SetIfAbsent stores value only if key is not present and reports
	// whether it did.
	SetIfAbsent(ctx context.Context, namespace, key string, value []byte) (bool, error)
	Delete(ctx context.Context, namespace, key string) error
	Has(ctx context.Context, namespace, key string) (bool, error)
	Keys(ctx context.Context, namespace string) ([]string, error)
	// Clear removes the namespace with all its entries.
	Clear(ctx context.Context, namespace string) error

	Close(ctx context.Context) error
}

// Flusher is implemented by backends that buffer writes.
type Flusher interface {
	Flush(ctx context.Context) error
}
