package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Typed wraps a Store and encodes values of type T with msgpack. Stored values
// are copies: mutating a value returned by Get never affects the cached entry.
type Typed[T any] struct {
	store Store
}

// NewTyped returns a Typed view over store.
func NewTyped[T any](store Store) *Typed[T] {
	return &Typed[T]{store: store}
}

// Get decodes the entry for key. A miss returns the zero T and false.
func (t *Typed[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, ok, err := t.store.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	var v T
	if err := msgpack.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return v, true, nil
}

// Set encodes v and stores it under key. ttl <= 0 uses the store default.
func (t *Typed[T]) Set(ctx context.Context, key string, v T, ttl time.Duration) error {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return t.store.Set(ctx, key, raw, ttl)
}
