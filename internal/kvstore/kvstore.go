// Package kvstore abstracts the durable key-value storage the order tracker
// persists to. Implementations: Redis (production), Postgres (production,
// single-table), in-memory (tests / local dev).
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kvstore: key not found")

type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
