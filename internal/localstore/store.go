// Package localstore persists the client's best-effort caches: the last known
// user profile and the last visited protected route. Nothing here is a source
// of truth, so every operation fails soft and only logs.
package localstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Store when the key has no value
var ErrNotFound = errors.New("key not found")

// Store is a durable string key-value storage local to the client
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
