package localstore

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// DefaultRouteKey is the storage key of the last visited route
const DefaultRouteKey = "@todo:last_route"

// RouteMemory remembers the last protected screen the user visited.
// Paths are stored as-is; deciding which paths are worth remembering is up to the caller.
type RouteMemory struct {
	store  Store
	key    string
	logger *zap.Logger
}

func NewRouteMemory(store Store, key string, logger *zap.Logger) *RouteMemory {
	if key == "" {
		key = DefaultRouteKey
	}
	return &RouteMemory{store: store, key: key, logger: logger}
}

func (m *RouteMemory) Save(ctx context.Context, path string) {
	if err := m.store.Set(ctx, m.key, path); err != nil {
		m.logger.Warn("failed to save last route", zap.String("path", path), zap.Error(err))
	}
}

// Load returns the remembered path; ok is false when nothing usable is stored
func (m *RouteMemory) Load(ctx context.Context) (path string, ok bool) {
	path, err := m.store.Get(ctx, m.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warn("failed to get last route", zap.Error(err))
		}
		return "", false
	}
	return path, path != ""
}

func (m *RouteMemory) Clear(ctx context.Context) {
	if err := m.store.Delete(ctx, m.key); err != nil {
		m.logger.Warn("failed to clear last route", zap.Error(err))
	}
}
