package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/todo-session/internal/domain"
	"go.uber.org/zap"
)

// DefaultProfileKey is the storage key of the cached profile record
const DefaultProfileKey = "@user_profile"

// profileRecord is the persisted layout; createdAt is an ISO-8601 string
type profileRecord struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	CreatedAt   string `json:"createdAt"`
}

// ProfileCache keeps an optimistic copy of the last known user.
// The copy may be stale or belong to a session revoked remotely.
type ProfileCache struct {
	store  Store
	key    string
	logger *zap.Logger
}

func NewProfileCache(store Store, key string, logger *zap.Logger) *ProfileCache {
	if key == "" {
		key = DefaultProfileKey
	}
	return &ProfileCache{store: store, key: key, logger: logger}
}

// Save writes user to local storage. Failures are logged only.
func (c *ProfileCache) Save(ctx context.Context, user *domain.User) {
	if user == nil {
		c.Clear(ctx)
		return
	}

	payload, err := json.Marshal(profileRecord{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		c.logger.Error("failed to encode cached profile", zap.String("user_id", user.ID), zap.Error(err))
		return
	}

	if err := c.store.Set(ctx, c.key, string(payload)); err != nil {
		c.logger.Error("failed to save cached profile", zap.String("user_id", user.ID), zap.Error(err))
		return
	}

	c.logger.Debug("cached profile saved", zap.String("user_id", user.ID))
}

// Load returns the cached user, or nil when there is none or it cannot be read
func (c *ProfileCache) Load(ctx context.Context) *domain.User {
	raw, err := c.store.Get(ctx, c.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Error("failed to load cached profile", zap.Error(err))
		}
		return nil
	}

	user, err := decodeProfile(raw)
	if err != nil {
		c.logger.Error("failed to decode cached profile", zap.Error(err))
		return nil
	}
	return user
}

// Clear removes the cached profile. Failures are logged only.
func (c *ProfileCache) Clear(ctx context.Context) {
	if err := c.store.Delete(ctx, c.key); err != nil {
		c.logger.Error("failed to clear cached profile", zap.Error(err))
		return
	}
	c.logger.Debug("cached profile cleared")
}

func decodeProfile(raw string) (*domain.User, error) {
	var record profileRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	if record.ID == "" {
		return nil, errors.New("cached profile has no id")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid createdAt %q: %w", record.CreatedAt, err)
	}

	return &domain.User{
		ID:          record.ID,
		Email:       record.Email,
		DisplayName: record.DisplayName,
		CreatedAt:   createdAt,
	}, nil
}
