package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/dto"
	"github.com/prperemyshlev/todo-session/internal/identity"
)

// Documents is the profile document store, reached as the signed-in user
type Documents struct {
	client *Client
}

var _ identity.ProfileDocuments = (*Documents)(nil)

func (c *Client) Documents() *Documents {
	return &Documents{client: c}
}

func profilePath(userID string) string {
	return "/profiles/" + url.PathEscape(userID)
}

func (d *Documents) Put(ctx context.Context, profile *domain.Profile) error {
	body := dto.ProfileRequest{
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
	}
	if !profile.CreatedAt.IsZero() {
		body.CreatedAt = profile.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return d.client.authorized(ctx, http.MethodPut, profilePath(profile.ID), body, nil)
}

func (d *Documents) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	var profile domain.Profile
	if err := d.client.authorized(ctx, http.MethodGet, profilePath(userID), nil, &profile); err != nil {
		return nil, notFound(err, identity.ErrProfileNotFound)
	}
	return &profile, nil
}

func (d *Documents) UpdateDisplayName(ctx context.Context, userID, displayName string) error {
	err := d.client.authorized(ctx, http.MethodPatch, profilePath(userID), dto.ProfilePatchRequest{DisplayName: displayName}, nil)
	return notFound(err, identity.ErrProfileNotFound)
}

// notFound replaces a 404 with sentinel
func notFound(err, sentinel error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return sentinel
	}
	return err
}
