package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/repository"
)

type profileService struct {
	profiles repository.ProfileRepository
}

func NewProfileService(profiles repository.ProfileRepository) ProfileService {
	return &profileService{profiles: profiles}
}

func (s *profileService) Get(ctx context.Context, requesterID, id string) (*domain.Profile, error) {
	if requesterID != id {
		return nil, ErrForbidden
	}

	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// Put writes the caller's whole document
func (s *profileService) Put(ctx context.Context, requesterID string, profile *domain.Profile) (*domain.Profile, error) {
	if requesterID != profile.ID {
		return nil, ErrForbidden
	}

	profile.DisplayName = strings.TrimSpace(profile.DisplayName)
	if profile.DisplayName == "" {
		return nil, ErrInvalidDisplayName
	}

	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to store profile: %w", err)
	}
	return profile, nil
}

// UpdateDisplayName changes one field of an existing document
func (s *profileService) UpdateDisplayName(ctx context.Context, requesterID, id, displayName string) (*domain.Profile, error) {
	if requesterID != id {
		return nil, ErrForbidden
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, ErrInvalidDisplayName
	}

	if err := s.profiles.UpdateDisplayName(ctx, id, displayName); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.Get(ctx, requesterID, id)
}
