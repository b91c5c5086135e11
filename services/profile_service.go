package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	"fmt"
	"log/slog"
)

type IProfileService interface {
	Get(ctx context.Context, id domain.UserID) (domain.PublicProfile, error)
	Edit(ctx context.Context, caller, id domain.UserID, patch domain.ProfilePatch) (domain.PublicProfile, error)
}

type ProfileService struct {
	log      *slog.Logger
	profiles repositories.IProfileRepository
}

func NewProfileService(log *slog.Logger, profiles repositories.IProfileRepository) *ProfileService {
	return &ProfileService{log: log, profiles: profiles}
}

func (s *ProfileService) Get(ctx context.Context, id domain.UserID) (domain.PublicProfile, error) {
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return domain.PublicProfile{}, err
	}
	return profile.Public(), nil
}

// Edit applies the patch to the caller's own profile and returns the result.
func (s *ProfileService) Edit(ctx context.Context, caller, id domain.UserID, patch domain.ProfilePatch) (domain.PublicProfile, error) {
	if caller != id {
		return domain.PublicProfile{}, errors.ErrUnauthorized
	}
	if patch.IsEmpty() {
		return domain.PublicProfile{}, fmt.Errorf("%w: provide at least one field to update", errors.ErrBadRequest)
	}
	if err := s.profiles.Update(ctx, id, patch); err != nil {
		return domain.PublicProfile{}, err
	}
	return s.Get(ctx, id)
}
