package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
)

type IProfileRepository interface {
	Create(ctx context.Context, profile domain.Profile) (domain.Profile, error)
	GetByID(ctx context.Context, id domain.UserID) (domain.Profile, error)
	GetByUsername(ctx context.Context, username string) (domain.Profile, error)
	Update(ctx context.Context, id domain.UserID, patch domain.ProfilePatch) error
}

type ProfileRepository struct {
	gateway contract.Gateway
	log     *slog.Logger
}

func NewProfileRepository(gateway contract.Gateway, log *slog.Logger) *ProfileRepository {
	return &ProfileRepository{gateway: gateway, log: log}
}

func (r *ProfileRepository) Create(ctx context.Context, profile domain.Profile) (domain.Profile, error) {
	if profile.ID == "" {
		profile.ID = domain.NewUserID()
	}
	record := contract.Record{
		"id":            profile.ID.String(),
		"username":      profile.Username,
		"password_hash": profile.PasswordHash,
		"display_name":  profile.DisplayName,
		"avatar_url":    profile.AvatarURL,
		"bio":           profile.Bio,
	}
	stored, err := r.gateway.Insert(ctx, CollectionProfiles, record)
	if err != nil {
		return domain.Profile{}, err
	}
	return toProfile(stored), nil
}

func (r *ProfileRepository) GetByID(ctx context.Context, id domain.UserID) (domain.Profile, error) {
	return r.first(ctx, contract.Eq("id", id.String()))
}

func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (domain.Profile, error) {
	return r.first(ctx, contract.Eq("username", username))
}

// Update writes only the fields present in the patch.
func (r *ProfileRepository) Update(ctx context.Context, id domain.UserID, patch domain.ProfilePatch) error {
	record := contract.Record{}
	if patch.DisplayName != nil {
		record["display_name"] = *patch.DisplayName
	}
	if patch.AvatarURL != nil {
		record["avatar_url"] = *patch.AvatarURL
	}
	if patch.Bio != nil {
		record["bio"] = *patch.Bio
	}
	return r.gateway.Update(ctx, CollectionProfiles, id.String(), record)
}

func (r *ProfileRepository) first(ctx context.Context, filter contract.Filter) (domain.Profile, error) {
	rows, err := r.gateway.Query(ctx, CollectionProfiles, filter)
	if err != nil {
		return domain.Profile{}, err
	}
	if len(rows) == 0 {
		return domain.Profile{}, fmt.Errorf("%w: profile", errors.ErrNotFound)
	}
	return toProfile(rows[0]), nil
}

func toProfile(r contract.Record) domain.Profile {
	return domain.Profile{
		ID:           domain.UserID(text(r, "id")),
		Username:     text(r, "username"),
		PasswordHash: text(r, "password_hash"),
		DisplayName:  text(r, "display_name"),
		AvatarURL:    text(r, "avatar_url"),
		Bio:          text(r, "bio"),
		CreatedAt:    timestamp(r, "created_at"),
	}
}
