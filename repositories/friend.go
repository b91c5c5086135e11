package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"log/slog"
)

type IFriendRepository interface {
	Find(ctx context.Context, a, b domain.UserID) (*domain.Friendship, error)
	Create(ctx context.Context, a, b domain.UserID, status domain.FriendStatus) (domain.Friendship, error)
	UpdateStatus(ctx context.Context, id string, status domain.FriendStatus) error
	ListFor(ctx context.Context, user domain.UserID, status domain.FriendStatus) ([]domain.Friendship, error)
}

// FriendRepository stores one row per pair, with user_a < user_b.
type FriendRepository struct {
	gateway contract.Gateway
	log     *slog.Logger
}

func NewFriendRepository(gateway contract.Gateway, log *slog.Logger) *FriendRepository {
	return &FriendRepository{gateway: gateway, log: log}
}

// Find returns the friendship between two users in any order, or nil.
func (r *FriendRepository) Find(ctx context.Context, a, b domain.UserID) (*domain.Friendship, error) {
	userA, userB := domain.OrderedPair(a, b)
	rows, err := r.gateway.Query(ctx, CollectionFriends,
		contract.Eq("user_a", userA.String()),
		contract.Eq("user_b", userB.String()),
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	friendship := toFriendship(rows[0])
	return &friendship, nil
}

func (r *FriendRepository) Create(ctx context.Context, a, b domain.UserID, status domain.FriendStatus) (domain.Friendship, error) {
	userA, userB := domain.OrderedPair(a, b)
	stored, err := r.gateway.Insert(ctx, CollectionFriends, contract.Record{
		"user_a": userA.String(),
		"user_b": userB.String(),
		"status": string(status),
	})
	if err != nil {
		return domain.Friendship{}, err
	}
	return toFriendship(stored), nil
}

func (r *FriendRepository) UpdateStatus(ctx context.Context, id string, status domain.FriendStatus) error {
	return r.gateway.Update(ctx, CollectionFriends, id, contract.Record{"status": string(status)})
}

// ListFor returns the friendships of the user on either side of the pair.
func (r *FriendRepository) ListFor(ctx context.Context, user domain.UserID, status domain.FriendStatus) ([]domain.Friendship, error) {
	var friendships []domain.Friendship
	for _, side := range []string{"user_a", "user_b"} {
		rows, err := r.gateway.Query(ctx, CollectionFriends,
			contract.Eq(side, user.String()),
			contract.Eq("status", string(status)),
		)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			friendships = append(friendships, toFriendship(row))
		}
	}
	return friendships, nil
}

func toFriendship(r contract.Record) domain.Friendship {
	return domain.Friendship{
		ID:        text(r, "id"),
		UserA:     domain.UserID(text(r, "user_a")),
		UserB:     domain.UserID(text(r, "user_b")),
		Status:    domain.FriendStatus(text(r, "status")),
		CreatedAt: timestamp(r, "created_at"),
	}
}
