package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
)

type IFriendService interface {
	Add(ctx context.Context, me, friend domain.UserID) (domain.FriendStatus, error)
	List(ctx context.Context, me domain.UserID) ([]domain.FriendInfo, error)
	Pending(ctx context.Context, me domain.UserID) ([]domain.FriendInfo, error)
}

// FriendService accepts friend requests immediately. A pending row left over
// from an earlier request is accepted by either side.
type FriendService struct {
	log      *slog.Logger
	friends  repositories.IFriendRepository
	profiles repositories.IProfileRepository

	// pairs serializes the friendship lookup with the insert or update.
	pairs sync.Mutex
}

func NewFriendService(log *slog.Logger, friends repositories.IFriendRepository, profiles repositories.IProfileRepository) *FriendService {
	return &FriendService{log: log, friends: friends, profiles: profiles}
}

func (s *FriendService) Add(ctx context.Context, me, friend domain.UserID) (domain.FriendStatus, error) {
	if me == friend {
		return "", errors.ErrSelfFriend
	}
	if _, err := s.profiles.GetByID(ctx, friend); err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return "", fmt.Errorf("%w: user not found", errors.ErrNotFound)
		}
		return "", err
	}

	s.pairs.Lock()
	defer s.pairs.Unlock()

	existing, err := s.friends.Find(ctx, me, friend)
	if err != nil {
		return "", err
	}
	if existing == nil {
		if _, err := s.friends.Create(ctx, me, friend, domain.FriendAccepted); err != nil {
			return "", err
		}
		return domain.FriendAccepted, nil
	}

	switch existing.Status {
	case domain.FriendAccepted:
		return "", errors.ErrAlreadyFriends
	case domain.FriendPending:
		if err := s.friends.UpdateStatus(ctx, existing.ID, domain.FriendAccepted); err != nil {
			return "", err
		}
		return domain.FriendAccepted, nil
	case domain.FriendBlocked:
		return "", errors.ErrFriendshipBlocked
	default:
		return "", fmt.Errorf("%w: unknown friend status %q", errors.ErrInternal, existing.Status)
	}
}

func (s *FriendService) List(ctx context.Context, me domain.UserID) ([]domain.FriendInfo, error) {
	return s.infos(ctx, me, domain.FriendAccepted)
}

func (s *FriendService) Pending(ctx context.Context, me domain.UserID) ([]domain.FriendInfo, error) {
	return s.infos(ctx, me, domain.FriendPending)
}

// infos resolves the other side of each friendship. Friends whose profile
// cannot be read are left out of the list.
func (s *FriendService) infos(ctx context.Context, me domain.UserID, status domain.FriendStatus) ([]domain.FriendInfo, error) {
	friendships, err := s.friends.ListFor(ctx, me, status)
	if err != nil {
		return nil, err
	}
	infos := make([]domain.FriendInfo, 0, len(friendships))
	for _, f := range friendships {
		profile, err := s.profiles.GetByID(ctx, f.Other(me))
		if err != nil {
			s.log.Debug("Friend profile unavailable", "friend_id", f.Other(me), "error", err)
			continue
		}
		infos = append(infos, domain.FriendInfo{
			FriendID:    profile.ID,
			Username:    profile.Username,
			DisplayName: profile.DisplayName,
			AvatarURL:   profile.AvatarURL,
			Status:      status,
		})
	}
	return infos, nil
}
