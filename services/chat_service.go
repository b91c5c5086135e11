package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

type IChatService interface {
	FindOrCreateDirectConversation(ctx context.Context, a, b domain.UserID) (domain.ConversationID, error)
	ListConversations(ctx context.Context, userID domain.UserID) ([]domain.ConversationID, error)
	GetMessages(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID) ([]domain.Message, error)
}

type ChatService struct {
	log           *slog.Logger
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	authority     contract.IMembershipAuthority

	// discovery serializes find-or-create so two racing requests for one pair
	// cannot both create a conversation.
	discovery sync.Mutex
}

func NewChatService(
	log *slog.Logger,
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	authority contract.IMembershipAuthority,
) *ChatService {
	return &ChatService{
		log:           log,
		conversations: conversations,
		messages:      messages,
		authority:     authority,
	}
}

// FindOrCreateDirectConversation returns the conversation shared by both users,
// creating it with one membership row per user when none exists.
func (s *ChatService) FindOrCreateDirectConversation(ctx context.Context, a, b domain.UserID) (domain.ConversationID, error) {
	if a == b {
		return "", errors.ErrSelfConversation
	}

	s.discovery.Lock()
	defer s.discovery.Unlock()

	mine, err := s.conversations.ConversationsOf(ctx, a)
	if err != nil {
		return "", err
	}
	theirs, err := s.conversations.ConversationsOf(ctx, b)
	if err != nil {
		return "", err
	}
	if common := lo.Intersect(mine, theirs); len(common) > 0 {
		return common[0], nil
	}

	conversation, err := s.conversations.Create(ctx, false)
	if err != nil {
		return "", err
	}
	for _, member := range []domain.UserID{a, b} {
		if err := s.conversations.AddMember(ctx, conversation.ID, member, domain.RoleMember); err != nil {
			return "", fmt.Errorf("add member to %s: %w", conversation.ID, err)
		}
	}
	s.log.Info("Direct conversation created", "conversation_id", conversation.ID, "user_a", a, "user_b", b)
	return conversation.ID, nil
}

func (s *ChatService) ListConversations(ctx context.Context, userID domain.UserID) ([]domain.ConversationID, error) {
	ids, err := s.conversations.ConversationsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []domain.ConversationID{}
	}
	return ids, nil
}

// GetMessages returns the history to members only.
func (s *ChatService) GetMessages(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID) ([]domain.Message, error) {
	if err := s.authority.Verify(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.messages.GetMessages(ctx, conversationID)
}
