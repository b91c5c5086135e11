package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"log/slog"

	"github.com/samber/lo"
)

type IConversationRepository interface {
	Create(ctx context.Context, isGroup bool) (domain.Conversation, error)
	AddMember(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID, role string) error
	ConversationsOf(ctx context.Context, userID domain.UserID) ([]domain.ConversationID, error)
	IsMember(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID) (bool, error)
}

type ConversationRepository struct {
	gateway contract.Gateway
	log     *slog.Logger
}

func NewConversationRepository(gateway contract.Gateway, log *slog.Logger) *ConversationRepository {
	return &ConversationRepository{gateway: gateway, log: log}
}

func (r *ConversationRepository) Create(ctx context.Context, isGroup bool) (domain.Conversation, error) {
	id := domain.NewConversationID()
	if _, err := r.gateway.Insert(ctx, CollectionConversations, contract.Record{
		"id":       id.String(),
		"is_group": isGroup,
	}); err != nil {
		return domain.Conversation{}, err
	}
	return domain.Conversation{ID: id, IsGroup: isGroup}, nil
}

func (r *ConversationRepository) AddMember(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID, role string) error {
	_, err := r.gateway.Insert(ctx, CollectionConversationMembers, contract.Record{
		"conversation_id": conversationID.String(),
		"user_id":         userID.String(),
		"role":            role,
	})
	return err
}

// ConversationsOf lists the distinct conversations the user belongs to.
func (r *ConversationRepository) ConversationsOf(ctx context.Context, userID domain.UserID) ([]domain.ConversationID, error) {
	rows, err := r.gateway.Query(ctx, CollectionConversationMembers, contract.Eq("user_id", userID.String()))
	if err != nil {
		return nil, err
	}
	ids := lo.Map(rows, func(row contract.Record, _ int) domain.ConversationID {
		return domain.ConversationID(text(row, "conversation_id"))
	})
	return lo.Uniq(ids), nil
}

// IsMember is a point query on both fields of the membership row.
func (r *ConversationRepository) IsMember(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID) (bool, error) {
	rows, err := r.gateway.Query(ctx, CollectionConversationMembers,
		contract.Eq("conversation_id", conversationID.String()),
		contract.Eq("user_id", userID.String()),
	)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}
