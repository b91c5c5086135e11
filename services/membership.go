package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	"log/slog"
)

// MembershipAuthority answers whether a user belongs to a conversation.
// Every call goes to the store: a revoked membership is effective on the next check.
type MembershipAuthority struct {
	conversations repositories.IConversationRepository
	log           *slog.Logger
}

func NewMembershipAuthority(conversations repositories.IConversationRepository, log *slog.Logger) *MembershipAuthority {
	return &MembershipAuthority{conversations: conversations, log: log}
}

// IsMember fails closed: a store error means "not a member".
func (a *MembershipAuthority) IsMember(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID) bool {
	ok, err := a.conversations.IsMember(ctx, conversationID, userID)
	if err != nil {
		a.log.Warn("Membership check failed, denying",
			"conversation_id", conversationID, "user_id", userID, "error", err)
		return false
	}
	return ok
}

func (a *MembershipAuthority) Verify(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID) error {
	if !a.IsMember(ctx, conversationID, userID) {
		return errors.ErrUnauthorized
	}
	return nil
}
