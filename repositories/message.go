package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"
)

type IMessageRepository interface {
	StoreMessage(ctx context.Context, message domain.Message) error
	GetMessages(ctx context.Context, conversationID domain.ConversationID) ([]domain.Message, error)
}

type MessageRepository struct {
	gateway contract.Gateway
	log     *slog.Logger
	now     func() time.Time
}

func NewMessageRepository(gateway contract.Gateway, log *slog.Logger) *MessageRepository {
	return &MessageRepository{gateway: gateway, log: log, now: time.Now}
}

// StoreMessage inserts one row in the messages collection.
// The creation time defaults to now when the message carries none.
func (m *MessageRepository) StoreMessage(ctx context.Context, message domain.Message) error {
	if message.MessageType == "" {
		message.MessageType = domain.MessageTypeText
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = m.now()
	}
	record := contract.Record{
		"conversation_id": message.ConversationID.String(),
		"sender_id":       message.SenderID.String(),
		"content":         message.Content,
		"message_type":    message.MessageType,
		"is_deleted":      message.IsDeleted,
		"created_at":      formatTime(message.CreatedAt),
	}
	if message.ID != "" {
		record["id"] = message.ID
	}
	_, err := m.gateway.Insert(ctx, CollectionMessages, record)
	return err
}

// GetMessages returns the history of a conversation, oldest first.
func (m *MessageRepository) GetMessages(ctx context.Context, conversationID domain.ConversationID) ([]domain.Message, error) {
	rows, err := m.gateway.Query(ctx, CollectionMessages, contract.Eq("conversation_id", conversationID.String()))
	if err != nil {
		return nil, err
	}
	messages := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, toMessage(row))
	}
	slices.SortStableFunc(messages, func(a, b domain.Message) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return messages, nil
}

func toMessage(r contract.Record) domain.Message {
	return domain.Message{
		ID:             text(r, "id"),
		ConversationID: domain.ConversationID(text(r, "conversation_id")),
		SenderID:       domain.UserID(text(r, "sender_id")),
		Content:        text(r, "content"),
		MessageType:    text(r, "message_type"),
		IsDeleted:      boolean(r, "is_deleted"),
		CreatedAt:      timestamp(r, "created_at"),
	}
}
