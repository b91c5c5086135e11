// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable once built.
package domain

import (
	"time"
)

const MessageTypeText = "text"

// Message is a persisted chat message.
type Message struct {
	ID             string         `json:"id"`
	ConversationID ConversationID `json:"conversation_id"`
	SenderID       UserID         `json:"sender_id"`
	Content        string         `json:"content"`
	MessageType    string         `json:"message_type"`
	IsDeleted      bool           `json:"is_deleted"`
	CreatedAt      time.Time      `json:"created_at"`
}

// OutgoingEvent is the value broadcast to every subscriber of a conversation.
// The timestamp is always assigned by the server at publish time.
type OutgoingEvent struct {
	SenderID  UserID    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewOutgoingEvent builds the broadcast value for a message posted now.
func NewOutgoingEvent(sender UserID, content string, at time.Time) OutgoingEvent {
	return OutgoingEvent{SenderID: sender, Content: content, CreatedAt: at.UTC()}
}
