// Package domain contains core concepts of the chat system.
// This file defines conversation and user identifiers and membership rows.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ConversationID identifies a conversation. It is the key of the relay registry.
type ConversationID string

// UserID identifies an already authenticated user.
type UserID string

func (c ConversationID) String() string { return string(c) }

func (u UserID) String() string { return string(u) }

// NewConversationID returns a fresh random identifier.
func NewConversationID() ConversationID {
	return ConversationID(uuid.NewString())
}

// NewUserID returns a fresh random identifier.
func NewUserID() UserID {
	return UserID(uuid.NewString())
}

// ParseConversationID accepts any UUID spelling and returns its canonical form.
func ParseConversationID(s string) (ConversationID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid conversation id %q: %w", s, err)
	}
	return ConversationID(id.String()), nil
}

// ParseUserID accepts any UUID spelling and returns its canonical form.
func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid user id %q: %w", s, err)
	}
	return UserID(id.String()), nil
}

const RoleMember = "member"

// Conversation is a row of the conversations collection.
type Conversation struct {
	ID      ConversationID
	IsGroup bool
}
