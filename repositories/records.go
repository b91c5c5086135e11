// Package repositories maps domain types onto gateway collections.
package repositories

import (
	"chat-relay/contract"
	"chat-relay/storage"
	"time"
)

const (
	CollectionProfiles            = "profiles"
	CollectionFriends             = "friends"
	CollectionConversations       = "conversations"
	CollectionConversationMembers = "conversation_members"
	CollectionMessages            = "messages"
)

func text(r contract.Record, field string) string {
	return storage.Text(r[field])
}

func boolean(r contract.Record, field string) bool {
	v, _ := r[field].(bool)
	return v
}

// timestamp reads a created_at style field. Unparseable values yield the zero time.
func timestamp(r contract.Record, field string) time.Time {
	at, err := time.Parse(time.RFC3339Nano, text(r, field))
	if err != nil {
		return time.Time{}
	}
	return at
}

func formatTime(at time.Time) string {
	if at.IsZero() {
		return ""
	}
	return at.UTC().Format(time.RFC3339Nano)
}
