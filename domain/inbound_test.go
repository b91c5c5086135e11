package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		kind     InboundKind
		content  string
		postable bool
	}{
		{"structured content", `{"content": "hello"}`, Structured, "hello", true},
		{"plain text falls back to raw", `hello`, Raw, "hello", true},
		{"whitespace content is dropped", `{"content": "   "}`, Structured, "   ", false},
		{"empty frame is dropped", ``, Raw, "", false},
		{"json without content is dropped", `{"text": "hello"}`, Structured, "", false},
		{"non string content is dropped", `{"content": 42}`, Structured, "", false},
		{"json scalar is dropped", `"hello"`, Structured, "", false},
		{"broken json is raw", `{"content": "hello"`, Raw, `{"content": "hello"`, true},
		{"extra fields are ignored", `{"content": "hi", "created_at": "1970-01-01"}`, Structured, "hi", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			in := ParseInbound([]byte(tt.frame))
			req.Equal(tt.kind, in.Kind)
			req.Equal(tt.content, in.Content)
			req.Equal(tt.postable, in.Postable())
		})
	}
}

func TestNewOutgoingEvent_UsesUTC(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))

	evt := NewOutgoingEvent("user", "hello", at)

	req.Equal(time.UTC, evt.CreatedAt.Location())
	req.True(at.Equal(evt.CreatedAt))
}

func TestParseConversationID_Canonical(t *testing.T) {
	req := require.New(t)

	id, err := ParseConversationID("  6BA7B810-9DAD-11D1-80B4-00C04FD430C8 ")
	req.NoError(err)
	req.Equal(ConversationID("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), id)

	_, err = ParseConversationID("not-a-uuid")
	req.Error(err)
}

func TestOrderedPair(t *testing.T) {
	req := require.New(t)

	a, b := OrderedPair("b", "a")
	req.Equal(UserID("a"), a)
	req.Equal(UserID("b"), b)

	f := Friendship{UserA: "a", UserB: "b"}
	req.Equal(UserID("b"), f.Other("a"))
	req.Equal(UserID("a"), f.Other("b"))
}
