// Package domain contains core concepts of the chat system.
// This file defines Profile and Friendship entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"
)

// Profile is the full stored profile. PasswordHash never leaves the service layer.
type Profile struct {
	ID           UserID
	Username     string
	PasswordHash string
	DisplayName  string
	AvatarURL    string
	Bio          string
	CreatedAt    time.Time
}

// PublicProfile is what clients may see about a user.
type PublicProfile struct {
	ID          UserID    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p Profile) Public() PublicProfile {
	return PublicProfile{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Bio:         p.Bio,
		CreatedAt:   p.CreatedAt,
	}
}

// ProfilePatch carries the fields a user asked to change. Nil means untouched.
type ProfilePatch struct {
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Bio         *string `json:"bio"`
}

func (p ProfilePatch) IsEmpty() bool {
	return p.DisplayName == nil && p.AvatarURL == nil && p.Bio == nil
}

type FriendStatus string

const (
	FriendPending  FriendStatus = "pending"
	FriendAccepted FriendStatus = "accepted"
	FriendBlocked  FriendStatus = "blocked"
)

// Friendship is stored once per pair with UserA < UserB.
type Friendship struct {
	ID        string
	UserA     UserID
	UserB     UserID
	Status    FriendStatus
	CreatedAt time.Time
}

// OrderedPair returns both users sorted so a pair maps to exactly one row.
func OrderedPair(a, b UserID) (UserID, UserID) {
	if a < b {
		return a, b
	}
	return b, a
}

// Other returns the member of the pair that is not me.
func (f Friendship) Other(me UserID) UserID {
	if f.UserA == me {
		return f.UserB
	}
	return f.UserA
}

// FriendInfo is a profile brief listed in friend views.
type FriendInfo struct {
	FriendID    UserID       `json:"friend_id"`
	Username    string       `json:"username"`
	DisplayName string       `json:"display_name,omitempty"`
	AvatarURL   string       `json:"avatar_url,omitempty"`
	Status      FriendStatus `json:"status"`
}
