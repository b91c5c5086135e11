package httpapi

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"net/http"

	"github.com/samber/lo"
)

type authResponse struct {
	UserID   domain.UserID `json:"user_id"`
	Username string        `json:"username"`
}

type friendRequest struct {
	FriendID string `json:"friend_id"`
}

// currentUser is only called behind authenticated, which guarantees the identity.
func currentUser(r *http.Request) domain.UserID {
	userID, _ := auth.UserFromContext(r.Context())
	return userID
}

func pathUserID(r *http.Request) (domain.UserID, error) {
	id, err := domain.ParseUserID(r.PathValue("id"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrBadRequest, err)
	}
	return id, nil
}

func bodyFriendID(req friendRequest) (domain.UserID, error) {
	id, err := domain.ParseUserID(req.FriendID)
	if err != nil {
		return "", fmt.Errorf("%w: friend_id: %w", errors.ErrBadRequest, err)
	}
	return id, nil
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	session, err := a.deps.Auth.Register(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	auth.SetSessionCookie(w, session.Token, a.deps.Tokens.Duration(), a.deps.SecureCookies)
	writeJSON(w, http.StatusOK, authResponse{UserID: session.UserID, Username: session.Username})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	session, err := a.deps.Auth.Login(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	auth.SetSessionCookie(w, session.Token, a.deps.Tokens.Duration(), a.deps.SecureCookies)
	writeJSON(w, http.StatusOK, authResponse{UserID: session.UserID, Username: session.Username})
}

func (a *API) logout(w http.ResponseWriter, _ *http.Request) {
	auth.ClearSessionCookie(w, a.deps.SecureCookies)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]domain.UserID{"user_id": currentUser(r)})
}

func (a *API) myProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := a.deps.Profiles.Get(r.Context(), currentUser(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) profile(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	profile, err := a.deps.Profiles.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) editProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var patch domain.ProfilePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		a.fail(w, r, err)
		return
	}
	profile, err := a.deps.Profiles.Edit(r.Context(), currentUser(r), id, patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) addFriend(w http.ResponseWriter, r *http.Request) {
	var req friendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	friendID, err := bodyFriendID(req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	status, err := a.deps.Friends.Add(r.Context(), currentUser(r), friendID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.FriendStatus{"status": status})
}

func (a *API) listFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := a.deps.Friends.List(r.Context(), currentUser(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.FriendInfo{"friends": lo.Ternary(friends == nil, []domain.FriendInfo{}, friends)})
}

func (a *API) pendingFriends(w http.ResponseWriter, r *http.Request) {
	pending, err := a.deps.Friends.Pending(r.Context(), currentUser(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.FriendInfo{"pending": lo.Ternary(pending == nil, []domain.FriendInfo{}, pending)})
}

func (a *API) startConversation(w http.ResponseWriter, r *http.Request) {
	var req friendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	friendID, err := bodyFriendID(req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	conversationID, err := a.deps.Chat.FindOrCreateDirectConversation(r.Context(), currentUser(r), friendID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.ConversationID{"conversation_id": conversationID})
}

func (a *API) listConversations(w http.ResponseWriter, r *http.Request) {
	ids, err := a.deps.Chat.ListConversations(r.Context(), currentUser(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.ConversationID{"conversations": ids})
}

func (a *API) messages(w http.ResponseWriter, r *http.Request) {
	conversationID, err := domain.ParseConversationID(r.PathValue("id"))
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: %w", errors.ErrBadRequest, err))
		return
	}
	messages, err := a.deps.Chat.GetMessages(r.Context(), conversationID, currentUser(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Message{"messages": lo.Ternary(messages == nil, []domain.Message{}, messages)})
}

func (a *API) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (a *API) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.deps.Stats.Snapshot())
}
