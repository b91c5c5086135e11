package httpapi

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"net/http"
)

// relay authenticates and authorizes before the upgrade, so a rejected client
// gets a plain JSON error and no connection is ever opened.
func (a *API) relay(w http.ResponseWriter, r *http.Request) {
	userID, err := a.deps.Tokens.UserFromRequest(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	conversationID, err := domain.ParseConversationID(r.PathValue("conversation_id"))
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: %w", errors.ErrBadRequest, err))
		return
	}

	session, err := a.deps.Relay.Authorize(r.Context(), conversationID, userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	stream, err := a.deps.Acceptor.Accept(w, r)
	if err != nil {
		a.log.Debug("WebSocket upgrade failed", "conversation_id", conversationID, "user_id", userID, "error", err)
		return
	}

	a.sessions.Add(1)
	defer a.sessions.Done()
	// The request context derives from the server base context, so shutdown reaches it.
	if err := session.Run(r.Context(), stream); err != nil {
		a.log.Debug("Relay session returned", "conversation_id", conversationID, "user_id", userID, "error", err)
	}
}
