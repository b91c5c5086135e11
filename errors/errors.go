package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Relay core
	ErrUnauthorized     = fmt.Errorf("you must be logged in and a member to do that")
	ErrDataAccess       = fmt.Errorf("data access failure")
	ErrMalformedInput   = fmt.Errorf("malformed input")
	ErrPeerDisconnected = fmt.Errorf("peer disconnected")
	ErrSessionState     = fmt.Errorf("session is not in the expected state")
	ErrSubscriptionDone = fmt.Errorf("subscription closed")

	// HTTP surface
	ErrBadRequest         = fmt.Errorf("bad request")
	ErrNotFound           = fmt.Errorf("not found")
	ErrInvalidCredentials = fmt.Errorf("invalid username or password")
	ErrUsernameTaken      = fmt.Errorf("%w: username is already taken", ErrBadRequest)
	ErrAlreadyFriends     = fmt.Errorf("%w: you are already friends", ErrBadRequest)
	ErrFriendshipBlocked  = fmt.Errorf("%w: this friendship is blocked", ErrBadRequest)
	ErrSelfConversation   = fmt.Errorf("%w: cannot start a conversation with yourself", ErrBadRequest)
	ErrSelfFriend         = fmt.Errorf("%w: you cannot add yourself as a friend", ErrBadRequest)
	ErrInvalidPassword    = fmt.Errorf("%w: password must be between 6 and 72 characters", ErrBadRequest)
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrInternal           = fmt.Errorf("internal error")
)

// MapToHTTPStatus translates the error taxonomy into the status code returned to HTTP callers.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrDataAccess):
		return http.StatusBadGateway
	case stderrors.Is(err, ErrUnauthorized), stderrors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrBadRequest), stderrors.Is(err, ErrMalformedInput):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text safe to send back to a client.
// Internal failures are not described beyond their category.
func PublicMessage(err error) string {
	switch MapToHTTPStatus(err) {
	case http.StatusInternalServerError:
		return ErrInternal.Error()
	case http.StatusBadGateway:
		return ErrDataAccess.Error()
	default:
		return err.Error()
	}
}
