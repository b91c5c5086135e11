package auth

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"net/http"
	"time"
)

const SessionCookie = "gigachat_session"

type contextKey string

const userIDKey contextKey = "user_id"

// SetSessionCookie stores the signed token in an HttpOnly cookie valid for the whole site.
func SetSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// UserFromRequest authenticates the request from its session cookie.
func (i *TokenIssuer) UserFromRequest(r *http.Request) (domain.UserID, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return "", errors.ErrUnauthorized
	}
	return i.Verify(cookie.Value)
}

// RequireSession rejects requests without a valid session and injects the user
// identity into the request context for downstream handlers.
func (i *TokenIssuer) RequireSession(onError func(http.ResponseWriter, *http.Request, error), next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := i.UserFromRequest(r)
		if err != nil {
			onError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
	})
}

func WithUser(ctx context.Context, userID domain.UserID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserFromContext returns the identity injected by RequireSession.
func UserFromContext(ctx context.Context) (domain.UserID, bool) {
	userID, ok := ctx.Value(userIDKey).(domain.UserID)
	return userID, ok && userID != ""
}
