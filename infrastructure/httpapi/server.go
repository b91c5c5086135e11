// Package httpapi is the HTTP surface of the relay: the JSON API used by the
// frontend, the WebSocket entry point and the static frontend files.
package httpapi

import (
	"chat-relay/auth"
	"chat-relay/infrastructure/ws"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/services"
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
)

// Deps are the collaborators the handlers delegate to.
type Deps struct {
	Auth     services.IAuthService
	Profiles services.IProfileService
	Friends  services.IFriendService
	Chat     services.IChatService

	Tokens   *auth.TokenIssuer
	Relay    *runtime.Relay
	Acceptor *ws.Acceptor
	Origins  *ws.OriginPolicy
	Stats    *observability.MonitoringManager

	// FrontendDir is served for every path no API route claims. Empty disables it.
	FrontendDir   string
	SecureCookies bool
}

type API struct {
	log  *slog.Logger
	deps Deps

	// sessions tracks upgraded connections, which http.Server.Shutdown does not wait for.
	sessions sync.WaitGroup
}

func NewAPI(log *slog.Logger, deps Deps) *API {
	return &API{log: log, deps: deps}
}

// Handler builds the routing table wrapped in the CORS layer.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /register", a.register)
	mux.HandleFunc("POST /login", a.login)
	mux.HandleFunc("POST /logout", a.logout)
	mux.Handle("GET /me", a.authenticated(a.me))

	mux.Handle("GET /profile/me", a.authenticated(a.myProfile))
	mux.Handle("GET /profile/{id}", a.authenticated(a.profile))
	mux.Handle("PUT /profile/{id}", a.authenticated(a.editProfile))

	mux.Handle("GET /friends", a.authenticated(a.listFriends))
	mux.Handle("POST /friends", a.authenticated(a.addFriend))
	mux.Handle("GET /friends/pending", a.authenticated(a.pendingFriends))

	mux.Handle("GET /conversations", a.authenticated(a.listConversations))
	mux.Handle("POST /conversations", a.authenticated(a.startConversation))
	mux.Handle("GET /conversations/{id}/messages", a.authenticated(a.messages))

	mux.HandleFunc("GET /ws/{conversation_id}", a.relay)

	mux.HandleFunc("GET /healthz", a.healthz)
	mux.HandleFunc("GET /debug/stats", a.stats)

	if static := a.frontend(); static != nil {
		mux.Handle("/", static)
	}
	return withCORS(a.deps.Origins, mux)
}

// WaitSessions blocks until every upgraded connection has ended or ctx is done.
func (a *API) WaitSessions(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *API) authenticated(next http.HandlerFunc) http.Handler {
	return a.deps.Tokens.RequireSession(a.fail, next)
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(a.log, w, r, err)
}

func (a *API) frontend() http.Handler {
	dir := a.deps.FrontendDir
	if dir == "" {
		return nil
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		a.log.Warn("Frontend directory not found, static files will not be served", "dir", dir)
	}
	return http.FileServer(http.Dir(dir))
}
