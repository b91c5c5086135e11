package httpapi

import (
	"bytes"
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/infrastructure/ws"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
	"chat-relay/storage"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:5173"

type testServer struct {
	*httptest.Server
	stats *observability.MonitoringManager
}

func newTestServer(t *testing.T, frontendDir string) testServer {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	gateway := storage.NewBadgerGateway(db, log)
	profiles := repositories.NewProfileRepository(gateway, log)
	conversations := repositories.NewConversationRepository(gateway, log)
	messages := repositories.NewMessageRepository(gateway, log)
	authority := services.NewMembershipAuthority(conversations, log)
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	stats := observability.NewMonitoringManager(log)
	origins := ws.NewOriginPolicy([]string{testOrigin}, log)

	api := NewAPI(log, Deps{
		Auth:        services.NewAuthService(log, profiles, tokens),
		Profiles:    services.NewProfileService(log, profiles),
		Friends:     services.NewFriendService(log, repositories.NewFriendRepository(gateway, log), profiles),
		Chat:        services.NewChatService(log, conversations, messages, authority),
		Tokens:      tokens,
		Relay:       runtime.NewRelay(log, runtime.NewRegistry(16), authority, messages, stats, time.Second),
		Acceptor:    ws.NewAcceptor(log, origins, ws.Options{MaxMessageSize: 4096}),
		Origins:     origins,
		Stats:       stats,
		FrontendDir: frontendDir,
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return testServer{Server: srv, stats: stats}
}

// client is one browser: it keeps its own session cookie.
type client struct {
	t    *testing.T
	http *http.Client
	base string
}

func (s testServer) client(t *testing.T) *client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, http: &http.Client{Jar: jar}, base: s.URL}
}

func (c *client) do(method, path string, body any) (int, map[string]any) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

func (c *client) register(username string) string {
	status, body := c.do(http.MethodPost, "/register", map[string]string{"username": username, "password": "secret-pass"})
	require.Equal(c.t, http.StatusOK, status, body)
	return body["user_id"].(string)
}

func (c *client) dial(conversationID string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{Jar: c.http.Jar, HandshakeTimeout: 2 * time.Second}
	url := "ws" + strings.TrimPrefix(c.base, "http") + "/ws/" + conversationID
	return dialer.Dial(url, nil)
}

func TestAPI_Register_Login_Me_Logout(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, "")
	alice := srv.client(t)

	// Given a registered user
	id := alice.register("alice")

	// Then the session cookie identifies them
	status, body := alice.do(http.MethodGet, "/me", nil)
	req.Equal(http.StatusOK, status)
	req.Equal(id, body["user_id"])

	// When they log out
	status, body = alice.do(http.MethodPost, "/logout", nil)
	req.Equal(http.StatusOK, status)
	req.Equal("logged out", body["status"])

	// Then the API no longer knows them
	status, body = alice.do(http.MethodGet, "/me", nil)
	req.Equal(http.StatusUnauthorized, status)
	req.NotEmpty(body["error"])

	// And a wrong password is rejected while the right one opens a new session
	status, _ = alice.do(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "wrong-pass"})
	req.Equal(http.StatusUnauthorized, status)
	status, body = alice.do(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "secret-pass"})
	req.Equal(http.StatusOK, status)
	req.Equal("alice", body["username"])
}

func TestAPI_Register_Rejects_Duplicate_And_Malformed(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, "")
	c := srv.client(t)
	c.register("alice")

	status, body := c.do(http.MethodPost, "/register", map[string]string{"username": "alice", "password": "secret-pass"})
	req.Equal(http.StatusBadRequest, status)
	req.Contains(body["error"], "taken")

	status, _ = c.do(http.MethodPost, "/register", "not an object")
	req.Equal(http.StatusBadRequest, status)
}

func TestAPI_Protected_Routes_Require_Session(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, "")
	anonymous := srv.client(t)

	for _, path := range []string{"/profile/me", "/friends", "/friends/pending", "/conversations"} {
		status, body := anonymous.do(http.MethodGet, path, nil)
		req.Equal(http.StatusUnauthorized, status, path)
		req.NotEmpty(body["error"], path)
	}
}

func TestAPI_Profile_Get_And_Edit(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, "")
	alice, bob := srv.client(t), srv.client(t)
	aliceID := alice.register("alice")
	bob.register("bob")

	status, body := alice.do(http.MethodGet, "/profile/me", nil)
	req.Equal(http.StatusOK, status)
	req.Equal("alice", body["display_name"])
	req.NotContains(body, "password_hash")

	// Only the owner may edit
	status, _ = bob.do(http.MethodPut, "/profile/"+aliceID, map[string]string{"bio": "hacked"})
	req.Equal(http.StatusUnauthorized, status)

	status, body = alice.do(http.MethodPut, "/profile/"+aliceID, map[string]string{"bio": "hello"})
	req.Equal(http.StatusOK, status)
	req.Equal("hello", body["bio"])

	status, body = bob.do(http.MethodGet, "/profile/"+aliceID, nil)
	req.Equal(http.StatusOK, status)
	req.Equal("hello", body["bio"])

	status, _ = bob.do(http.MethodGet, "/profile/not-a-uuid", nil)
	req.Equal(http.StatusBadRequest, status)
}

func TestAPI_Friends(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, "")
	alice, bob := srv.client(t), srv.client(t)
	alice.register("alice")
	bobID := bob.register("bob")

	status, body := alice.do(http.MethodPost, "/friends", map[string]string{"friend_id": bobID})
	req.Equal(http.StatusOK, status)
	req.Equal("accepted", body["status"])

	status, _ = alice.do(http.MethodPost, "/friends", map[string]string{"friend_id": bobID})
	req.Equal(http.StatusBadRequest, status)

	status, body = bob.do(http.MethodGet, "/friends", nil)
	req.Equal(http.StatusOK, status)
	friends := body["friends"].([]any)
	req.Len(friends, 1)
	req.Equal("alice", friends[0].(map[string]any)["username"])

	status, body = bob.do(http.MethodGet, "/friends/pending", nil)
	req.Equal(http.StatusOK, status)
	req.Empty(body["pending"])
}

func TestAPI_Conversation_Relay_End_To_End(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, "")
	alice, bob, mallory := srv.client(t), srv.client(t), srv.client(t)
	aliceID := alice.register("alice")
	bobID := bob.register("bob")
	mallory.register("mallory")

	// Given a direct conversation between alice and bob
	status, body := alice.do(http.MethodPost, "/conversations", map[string]string{"friend_id": bobID})
	req.Equal(http.StatusOK, status)
	conversationID := body["conversation_id"].(string)

	status, body = bob.do(http.MethodGet, "/conversations", nil)
	req.Equal(http.StatusOK, status)
	req.Equal([]any{conversationID}, body["conversations"])

	// And a non-member is refused before any upgrade
	_, resp, err := mallory.dial(conversationID)
	req.Error(err)
	req.NotNil(resp)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	// When both members connect and alice posts
	aliceConn, _, err := alice.dial(conversationID)
	req.NoError(err)
	defer aliceConn.Close()
	bobConn, _, err := bob.dial(conversationID)
	req.NoError(err)
	defer bobConn.Close()

	req.Eventually(func() bool {
		return srv.stats.Snapshot().SessionsActive == 2
	}, 2*time.Second, 10*time.Millisecond)

	req.NoError(aliceConn.WriteMessage(websocket.TextMessage, []byte(`{"content":"hi bob"}`)))

	// Then both receive the event, the sender included
	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
		_, data, err := conn.ReadMessage()
		req.NoError(err)
		var evt domain.OutgoingEvent
		req.NoError(json.Unmarshal(data, &evt))
		req.Equal(domain.UserID(aliceID), evt.SenderID)
		req.Equal("hi bob", evt.Content)
	}

	// And once both sessions have closed, the message is in the history
	_ = aliceConn.Close()
	_ = bobConn.Close()
	req.Eventually(func() bool {
		return srv.stats.Snapshot().SessionsActive == 0
	}, 2*time.Second, 10*time.Millisecond)
	status, body = bob.do(http.MethodGet, "/conversations/"+conversationID+"/messages", nil)
	req.Equal(http.StatusOK, status)
	messages := body["messages"].([]any)
	req.Len(messages, 1)
	req.Equal("hi bob", messages[0].(map[string]any)["content"])

	status, _ = mallory.do(http.MethodGet, "/conversations/"+conversationID+"/messages", nil)
	req.Equal(http.StatusUnauthorized, status)
}

func TestAPI_Relay_Requires_Session(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, "")
	anonymous := srv.client(t)

	_, resp, err := anonymous.dial(domain.NewConversationID().String())
	req.Error(err)
	req.NotNil(resp)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_CORS_Preflight(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, "")

	preflight := func(origin string) *http.Response {
		r, err := http.NewRequest(http.MethodOptions, srv.URL+"/friends", nil)
		req.NoError(err)
		r.Header.Set("Origin", origin)
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
		resp, err := http.DefaultClient.Do(r)
		req.NoError(err)
		_ = resp.Body.Close()
		return resp
	}

	allowed := preflight(testOrigin)
	req.Equal(http.StatusNoContent, allowed.StatusCode)
	req.Equal(testOrigin, allowed.Header.Get("Access-Control-Allow-Origin"))
	req.Equal("true", allowed.Header.Get("Access-Control-Allow-Credentials"))
	req.Contains(allowed.Header.Get("Access-Control-Allow-Methods"), http.MethodPut)

	denied := preflight("http://evil.example")
	req.Empty(denied.Header.Get("Access-Control-Allow-Origin"))
}

func TestAPI_Health_Stats_And_Frontend(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	req.NoError(os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>chat</h1>"), 0o644))
	srv := newTestServer(t, dir)

	resp, err := http.Get(srv.URL + "/healthz")
	req.NoError(err)
	_ = resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/debug/stats")
	req.NoError(err)
	var stats observability.RelayStats
	req.NoError(json.NewDecoder(resp.Body).Decode(&stats))
	_ = resp.Body.Close()
	req.Zero(stats.SessionsActive)

	resp, err = http.Get(srv.URL + "/")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
	var page bytes.Buffer
	_, err = page.ReadFrom(resp.Body)
	req.NoError(err)
	req.Contains(page.String(), "chat")
}
