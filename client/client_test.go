package client

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/infrastructure/httpapi"
	"chat-relay/infrastructure/ws"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
	"chat-relay/storage"
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T) string {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	gateway := storage.NewBadgerGateway(db, log)
	profiles := repositories.NewProfileRepository(gateway, log)
	conversations := repositories.NewConversationRepository(gateway, log)
	messages := repositories.NewMessageRepository(gateway, log)
	authority := services.NewMembershipAuthority(conversations, log)
	tokens := auth.NewTokenIssuer("client-test", time.Hour)
	stats := observability.NewMonitoringManager(log)
	origins := ws.NewOriginPolicy([]string{"*"}, log)

	api := httpapi.NewAPI(log, httpapi.Deps{
		Auth:     services.NewAuthService(log, profiles, tokens),
		Profiles: services.NewProfileService(log, profiles),
		Friends:  services.NewFriendService(log, repositories.NewFriendRepository(gateway, log), profiles),
		Chat:     services.NewChatService(log, conversations, messages, authority),
		Tokens:   tokens,
		Relay:    runtime.NewRelay(log, runtime.NewRegistry(16), authority, messages, stats, time.Second),
		Acceptor: ws.NewAcceptor(log, origins, ws.Options{}),
		Origins:  origins,
		Stats:    stats,
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestClient_Conversation_Round_Trip(t *testing.T) {
	req := require.New(t)
	url := startRelay(t)
	ctx := context.Background()

	// Given two registered users sharing a conversation
	alice, err := New(url)
	req.NoError(err)
	bob, err := New(url)
	req.NoError(err)
	aliceID, err := alice.Register(ctx, "alice", "secret-pass")
	req.NoError(err)
	bobID, err := bob.Register(ctx, "bob", "secret-pass")
	req.NoError(err)

	conversationID, err := alice.StartConversation(ctx, bobID)
	req.NoError(err)
	again, err := bob.StartConversation(ctx, aliceID)
	req.NoError(err)
	req.Equal(conversationID, again)

	// When bob listens and alice sends
	bobConn, err := bob.Join(ctx, conversationID)
	req.NoError(err)
	defer bobConn.Close()
	aliceConn, err := alice.Join(ctx, conversationID)
	req.NoError(err)
	defer aliceConn.Close()

	// The first line may race bob's subscription, so retry until it arrives.
	received := make(chan string, 1)
	go func() {
		evt, err := bobConn.Receive()
		if err == nil {
			received <- evt.Content
		}
	}()
	req.Eventually(func() bool {
		if err := aliceConn.Send("ping"); err != nil {
			return false
		}
		select {
		case content := <-received:
			return content == "ping"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	// Then the history holds what was sent once it is stored
	var history []domain.Message
	for deadline := time.Now().Add(3 * time.Second); len(history) == 0 && time.Now().Before(deadline); {
		history, err = bob.Messages(ctx, conversationID)
		req.NoError(err)
		if len(history) == 0 {
			time.Sleep(10 * time.Millisecond)
		}
	}
	req.NotEmpty(history)
	req.Equal("ping", history[0].Content)
}

func TestClient_Reports_Relay_Errors(t *testing.T) {
	req := require.New(t)
	url := startRelay(t)
	ctx := context.Background()

	c, err := New(url)
	req.NoError(err)

	_, err = c.Login(ctx, "nobody", "secret-pass")
	var apiErr *APIError
	req.True(stderrors.As(err, &apiErr))
	req.Equal(http.StatusUnauthorized, apiErr.Status)
	req.NotEmpty(apiErr.Message)

	_, err = c.Join(ctx, "7d1f8a3e-6f0e-4a53-9a70-0c2c8f8b6f11")
	req.True(stderrors.As(err, &apiErr))
	req.Equal(http.StatusUnauthorized, apiErr.Status)

	_, err = New("::not a url")
	req.Error(err)
}
