package main

import (
	"chat-relay/auth"
	healthserver "chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/httpapi"
	"chat-relay/infrastructure/ws"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/storage"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, serves until a signal arrives and then drains.
// Returning an error instead of exiting lets the deferred closers run.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Persistence gateway
	gateway, closer, err := storage.Open(config.StorageDriver, config.BadgerFilepath, config.SQLiteFilepath, log)
	if err != nil {
		return fmt.Errorf("storage opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing storage...", "driver", config.StorageDriver)
		_ = closer.Close()
	}()

	// 3. Repositories, services and the relay
	profiles := repositories.NewProfileRepository(gateway, log)
	friends := repositories.NewFriendRepository(gateway, log)
	conversations := repositories.NewConversationRepository(gateway, log)
	messages := repositories.NewMessageRepository(gateway, log)

	tokens := auth.NewTokenIssuer(config.SessionSecret, config.AuthTokenDuration)
	authority := services.NewMembershipAuthority(conversations, log)
	monitoring := observability.NewMonitoringManager(log)
	registry := runtime.NewRegistry(config.FanoutBufferSize)
	monitoring.TrackConversations(registry.Len)
	relay := runtime.NewRelay(log, registry, authority, messages, monitoring, config.PersistTimeout)

	origins := ws.NewOriginPolicy(config.Origins(), log)
	api := httpapi.NewAPI(log, httpapi.Deps{
		Auth:     services.NewAuthService(log, profiles, tokens),
		Profiles: services.NewProfileService(log, profiles),
		Friends:  services.NewFriendService(log, friends, profiles),
		Chat:     services.NewChatService(log, conversations, messages, authority),
		Tokens:   tokens,
		Relay:    relay,
		Acceptor: ws.NewAcceptor(log, origins, ws.Options{
			MaxMessageSize: config.MaxMessageSize,
			PingInterval:   config.WSPingInterval,
		}),
		Origins:       origins,
		Stats:         monitoring,
		FrontendDir:   config.FrontendDir,
		SecureCookies: config.SecureCookies,
	})

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Background workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewHeartbeatWorker(log, monitoring, config.HeartbeatInterval))
	if config.GRPCHealthPort > 0 {
		sup.Add(healthserver.NewHealthServer(log, fmt.Sprintf("%s:%d", config.Host, config.GRPCHealthPort)))
	}
	supervised := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supervised)
	}()

	// 6. HTTP server
	server := &http.Server{
		Addr:              config.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting relay server", "address", server.Addr, "storage", config.StorageDriver, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case serveErr = <-errChan:
		stop()
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	if err := api.WaitSessions(shutdownCtx); err != nil {
		log.Warn("Relay sessions still open at shutdown", "error", err)
	}
	select {
	case <-supervised:
	case <-shutdownCtx.Done():
		log.Warn("Workers still running at shutdown")
	}
	monitoring.LogSummary()
	log.Info("Program stopped cleanly")

	return serveErr
}
