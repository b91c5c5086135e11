package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RelayService is the service name reported by the health endpoint.
const RelayService = "chat.relay"

// HealthServer exposes the standard gRPC health protocol for orchestrators.
// It runs as a supervised worker next to the HTTP relay.
type HealthServer struct {
	log     *slog.Logger
	address string
	health  *health.Server

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

func NewHealthServer(log *slog.Logger, address string) *HealthServer {
	return &HealthServer{
		log:     log,
		address: address,
		health:  health.NewServer(),
		ready:   make(chan struct{}),
	}
}

// SetServing flips the reported status of the relay and of the whole server.
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(RelayService, status)
}

// Ready is closed once the listener is bound.
func (s *HealthServer) Ready() <-chan struct{} { return s.ready }

// Addr is the bound address, valid after Ready.
func (s *HealthServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *HealthServer) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, s.health)
	s.SetServing(true)

	s.mu.Lock()
	first := s.listener == nil
	s.listener = listener
	s.mu.Unlock()
	if first {
		close(s.ready)
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting gRPC health server", "address", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC health server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.SetServing(false)
		server.GracefulStop()
		return nil
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}
