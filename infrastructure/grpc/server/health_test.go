package server

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthServer_Reports_Serving(t *testing.T) {
	req := require.New(t)
	server := NewHealthServer(slog.Default(), "127.0.0.1:0")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	select {
	case <-server.Ready():
	case <-time.After(2 * time.Second):
		req.FailNow("health server did not start")
	}

	conn, err := grpc.NewClient(server.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	req.NoError(err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	checkCtx, checkCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer checkCancel()
	resp, err := client.Check(checkCtx, &healthpb.HealthCheckRequest{Service: RelayService})
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	server.SetServing(false)
	resp, err = client.Check(checkCtx, &healthpb.HealthCheckRequest{Service: RelayService})
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	cancel()
	req.NoError(<-done)
}
