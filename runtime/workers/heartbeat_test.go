package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHeartbeat_Samples_Process(t *testing.T) {
	req := require.New(t)
	monitoring := observability.NewMonitoringManager(slog.Default())
	worker := NewHeartbeatWorker(slog.Default(), monitoring, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// Then a sample is eventually recorded
	req.Eventually(func() bool {
		return monitoring.Snapshot().Process.RSSBytes > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	req.NoError(<-done)
}
