package main

import (
	"bytes"
	"chat-relay/contract"
	"chat-relay/storage"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInspect_Lists_Filtered_Records(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()

	// Given a store holding messages of two conversations
	db, err := storage.OpenBadger(dir)
	req.NoError(err)
	gateway := storage.NewBadgerGateway(db, slog.Default())
	ctx := context.Background()
	_, err = gateway.Insert(ctx, "messages", contract.Record{"conversation_id": "c1", "content": "hello there"})
	req.NoError(err)
	_, err = gateway.Insert(ctx, "messages", contract.Record{"conversation_id": "c2", "content": "elsewhere"})
	req.NoError(err)
	req.NoError(db.Close())

	// When one conversation is inspected
	var out bytes.Buffer
	req.NoError(run([]string{"-db", dir, "-collection", "messages", "-where", "conversation_id=c1"}, &out))

	// Then only its messages are printed
	req.Contains(out.String(), "hello there")
	req.NotContains(out.String(), "elsewhere")
	req.Contains(out.String(), "1 record(s)")
}

func TestInspect_Rejects_Bad_Filter(t *testing.T) {
	req := require.New(t)
	err := run([]string{"-db", t.TempDir(), "-where", "no-equals-sign"}, &bytes.Buffer{})
	req.Error(err)
}

func TestColumns_Puts_Identity_First(t *testing.T) {
	req := require.New(t)
	cols := columns([]contract.Record{
		{"id": "1", "created_at": "t", "zeta": 1},
		{"id": "2", "alpha": true},
	})
	req.Equal([]string{"id", "created_at", "alpha", "zeta"}, cols)
}
