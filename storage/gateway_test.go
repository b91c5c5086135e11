package storage

import (
	"chat-relay/contract"
	apperrors "chat-relay/errors"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

type gatewayFactory func(t *testing.T) contract.Gateway

func backends() map[string]gatewayFactory {
	return map[string]gatewayFactory{
		DriverBadger: func(t *testing.T) contract.Gateway {
			db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })
			return NewBadgerGateway(db, slog.Default())
		},
		DriverSQLite: func(t *testing.T) contract.Gateway {
			gw, err := OpenSQLite(filepath.Join(t.TempDir(), "relay.db"), slog.Default())
			require.NoError(t, err)
			t.Cleanup(func() { _ = gw.Close() })
			return gw
		},
	}
}

func Test_Insert_Fills_Id_And_CreatedAt(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			gw := open(t)
			ctx := context.Background()

			stored, err := gw.Insert(ctx, "profiles", contract.Record{"username": "alice"})
			req.NoError(err)
			req.NotEmpty(Text(stored[FieldID]))
			req.NotEmpty(Text(stored[FieldCreatedAt]))

			rows, err := gw.Query(ctx, "profiles", contract.Eq("id", Text(stored[FieldID])))
			req.NoError(err)
			req.Len(rows, 1)
			req.Equal("alice", rows[0]["username"])
		})
	}
}

func Test_Insert_Keeps_Caller_Id(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			gw := open(t)
			ctx := context.Background()

			stored, err := gw.Insert(ctx, "conversations", contract.Record{"id": "c1", "is_group": false})
			req.NoError(err)
			req.Equal("c1", stored[FieldID])

			_, err = gw.Insert(ctx, "conversations", contract.Record{"id": "c1"})
			req.ErrorIs(err, apperrors.ErrDataAccess)
		})
	}
}

func Test_Query_Filters_Match_Textual_Form(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			gw := open(t)
			ctx := context.Background()

			_, err := gw.Insert(ctx, "conversations", contract.Record{"id": "c1", "is_group": false, "rank": 2})
			req.NoError(err)
			_, err = gw.Insert(ctx, "conversations", contract.Record{"id": "c2", "is_group": true, "rank": 3})
			req.NoError(err)

			rows, err := gw.Query(ctx, "conversations", contract.Eq("is_group", "false"))
			req.NoError(err)
			req.Len(rows, 1)
			req.Equal("c1", rows[0][FieldID])

			rows, err = gw.Query(ctx, "conversations", contract.Eq("rank", "3"))
			req.NoError(err)
			req.Len(rows, 1)
			req.Equal("c2", rows[0][FieldID])

			rows, err = gw.Query(ctx, "conversations", contract.Eq("is_group", "true"), contract.Eq("rank", "2"))
			req.NoError(err)
			req.Empty(rows)
		})
	}
}

func Test_Query_Is_Scoped_To_Collection(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			gw := open(t)
			ctx := context.Background()

			_, err := gw.Insert(ctx, "messages", contract.Record{"content": "hello"})
			req.NoError(err)
			_, err = gw.Insert(ctx, "messages_archive", contract.Record{"content": "old"})
			req.NoError(err)

			rows, err := gw.Query(ctx, "messages")
			req.NoError(err)
			req.Len(rows, 1)
			req.Equal("hello", rows[0]["content"])
		})
	}
}

func Test_Update_Merges_Patch(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			gw := open(t)
			ctx := context.Background()

			stored, err := gw.Insert(ctx, "friends", contract.Record{"user_a": "a", "user_b": "b", "status": "pending"})
			req.NoError(err)
			id := Text(stored[FieldID])

			req.NoError(gw.Update(ctx, "friends", id, contract.Record{"status": "accepted", "id": "other"}))

			rows, err := gw.Query(ctx, "friends", contract.Eq("id", id))
			req.NoError(err)
			req.Len(rows, 1)
			req.Equal("accepted", rows[0]["status"])
			req.Equal("a", rows[0]["user_a"])
		})
	}
}

func Test_Update_Missing_Record(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			gw := open(t)

			err := gw.Update(context.Background(), "profiles", "nobody", contract.Record{"bio": "x"})
			req.True(errors.Is(err, apperrors.ErrNotFound))
		})
	}
}

func Test_Rejects_Invalid_Names(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			gw := open(t)
			ctx := context.Background()

			_, err := gw.Query(ctx, "profiles; DROP TABLE records")
			req.ErrorIs(err, apperrors.ErrDataAccess)

			_, err = gw.Query(ctx, "profiles", contract.Eq("id') OR 1=1 --", "x"))
			req.ErrorIs(err, apperrors.ErrDataAccess)
		})
	}
}

func Test_Open_Unknown_Driver(t *testing.T) {
	req := require.New(t)
	_, _, err := Open("postgres", "", "", slog.Default())
	req.Error(err)
}
