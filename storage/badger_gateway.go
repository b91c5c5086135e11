package storage

import (
	"chat-relay/contract"
	apperrors "chat-relay/errors"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// BadgerGateway stores every record under the key "rec:{collection}:{id}".
// Values are protobuf-encoded structpb.Struct documents.
type BadgerGateway struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

func NewBadgerGateway(db *badger.DB, log *slog.Logger) *BadgerGateway {
	return &BadgerGateway{db: db, log: log, now: time.Now}
}

// OpenBadger opens (or creates) the database directory.
func OpenBadger(path string) (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	return db, nil
}

func recordKey(collection, id string) []byte {
	return []byte(collectionPrefix(collection) + id)
}

func collectionPrefix(collection string) string {
	return "rec:" + collection + ":"
}

func (g *BadgerGateway) Insert(ctx context.Context, collection string, record contract.Record) (contract.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	stored := normalize(prepareInsert(record, g.now()))
	bytes, err := encodeRecord(stored)
	if err != nil {
		return nil, err
	}
	key := recordKey(collection, Text(stored[FieldID]))
	err = g.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("duplicate id %q in %s", Text(stored[FieldID]), collection)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, bytes)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: insert into %s: %w", apperrors.ErrDataAccess, collection, err)
	}
	return stored, nil
}

// Query performs a prefix scan over the collection and keeps matching records.
func (g *BadgerGateway) Query(ctx context.Context, collection string, filters ...contract.Filter) ([]contract.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	if err := checkFilters(filters); err != nil {
		return nil, err
	}
	var records []contract.Record
	err := g.db.View(func(txn *badger.Txn) error {
		prefix := []byte(collectionPrefix(collection))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var record contract.Record
			err := item.Value(func(value []byte) error {
				decoded, err := decodeRecord(value)
				record = decoded
				return err
			})
			if err != nil {
				g.log.Warn("Undecodable record", "key", string(item.Key()), "error", err)
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			if matches(record, filters) {
				records = append(records, record)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", apperrors.ErrDataAccess, collection, err)
	}
	return records, nil
}

func (g *BadgerGateway) Update(ctx context.Context, collection, id string, patch contract.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkCollection(collection); err != nil {
		return err
	}
	key := recordKey(collection, id)
	err := g.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		var current contract.Record
		err = item.Value(func(value []byte) error {
			decoded, err := decodeRecord(value)
			current = decoded
			return err
		})
		if err != nil {
			return err
		}
		bytes, err := encodeRecord(merge(current, normalize(patch)))
		if err != nil {
			return err
		}
		return txn.Set(key, bytes)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s %q", apperrors.ErrNotFound, collection, id)
	}
	if err != nil {
		return fmt.Errorf("%w: update %s: %w", apperrors.ErrDataAccess, collection, err)
	}
	return nil
}

func encodeRecord(record contract.Record) ([]byte, error) {
	st, err := structpb.NewStruct(record)
	if err != nil {
		return nil, fmt.Errorf("%w: encode record: %w", apperrors.ErrDataAccess, err)
	}
	return proto.Marshal(st)
}

func decodeRecord(value []byte) (contract.Record, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(value, &st); err != nil {
		return nil, err
	}
	return st.AsMap(), nil
}
