package storage

import (
	"chat-relay/contract"
	apperrors "chat-relay/errors"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const recordsSchema = `
CREATE TABLE IF NOT EXISTS records (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	body TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_records_created ON records (collection, created_at);
`

// SQLiteGateway keeps every collection in one table with a JSON body column.
type SQLiteGateway struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

// OpenSQLite opens the database file and applies the schema.
func OpenSQLite(path string, log *slog.Logger) (*SQLiteGateway, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}
	if _, err := db.Exec(recordsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteGateway{db: db, log: log, now: time.Now}, nil
}

func (g *SQLiteGateway) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}

func (g *SQLiteGateway) Insert(ctx context.Context, collection string, record contract.Record) (contract.Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	now := g.now()
	stored := normalize(prepareInsert(record, now))
	body, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("%w: encode record: %w", apperrors.ErrDataAccess, err)
	}
	_, err = g.db.ExecContext(ctx,
		`INSERT INTO records (collection, id, body, created_at) VALUES (?, ?, ?, ?)`,
		collection, Text(stored[FieldID]), string(body), now.UnixNano(),
	)
	if err != nil {
		if isConstraintUnique(err) {
			return nil, fmt.Errorf("%w: duplicate id %q in %s", apperrors.ErrDataAccess, Text(stored[FieldID]), collection)
		}
		return nil, fmt.Errorf("%w: insert into %s: %w", apperrors.ErrDataAccess, collection, err)
	}
	return stored, nil
}

func (g *SQLiteGateway) Query(ctx context.Context, collection string, filters ...contract.Filter) ([]contract.Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	if err := checkFilters(filters); err != nil {
		return nil, err
	}
	var sb strings.Builder
	sb.WriteString(`SELECT body FROM records WHERE collection = ?`)
	args := []any{collection}
	for _, f := range filters {
		path := "$." + f.Field
		sb.WriteString(` AND (CASE json_type(body, ?) WHEN 'true' THEN 'true' WHEN 'false' THEN 'false' ELSE CAST(json_extract(body, ?) AS TEXT) END) = ?`)
		args = append(args, path, path, f.Value)
	}
	sb.WriteString(` ORDER BY created_at, id`)

	rows, err := g.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", apperrors.ErrDataAccess, collection, err)
	}
	defer rows.Close()

	var records []contract.Record
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %w", apperrors.ErrDataAccess, collection, err)
		}
		var record contract.Record
		if err := json.Unmarshal([]byte(body), &record); err != nil {
			g.log.Warn("Undecodable record", "collection", collection, "error", err)
			return nil, fmt.Errorf("%w: decode %s: %w", apperrors.ErrDataAccess, collection, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate %s: %w", apperrors.ErrDataAccess, collection, err)
	}
	return records, nil
}

func (g *SQLiteGateway) Update(ctx context.Context, collection, id string, patch contract.Record) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin update %s: %w", apperrors.ErrDataAccess, collection, err)
	}
	defer func() { _ = tx.Rollback() }()

	var body string
	err = tx.QueryRowContext(ctx,
		`SELECT body FROM records WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %q", apperrors.ErrNotFound, collection, id)
	}
	if err != nil {
		return fmt.Errorf("%w: load %s: %w", apperrors.ErrDataAccess, collection, err)
	}
	var current contract.Record
	if err := json.Unmarshal([]byte(body), &current); err != nil {
		return fmt.Errorf("%w: decode %s: %w", apperrors.ErrDataAccess, collection, err)
	}
	merged, err := json.Marshal(merge(current, normalize(patch)))
	if err != nil {
		return fmt.Errorf("%w: encode record: %w", apperrors.ErrDataAccess, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET body = ? WHERE collection = ? AND id = ?`, string(merged), collection, id,
	); err != nil {
		return fmt.Errorf("%w: update %s: %w", apperrors.ErrDataAccess, collection, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit update %s: %w", apperrors.ErrDataAccess, collection, err)
	}
	return nil
}

func isConstraintUnique(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
