package storage

import (
	"chat-relay/contract"
	"fmt"
	"io"
	"log/slog"
)

const (
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Open returns the gateway for the given driver and a closer releasing it.
func Open(driver, badgerPath, sqlitePath string, log *slog.Logger) (contract.Gateway, io.Closer, error) {
	switch driver {
	case DriverBadger:
		db, err := OpenBadger(badgerPath)
		if err != nil {
			return nil, nil, err
		}
		return NewBadgerGateway(db, log), closerFunc(db.Close), nil
	case DriverSQLite:
		gw, err := OpenSQLite(sqlitePath, log)
		if err != nil {
			return nil, nil, err
		}
		return gw, gw, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
