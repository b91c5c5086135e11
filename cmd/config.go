package main

import (
	"chat-relay/storage"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=3000"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	StorageDriver  string `env:"STORAGE_DRIVER,default=badger"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/badger"`
	SQLiteFilepath string `env:"SQLITE_FILEPATH,default=./data/relay.db"`

	FrontendURL   string `env:"FRONTEND_URL,required=true"`
	FrontendDir   string `env:"FRONTEND_DIR,default=../frontend"`
	SecureCookies bool   `env:"SECURE_COOKIES,default=false"`

	SessionSecret     string        `env:"SESSION_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=168h"`

	FanoutBufferSize  int           `env:"FANOUT_BUFFER_SIZE,default=256"`
	MaxMessageSize    int64         `env:"MAX_MESSAGE_SIZE,default=65536"`
	PersistTimeout    time.Duration `env:"PERSIST_TIMEOUT,default=5s"`
	WSPingInterval    time.Duration `env:"WS_PING_INTERVAL,default=30s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=1m"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	GRPCHealthPort    int           `env:"GRPC_HEALTH_PORT,default=0"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Origins splits FRONTEND_URL into the allowed browser origins.
func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.FrontendURL, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func (c Config) Validate() error {
	switch c.StorageDriver {
	case storage.DriverBadger, storage.DriverSQLite:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", storage.DriverBadger, storage.DriverSQLite, c.StorageDriver)
	}
	if len(c.Origins()) == 0 {
		return fmt.Errorf("FRONTEND_URL must list at least one origin")
	}
	if strings.TrimSpace(c.SessionSecret) == "" {
		return fmt.Errorf("SESSION_SECRET must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.FanoutBufferSize <= 0 {
		return fmt.Errorf("FANOUT_BUFFER_SIZE must be positive, got %d", c.FanoutBufferSize)
	}
	if c.AuthTokenDuration <= 0 {
		return fmt.Errorf("AUTH_TOKEN_DURATION must be positive, got %s", c.AuthTokenDuration)
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
