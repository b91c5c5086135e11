// Package ws adapts gorilla websocket connections to the relay stream contract.
package ws

import (
	"chat-relay/contract"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteTimeout = 10 * time.Second
	closeGrace          = time.Second
)

type Options struct {
	MaxMessageSize int64
	// PingInterval is the keep-alive period. Zero disables pings and read deadlines.
	PingInterval time.Duration
	WriteTimeout time.Duration
}

// Acceptor upgrades HTTP requests into streams.
type Acceptor struct {
	log      *slog.Logger
	upgrader websocket.Upgrader
	opts     Options
}

func NewAcceptor(log *slog.Logger, origins *OriginPolicy, opts Options) *Acceptor {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	return &Acceptor{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if origins.CheckOrigin(r) {
					return true
				}
				log.Warn("Blocked WebSocket connection from disallowed origin", "origin", r.Header.Get("Origin"))
				return false
			},
		},
		opts: opts,
	}
}

// Accept performs the upgrade. On failure the upgrader has already answered the request.
func (a *Acceptor) Accept(w http.ResponseWriter, r *http.Request) (*Stream, error) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewStream(conn, a.log.With("remote", r.RemoteAddr), a.opts), nil
}

var _ contract.Stream = (*Stream)(nil)

// Stream is one accepted websocket connection.
// Read and Write may run in two goroutines; pings are sent as control frames.
type Stream struct {
	conn *websocket.Conn
	log  *slog.Logger
	opts Options

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func NewStream(conn *websocket.Conn, log *slog.Logger, opts Options) *Stream {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	s := &Stream{conn: conn, log: log, opts: opts, done: make(chan struct{})}
	if opts.MaxMessageSize > 0 {
		conn.SetReadLimit(opts.MaxMessageSize)
	}
	if opts.PingInterval > 0 {
		pongWait := opts.PingInterval * 2
		s.extendReadDeadline(pongWait)
		conn.SetPongHandler(func(string) error {
			s.extendReadDeadline(pongWait)
			return nil
		})
		go s.keepAlive()
	}
	return s
}

func (s *Stream) extendReadDeadline(wait time.Duration) {
	if err := s.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		s.log.Debug("Error setting read deadline", "error", err)
	}
}

func (s *Stream) keepAlive() {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.opts.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				if !isExpectedCloseError(err) {
					s.log.Debug("Ping failed", "error", err)
				}
				return
			}
		}
	}
}

// Read returns the next frame. A close from the peer is a FrameClose, not an error.
// The context is not observed: Close unblocks a pending Read.
func (s *Stream) Read(_ context.Context) (contract.Frame, error) {
	messageType, data, err := s.conn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return contract.Frame{Kind: contract.FrameClose}, nil
		}
		if errors.Is(err, websocket.ErrReadLimit) {
			s.log.Info("Message exceeded maximum size", "limit", s.opts.MaxMessageSize)
		}
		return contract.Frame{}, err
	}
	switch messageType {
	case websocket.TextMessage:
		return contract.Frame{Kind: contract.FrameText, Data: data}, nil
	default:
		return contract.Frame{Kind: contract.FrameBinary, Data: data}, nil
	}
}

// Write sends one text message, bounded by the write timeout or the context deadline.
func (s *Stream) Write(ctx context.Context, text []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	deadline := time.Now().Add(s.opts.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, text)
}

// Close sends a normal closure frame when possible and releases the connection.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(closeGrace))
		err = s.conn.Close()
		if isExpectedCloseError(err) {
			err = nil
		}
	})
	return err
}

func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return errors.Is(err, websocket.ErrCloseSent) ||
		strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "broken pipe")
}
