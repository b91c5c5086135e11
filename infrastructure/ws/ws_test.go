package ws

import (
	"chat-relay/contract"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestOriginPolicy(t *testing.T) {
	policy := NewOriginPolicy([]string{" HTTP://LocalHost:5173 ", "not a url", "https://chat.example.com"}, slog.Default())

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"http://localhost:5173", true},
		{"https://CHAT.example.com", true},
		{"https://chat.example.com/path", true},
		{"http://localhost:3000", false},
		{"https://evil.example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			require.Equal(t, tt.allowed, policy.Allowed(tt.origin))
		})
	}

	req := require.New(t)
	r := httptest.NewRequest(http.MethodGet, "/ws/x", nil)
	req.True(policy.CheckOrigin(r))
	r.Header.Set("Origin", "https://evil.example.com")
	req.False(policy.CheckOrigin(r))

	req.True(NewOriginPolicy([]string{"*"}, slog.Default()).Allowed("https://anything.example"))
}

// serve starts a server handing every accepted stream to handle.
func serve(t *testing.T, opts Options, handle func(*Stream)) string {
	acceptor := NewAcceptor(slog.Default(), NewOriginPolicy([]string{"http://allowed.example"}, slog.Default()), opts)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stream, err := acceptor.Accept(w, r)
		if err != nil {
			return
		}
		handle(stream)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestStream_Reads_Text_And_Close(t *testing.T) {
	req := require.New(t)
	frames := make(chan contract.Frame, 4)
	url := serve(t, Options{MaxMessageSize: 1024}, func(s *Stream) {
		defer s.Close()
		for {
			frame, err := s.Read(context.Background())
			if err != nil {
				return
			}
			frames <- frame
			if frame.Kind == contract.FrameClose {
				return
			}
		}
	})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	defer conn.Close()

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"content":"hi"}`)))
	req.NoError(conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2}))
	req.NoError(conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))

	for _, want := range []contract.FrameKind{contract.FrameText, contract.FrameBinary, contract.FrameClose} {
		select {
		case frame := <-frames:
			req.Equal(want, frame.Kind)
			if want == contract.FrameText {
				req.Equal(`{"content":"hi"}`, string(frame.Data))
			}
		case <-time.After(2 * time.Second):
			req.FailNow("frame not received")
		}
	}
}

func TestStream_Write(t *testing.T) {
	req := require.New(t)
	url := serve(t, Options{PingInterval: 50 * time.Millisecond}, func(s *Stream) {
		_ = s.Write(context.Background(), []byte("hello"))
		// keep the connection open until the client leaves
		_, _ = s.Read(context.Background())
		_ = s.Close()
	})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	defer conn.Close()

	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	messageType, data, err := conn.ReadMessage()
	req.NoError(err)
	req.Equal(websocket.TextMessage, messageType)
	req.Equal("hello", string(data))
}

func TestStream_Close_Unblocks_Read(t *testing.T) {
	req := require.New(t)
	result := make(chan error, 1)
	url := serve(t, Options{}, func(s *Stream) {
		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = s.Close()
		}()
		_, err := s.Read(context.Background())
		result <- err
	})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	defer conn.Close()

	select {
	case err := <-result:
		req.Error(err)
	case <-time.After(2 * time.Second):
		req.FailNow("read still blocked after close")
	}
}

func TestAcceptor_Rejects_Disallowed_Origin(t *testing.T) {
	req := require.New(t)
	url := serve(t, Options{}, func(s *Stream) { _ = s.Close() })

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	req.Error(err)
	req.NotNil(resp)
	req.Equal(http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://allowed.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	req.NoError(err)
	_ = conn.Close()
}
