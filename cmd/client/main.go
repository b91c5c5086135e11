// Command client is a terminal chat client: it logs in, joins the direct
// conversation with a friend, prints incoming messages and sends stdin lines.
package main

import (
	"bufio"
	"chat-relay/client"
	"chat-relay/domain"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	ServerURL string `env:"CHAT_SERVER_URL,default=http://localhost:3000"`
	Username  string `env:"CHAT_USERNAME,required=true"`
	Password  string `env:"CHAT_PASSWORD,required=true"`
	FriendID  string `env:"CHAT_FRIEND_ID,required=true"`
	Register  bool   `env:"CHAT_REGISTER,default=false"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	friend, err := domain.ParseUserID(config.FriendID)
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Session
	c, err := client.New(config.ServerURL)
	if err != nil {
		return exitConfig, err
	}
	login := c.Login
	if config.Register {
		login = c.Register
	}
	me, err := login(ctx, config.Username, config.Password)
	if err != nil {
		return exitRuntime, err
	}

	// 4. Conversation, history first
	conversationID, err := c.StartConversation(ctx, friend)
	if err != nil {
		return exitRuntime, err
	}
	history, err := c.Messages(ctx, conversationID)
	if err != nil {
		return exitRuntime, err
	}
	for _, message := range history {
		printMessage(me, message.SenderID, message.Content, message.CreatedAt)
	}

	conn, err := c.Join(ctx, conversationID)
	if err != nil {
		return exitRuntime, err
	}
	log.Info("Connected, type a message and press Enter (Ctrl+C to quit)", "conversation_id", conversationID)

	// 5. Receive and send until either side stops
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gCtx.Done()
		return conn.Close()
	})
	g.Go(func() error {
		for {
			evt, err := conn.Receive()
			if err != nil {
				if gCtx.Err() != nil {
					return nil
				}
				return fmt.Errorf("connection lost: %w", err)
			}
			printMessage(me, evt.SenderID, evt.Content, evt.CreatedAt)
		}
	})
	// Not joined: a Scan on stdin cannot be interrupted.
	go func() {
		lines := bufio.NewScanner(os.Stdin)
		for lines.Scan() {
			if err := conn.Send(lines.Text()); err != nil {
				log.Warn("Message not sent", "error", err)
				break
			}
		}
		stop()
	}()

	if err := g.Wait(); err != nil {
		return exitRuntime, err
	}
	log.Info("Stopping client...")
	return exitOK, nil
}

func printMessage(me, sender domain.UserID, content string, at time.Time) {
	who := color.Cyan.Sprint("friend")
	if sender == me {
		who = color.Green.Sprint("me")
	}
	fmt.Printf("[%s] %s: %s\n", at.Local().Format(time.TimeOnly), who, content)
}
