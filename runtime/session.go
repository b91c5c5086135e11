package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const DefaultPersistTimeout = 5 * time.Second

// maxPendingPersists caps the stores one session may have in flight. Reading
// the next frame waits once the cap is reached.
const maxPendingPersists = 16

type SessionState int32

const (
	Connecting SessionState = iota
	Authorized
	Active
	Closing
	Closed
)

func (s SessionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authorized:
		return "authorized"
	case Active:
		return "active"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Relay connects authorized client streams to conversation channels.
type Relay struct {
	log            *slog.Logger
	registry       *Registry
	authority      contract.IMembershipAuthority
	store          contract.IMessageStore
	stats          *observability.MonitoringManager
	persistTimeout time.Duration
	now            func() time.Time
}

func NewRelay(
	log *slog.Logger,
	registry *Registry,
	authority contract.IMembershipAuthority,
	store contract.IMessageStore,
	stats *observability.MonitoringManager,
	persistTimeout time.Duration,
) *Relay {
	if persistTimeout <= 0 {
		persistTimeout = DefaultPersistTimeout
	}
	return &Relay{
		log:            log,
		registry:       registry,
		authority:      authority,
		store:          store,
		stats:          stats,
		persistTimeout: persistTimeout,
		now:            time.Now,
	}
}

func (r *Relay) Registry() *Registry { return r.registry }

// Authorize checks membership before any upgrade. On failure no session exists
// and nothing is subscribed.
func (r *Relay) Authorize(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID) (*Session, error) {
	if err := r.authority.Verify(ctx, conversationID, userID); err != nil {
		r.stats.SessionRejected()
		r.log.Info("Session rejected", "conversation_id", conversationID, "user_id", userID)
		return nil, err
	}
	s := &Session{
		relay:          r,
		conversationID: conversationID,
		userID:         userID,
		log:            r.log.With("conversation_id", conversationID, "user_id", userID),
	}
	s.persists.SetLimit(maxPendingPersists)
	s.state.Store(int32(Authorized))
	return s, nil
}

// Session is one connected client inside one conversation.
type Session struct {
	relay          *Relay
	conversationID domain.ConversationID
	userID         domain.UserID
	log            *slog.Logger
	state          atomic.Int32
	persists       errgroup.Group
}

func (s *Session) ConversationID() domain.ConversationID { return s.conversationID }

func (s *Session) UserID() domain.UserID { return s.userID }

func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// Run subscribes to the conversation and serves the stream until either side stops.
// The reader and the writer share one context: whichever returns first cancels
// it, and the stream is closed so a pending read returns. A normal disconnect
// returns nil.
func (s *Session) Run(ctx context.Context, stream contract.Stream) error {
	if !s.state.CompareAndSwap(int32(Authorized), int32(Active)) {
		return fmt.Errorf("%w: run from %s", errors.ErrSessionState, s.State())
	}
	channel := s.relay.registry.GetOrCreate(s.conversationID)
	sub := channel.Subscribe()
	s.relay.stats.SessionOpened()
	s.log.Info("Session active", "subscribers", channel.Subscribers())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(runCtx, func() {
		s.state.CompareAndSwap(int32(Active), int32(Closing))
		sub.Close()
		_ = stream.Close()
	})
	defer stop()

	g, gCtx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		return s.outbound(gCtx, sub, stream)
	})
	g.Go(func() error {
		defer cancel()
		return s.inbound(gCtx, channel, stream)
	})
	err := g.Wait()

	s.state.CompareAndSwap(int32(Active), int32(Closing))
	sub.Close()
	_ = stream.Close()
	// Pending stores are bounded by the persist timeout.
	_ = s.persists.Wait()
	s.state.Store(int32(Closed))
	s.relay.stats.SessionClosed()

	if err == nil || stderrors.Is(err, errors.ErrPeerDisconnected) {
		s.log.Info("Session closed", "dropped", sub.Dropped())
		return nil
	}
	s.log.Warn("Session ended with error", "error", err)
	return err
}

// outbound writes channel events to the stream in publish order.
func (s *Session) outbound(ctx context.Context, sub *Subscription, stream contract.Stream) error {
	var reported uint64
	report := func() {
		if dropped := sub.Dropped(); dropped > reported {
			missed := dropped - reported
			reported = dropped
			s.relay.stats.EventsDropped(missed)
			s.log.Warn("Subscriber lagging, oldest events dropped", "missed", missed)
		}
	}
	// Drops that happened after the last delivered event still count.
	defer report()

	for {
		evt, err := sub.Next(ctx)
		if err != nil {
			return nil
		}
		report()
		payload, err := json.Marshal(evt)
		if err != nil {
			s.log.Warn("Outgoing event not encodable", "error", err)
			continue
		}
		if err := stream.Write(ctx, payload); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: write: %w", errors.ErrPeerDisconnected, err)
		}
	}
}

// inbound reads client frames and posts their content to the channel.
func (s *Session) inbound(ctx context.Context, channel *FanoutChannel, stream contract.Stream) error {
	for {
		frame, err := stream.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Debug("Read ended", "error", err)
			return fmt.Errorf("%w: read: %w", errors.ErrPeerDisconnected, err)
		}
		switch frame.Kind {
		case contract.FrameClose:
			s.log.Debug("Peer closed the stream")
			return errors.ErrPeerDisconnected
		case contract.FrameText:
			s.post(ctx, channel, frame.Data)
		default:
			// binary frames carry nothing the relay understands
		}
	}
}

func (s *Session) post(ctx context.Context, channel *FanoutChannel, data []byte) {
	in := domain.ParseInbound(data)
	if in.Kind == domain.Raw {
		s.log.Debug("Frame is not JSON, using raw text", "error", errors.ErrMalformedInput)
	}
	if !in.Postable() {
		return
	}
	evt := domain.NewOutgoingEvent(s.userID, in.Content, s.relay.now())
	s.relay.stats.EventPublished(channel.Publish(evt))

	storeCtx := context.WithoutCancel(ctx)
	s.persists.Go(func() error {
		s.persist(storeCtx, evt)
		return nil
	})
}

// persist records a published event. It runs after the broadcast, and a
// failure is logged and never reaches the sender. The stored timestamp is the
// broadcast one so history keeps publish order.
func (s *Session) persist(ctx context.Context, evt domain.OutgoingEvent) {
	storeCtx, cancel := context.WithTimeout(ctx, s.relay.persistTimeout)
	defer cancel()
	err := s.relay.store.StoreMessage(storeCtx, domain.Message{
		ConversationID: s.conversationID,
		SenderID:       s.userID,
		Content:        evt.Content,
		MessageType:    domain.MessageTypeText,
		CreatedAt:      evt.CreatedAt,
	})
	if err != nil {
		s.relay.stats.PersistenceFailed()
		s.log.Warn("Message not persisted", "error", err)
	}
}
