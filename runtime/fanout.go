package runtime

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"sync"
)

const DefaultFanoutBufferSize = 256

// FanoutChannel broadcasts events of one conversation to every live subscriber.
//
// Each subscriber owns a bounded queue. Publishing never waits for a subscriber:
// when a queue is full its oldest event is discarded and counted on that
// subscription. Events are appended to every queue under one lock, so all
// subscribers observe the same publish order.
type FanoutChannel struct {
	id       domain.ConversationID
	capacity int

	mu          sync.Mutex
	subscribers map[*Subscription]struct{}
}

func NewFanoutChannel(id domain.ConversationID, capacity int) *FanoutChannel {
	if capacity <= 0 {
		capacity = DefaultFanoutBufferSize
	}
	return &FanoutChannel{
		id:          id,
		capacity:    capacity,
		subscribers: make(map[*Subscription]struct{}),
	}
}

func (c *FanoutChannel) ID() domain.ConversationID { return c.id }

// Subscribe registers a new consumer. Only events published afterwards are delivered.
func (c *FanoutChannel) Subscribe() *Subscription {
	s := &Subscription{
		channel: c,
		buf:     make([]domain.OutgoingEvent, c.capacity),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	c.mu.Lock()
	c.subscribers[s] = struct{}{}
	c.mu.Unlock()
	return s
}

// Publish hands the event to every current subscriber and returns how many there were.
// With no subscriber it does nothing.
func (c *FanoutChannel) Publish(evt domain.OutgoingEvent) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for s := range c.subscribers {
		s.push(evt)
	}
	return len(c.subscribers)
}

func (c *FanoutChannel) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers)
}

func (c *FanoutChannel) remove(s *Subscription) {
	c.mu.Lock()
	delete(c.subscribers, s)
	c.mu.Unlock()
}

// Subscription is one consumer's view of a FanoutChannel.
// Next is meant to be called from a single goroutine.
type Subscription struct {
	channel *FanoutChannel

	mu      sync.Mutex
	buf     []domain.OutgoingEvent
	head    int
	size    int
	dropped uint64
	closed  bool

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// push appends to the ring buffer, overwriting the oldest event when full.
func (s *Subscription) push(evt domain.OutgoingEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	capacity := len(s.buf)
	if s.size == capacity {
		s.buf[s.head] = evt
		s.head = (s.head + 1) % capacity
		s.dropped++
	} else {
		s.buf[(s.head+s.size)%capacity] = evt
		s.size++
	}
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available, ctx is done or the subscription is closed.
func (s *Subscription) Next(ctx context.Context) (domain.OutgoingEvent, error) {
	for {
		s.mu.Lock()
		if s.size > 0 {
			evt := s.buf[s.head]
			s.buf[s.head] = domain.OutgoingEvent{}
			s.head = (s.head + 1) % len(s.buf)
			s.size--
			s.mu.Unlock()
			return evt, nil
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return domain.OutgoingEvent{}, errors.ErrSubscriptionDone
		}

		select {
		case <-s.notify:
		case <-s.done:
		case <-ctx.Done():
			return domain.OutgoingEvent{}, ctx.Err()
		}
	}
}

// Dropped is the number of events discarded because this subscriber fell behind.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Pending is the number of buffered events not yet consumed.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Close detaches the subscription from its channel. Buffered events are discarded.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.channel.remove(s)
		s.mu.Lock()
		s.closed = true
		s.size = 0
		s.mu.Unlock()
		close(s.done)
	})
}
