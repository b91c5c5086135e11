package runtime

import (
	"chat-relay/domain"
	"sync"
)

// Registry maps each conversation to its fan-out channel.
// It is built once at startup and shared by every connection handler.
// Channels are never removed: a channel lives as long as the process,
// so a publish can never race with its disposal.
type Registry struct {
	mu         sync.RWMutex
	channels   map[domain.ConversationID]*FanoutChannel
	bufferSize int
}

func NewRegistry(bufferSize int) *Registry {
	return &Registry{
		channels:   make(map[domain.ConversationID]*FanoutChannel),
		bufferSize: bufferSize,
	}
}

// GetOrCreate returns the channel of the conversation, creating it on first use.
// The lookup is repeated under the write lock, so concurrent creators for one id
// all receive the same channel.
func (r *Registry) GetOrCreate(id domain.ConversationID) *FanoutChannel {
	r.mu.RLock()
	channel, ok := r.channels[id]
	r.mu.RUnlock()
	if ok {
		return channel
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if channel, ok = r.channels[id]; ok {
		return channel
	}
	channel = NewFanoutChannel(id, r.bufferSize)
	r.channels[id] = channel
	return channel
}

// Len is the number of conversations that ever had a session.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
