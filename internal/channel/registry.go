package channel

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Registry tracks connected channels. It keeps no history: a reconnecting
// client gets a fresh channel with no knowledge of earlier operations.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
	closed   bool
	seq      atomic.Uint64
}

// ErrRegistryClosed is returned by Register once CloseAll has run.
var ErrRegistryClosed = errors.New("registry closed")

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]*Channel),
	}
}

// NextID returns a fresh channel identifier.
func (r *Registry) NextID() string {
	return fmt.Sprintf("client-%d", r.seq.Add(1))
}

// Register adds a connected channel. After CloseAll it refuses, and the
// caller must close the channel itself.
func (r *Registry) Register(c *Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}
	r.channels[c.ID()] = c
	return nil
}

// Unregister removes a channel after its client disconnects.
func (r *Registry) Unregister(c *Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, c.ID())
}

// Count returns the number of connected channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// CloseAll disconnects every client and stops accepting new ones, used on
// shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	r.closed = true
	channels := make([]*Channel, 0, len(r.channels))
	for _, c := range r.channels {
		channels = append(channels, c)
	}
	r.channels = make(map[string]*Channel)
	r.mu.Unlock()

	for _, c := range channels {
		c.Close()
	}
}
