package messaging

import (
	"context"
	"strconv"
	"sync"
)

// MemoryChannel is an in-memory implementation of Channel.
// Use this for development/testing when no Discord bot is configured.
type MemoryChannel struct {
	mu       sync.RWMutex
	nextID   int64
	order    []string
	messages map[string]string
}

// NewMemoryChannel creates an empty in-memory channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{messages: make(map[string]string)}
}

// Create posts a new message.
func (c *MemoryChannel) Create(_ context.Context, content string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := strconv.FormatInt(c.nextID, 10)
	c.messages[id] = content
	c.order = append(c.order, id)
	return id, nil
}

// Edit replaces the content of an existing message.
func (c *MemoryChannel) Edit(_ context.Context, id, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.messages[id]; !ok {
		return ErrNotFound
	}
	c.messages[id] = content
	return nil
}

// Delete removes a message.
func (c *MemoryChannel) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.messages[id]; !ok {
		return nil
	}
	delete(c.messages, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListRecent returns up to limit message identifiers, newest first.
func (c *MemoryChannel) ListRecent(_ context.Context, limit int) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, limit)
	for i := len(c.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, c.order[i])
	}
	return out, nil
}

// Content returns a message's content and whether it exists.
func (c *MemoryChannel) Content(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	content, ok := c.messages[id]
	return content, ok
}

// Len returns the number of live messages.
func (c *MemoryChannel) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}
