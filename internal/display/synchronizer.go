package display

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"boxshop-api/internal/messaging"
)

// PointerStore persists the display pointer.
type PointerStore interface {
	GetMeta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
}

// ContentFunc renders the current content at refresh time.
type ContentFunc func(ctx context.Context) (string, error)

// State is the display pointer state.
type State int

const (
	StateNoPointer State = iota
	StatePointerValid
	StatePointerStale
)

func (s State) String() string {
	switch s {
	case StateNoPointer:
		return "no_pointer"
	case StatePointerValid:
		return "pointer_valid"
	case StatePointerStale:
		return "pointer_stale"
	}
	return "unknown"
}

// Config holds synchronizer settings.
type Config struct {
	// Timeout bounds one refresh, including every external call it makes.
	Timeout time.Duration

	// PointerKey is the meta key holding the live message identifier.
	PointerKey string
}

// Synchronizer keeps exactly one live stock message in a channel.
type Synchronizer struct {
	channel  messaging.Channel
	pointers PointerStore
	content  ContentFunc
	timeout  time.Duration
	key      string

	refreshMu sync.Mutex // one refresh in flight per message slot
	cached    string     // last pointer written; survives a failed pointer save

	mu      sync.Mutex
	running bool
	pending bool
	wg      sync.WaitGroup
}

// NewSynchronizer creates a synchronizer for one channel.
func NewSynchronizer(channel messaging.Channel, pointers PointerStore, content ContentFunc, cfg Config) *Synchronizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Synchronizer{
		channel:  channel,
		pointers: pointers,
		content:  content,
		timeout:  cfg.Timeout,
		key:      cfg.PointerKey,
	}
}

// Refresh makes the live message show content: create it if there is no
// pointer, edit it in place otherwise, and recreate it only when the edit
// confirms the message is gone. Other failures are returned untouched and
// never spawn a second message.
func (s *Synchronizer) Refresh(ctx context.Context, content string) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	id, durable, err := s.loadPointer(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSync, err)
	}

	state := StatePointerValid
	if id == "" {
		state = StateNoPointer
	}

	for {
		switch state {
		case StateNoPointer, StatePointerStale:
			newID, err := s.channel.Create(ctx, content)
			if err != nil {
				return fmt.Errorf("%w: create in state %s: %v", ErrSync, state, err)
			}
			s.cached = newID
			if err := s.pointers.SetMeta(ctx, s.key, newID); err != nil {
				return fmt.Errorf("%w: store pointer %s: %v", ErrSync, newID, err)
			}
			if state == StatePointerStale {
				log.Printf("[DisplaySync] Stock message %s was removed, replaced with %s", id, newID)
			}
			return nil

		case StatePointerValid:
			err := s.channel.Edit(ctx, id, content)
			if errors.Is(err, messaging.ErrNotFound) {
				state = StatePointerStale
				continue
			}
			if err != nil {
				return fmt.Errorf("%w: edit %s: %v", ErrSync, id, err)
			}
			if id != durable {
				s.repairPointer(ctx, id)
			}
			return nil
		}
	}
}

// loadPointer returns the message to edit and the durably stored pointer.
// The last id this process wrote wins over the durable one: they differ only
// when a pointer save failed after a create.
func (s *Synchronizer) loadPointer(ctx context.Context) (id, durable string, err error) {
	if s.key == "" {
		return "", "", errors.New("pointer key is not configured")
	}
	v, ok, err := s.pointers.GetMeta(ctx, s.key)
	if err != nil {
		if s.cached != "" {
			return s.cached, "", nil
		}
		return "", "", err
	}
	if ok {
		durable = v
	}
	if s.cached != "" {
		return s.cached, durable, nil
	}
	return durable, durable, nil
}

// repairPointer writes back a live id whose earlier save failed, so a
// restarted process edits it instead of creating a second message.
func (s *Synchronizer) repairPointer(ctx context.Context, id string) {
	if err := s.pointers.SetMeta(ctx, s.key, id); err != nil {
		log.Printf("[DisplaySync] Failed to restore stock message pointer %s: %v", id, err)
		return
	}
	log.Printf("[DisplaySync] Restored stock message pointer %s", id)
}

// Trigger schedules a best-effort asynchronous refresh. While one is running,
// further triggers collapse into a single follow-up run that renders the
// latest content.
func (s *Synchronizer) Trigger() {
	s.mu.Lock()
	if s.running {
		s.pending = true
		s.mu.Unlock()
		return
	}
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run()
}

func (s *Synchronizer) run() {
	defer s.wg.Done()
	for {
		if err := s.refreshOnce(); err != nil {
			log.Printf("[DisplaySync] Refresh failed: %v", err)
		}

		s.mu.Lock()
		if !s.pending {
			s.running = false
			s.mu.Unlock()
			return
		}
		s.pending = false
		s.mu.Unlock()
	}
}

// RefreshNow renders and refreshes synchronously under the configured timeout.
func (s *Synchronizer) RefreshNow() error {
	return s.refreshOnce()
}

func (s *Synchronizer) refreshOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	content, err := s.content(ctx)
	if err != nil {
		return fmt.Errorf("%w: render: %v", ErrSync, err)
	}
	return s.Refresh(ctx, content)
}

// Wait blocks until in-flight refreshes finish.
func (s *Synchronizer) Wait() {
	s.wg.Wait()
}
