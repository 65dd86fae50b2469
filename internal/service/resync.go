package service

import (
	"log"
	"sync"
	"time"
)

// ResyncConfig holds configuration for the display resync scheduler.
type ResyncConfig struct {
	// Interval is how often the stock message is re-rendered even when
	// nothing changed, so an out-of-band deletion is healed without waiting
	// for the next purchase.
	// Default: 10 minutes
	Interval time.Duration
}

// ResyncScheduler periodically refreshes the stock display.
type ResyncScheduler struct {
	display   DisplayRefresher
	config    ResyncConfig
	ticker    *time.Ticker
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewResyncScheduler creates a new resync scheduler.
func NewResyncScheduler(display DisplayRefresher, config ResyncConfig) *ResyncScheduler {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Minute
	}

	return &ResyncScheduler{
		display: display,
		config:  config,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start syncs once immediately and then on every tick.
func (s *ResyncScheduler) Start() {
	s.mu.Lock()
	if s.isRunning || s.stopped() {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	log.Printf("[ResyncScheduler] Started - Interval: %v", s.config.Interval)

	s.display.Trigger()
	go s.run()
}

func (s *ResyncScheduler) stopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// run is the main resync loop.
func (s *ResyncScheduler) run() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.ticker.C:
			s.display.Trigger()
		case <-s.stopCh:
			log.Printf("[ResyncScheduler] Stopped")
			return
		}
	}
}

// Stop stops the resync scheduler and waits for the loop to exit, so no
// refresh is triggered after it returns.
func (s *ResyncScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		started := s.ticker != nil
		if started {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
		s.mu.Unlock()

		if started {
			<-s.doneCh
		}
	})
}

// RunNow triggers an immediate synchronous refresh.
func (s *ResyncScheduler) RunNow() error {
	return s.display.RefreshNow()
}
