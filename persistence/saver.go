package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/stagecraft/scenecore/logging"
)

// Default quiet periods before a scheduled write runs.
const (
	DefaultModelSaveDelay   = 200 * time.Millisecond
	DefaultTextBoxSaveDelay = 500 * time.Millisecond
	// writeTimeout bounds writes fired by timers, which have no caller context.
	writeTimeout = 10 * time.Second
)

// WriteFunc performs one persistence write.
type WriteFunc func(ctx context.Context) error

type pendingWrite struct {
	timer *clock.Timer
	write WriteFunc
}

// Saver coalesces writes per key on a trailing edge: scheduling a key again before its delay elapses
// replaces the pending write and restarts the delay. Errors are logged, never returned to the scheduler.
type Saver struct {
	mu       sync.Mutex
	clock    clock.Clock
	logger   logging.Logger
	pending  map[string]*pendingWrite
	inFlight sync.WaitGroup
	closed   bool
}

// NewSaver returns a saver timing delays with clk.
func NewSaver(clk clock.Clock, logger logging.Logger) *Saver {
	if clk == nil {
		clk = clock.New()
	}
	return &Saver{clock: clk, logger: logger, pending: map[string]*pendingWrite{}}
}

// Schedule arranges for write to run once key has been quiet for delay. After Close, writes run immediately.
func (s *Saver) Schedule(key string, delay time.Duration, write WriteFunc) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.run(context.Background(), key, write)
		return
	}
	if prev, ok := s.pending[key]; ok {
		prev.timer.Stop()
	}
	entry := &pendingWrite{write: write}
	entry.timer = s.clock.AfterFunc(delay, func() { s.fire(key, entry) })
	s.pending[key] = entry
	s.mu.Unlock()
}

// Cancel drops the pending write for key, if any.
func (s *Saver) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.pending[key]; ok {
		prev.timer.Stop()
		delete(s.pending, key)
	}
}

func (s *Saver) fire(key string, entry *pendingWrite) {
	s.mu.Lock()
	if s.pending[key] != entry {
		// superseded or flushed
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.inFlight.Add(1)
	s.mu.Unlock()
	defer s.inFlight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	s.run(ctx, key, entry.write)
}

func (s *Saver) run(ctx context.Context, key string, write WriteFunc) {
	if err := write(ctx); err != nil {
		s.logger.Errorw("failed to persist", "key", key, "error", err)
	}
}

// Pending returns the number of writes waiting for their delay.
func (s *Saver) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush runs every pending write now and waits for writes already running.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = map[string]*pendingWrite{}
	s.mu.Unlock()

	var err error
	for key, entry := range pending {
		entry.timer.Stop()
		if writeErr := entry.write(ctx); writeErr != nil {
			s.logger.Errorw("failed to persist on flush", "key", key, "error", writeErr)
			err = multierr.Combine(err, writeErr)
		}
	}
	s.inFlight.Wait()
	return err
}

// Close flushes pending writes. Writes scheduled afterwards run synchronously.
func (s *Saver) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Flush(ctx)
}
