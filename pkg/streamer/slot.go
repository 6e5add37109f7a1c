package streamer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by Take once a closed slot has been drained.
var ErrClosed = errors.New("slot closed")

// pollInterval bounds how long a waiting consumer goes without rechecking
// the slot, even if a wake-up is lost.
const pollInterval = 100 * time.Millisecond

// Slot is a single-item mailbox between two pipeline stages. The producer
// never waits: a Put while the previous item is still unread replaces it.
// Items are exchanged rather than copied, so a producer, a consumer and the
// slot each own exactly one buffer at any time.
type Slot[T any] struct {
	mu     sync.Mutex
	item   T
	ready  bool
	closed bool

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	overwrites atomic.Uint64
}

// NewSlot creates an empty slot that holds initial as its spare buffer.
func NewSlot[T any](initial T) *Slot[T] {
	return &Slot[T]{
		item:   initial,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Put publishes item and returns the buffer it displaced, which the producer
// owns from then on. overwrote reports that the displaced buffer had not been
// taken. After Close, Put hands item straight back.
func (s *Slot[T]) Put(item T) (spare T, overwrote bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return item, false
	}
	spare = s.item
	overwrote = s.ready
	s.item = item
	s.ready = true
	s.mu.Unlock()

	if overwrote {
		s.overwrites.Add(1)
	}
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return spare, overwrote
}

// Take waits for an item, leaving spare in its place. A closed slot still
// delivers its last unread item; after that Take returns ErrClosed. On any
// error the caller keeps spare.
func (s *Slot[T]) Take(ctx context.Context, spare T) (T, error) {
	var ticker *time.Ticker
	for {
		s.mu.Lock()
		if s.ready {
			item := s.item
			s.item = spare
			s.ready = false
			s.mu.Unlock()
			return item, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return spare, ErrClosed
		}

		if ticker == nil {
			ticker = time.NewTicker(pollInterval)
			defer ticker.Stop()
		}
		select {
		case <-ctx.Done():
			return spare, ctx.Err()
		case <-s.notify:
		case <-s.done:
		case <-ticker.C:
		}
	}
}

// Close wakes every waiter. It is safe to call more than once.
func (s *Slot[T]) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}

// Closed reports whether Close has been called.
func (s *Slot[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Overwrites counts items replaced before they were taken.
func (s *Slot[T]) Overwrites() uint64 {
	return s.overwrites.Load()
}
