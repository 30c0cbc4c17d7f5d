// Package ordercontext holds the per-session [order.Context] and the pure
// transition that applies one processed command to it.
//
// Stages never mutate a shared context: they read a snapshot with
// [Store.Get], derive a new value with [Advance], and write it back whole
// with [Store.Put].
package ordercontext

import (
	"sync"
	"time"

	"github.com/MrWong99/barkeep/internal/order"
)

// DefaultExpiry is the inactivity window after which a context resets.
const DefaultExpiry = 5 * time.Minute

// Option configures a [Store].
type Option func(*Store)

// WithExpiry sets the inactivity window. Non-positive values are ignored.
func WithExpiry(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is one session's context cell. It is safe for concurrent use.
type Store struct {
	expiry time.Duration
	now    func() time.Time

	mu  sync.Mutex
	cur order.Context
}

// New returns a store holding a fresh context.
func New(opts ...Option) *Store {
	s := &Store{expiry: DefaultExpiry, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.cur = order.NewContext(s.now())
	return s
}

// Get returns a snapshot of the context. A context older than the expiry
// window is reset to defaults first.
func (s *Store) Get() order.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.cur.Timestamp) > s.expiry {
		s.cur = order.NewContext(now)
	}
	return s.cur.Clone()
}

// Put replaces the stored context with c.
func (s *Store) Put(c order.Context) {
	s.mu.Lock()
	s.cur = c.Clone()
	s.mu.Unlock()
}

// Reset discards the context.
func (s *Store) Reset() {
	s.mu.Lock()
	s.cur = order.NewContext(s.now())
	s.mu.Unlock()
}

// Expiry returns the configured inactivity window.
func (s *Store) Expiry() time.Duration { return s.expiry }
