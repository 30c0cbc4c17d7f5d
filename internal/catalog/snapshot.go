package catalog

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Snapshot keeps an in-memory copy of a [Store] and refreshes it on an
// interval. Readers never block on the store; a failed refresh keeps the
// previous copy.
type Snapshot struct {
	store    Store
	interval time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	drinks  []Drink
	updated time.Time
	lastErr error
}

// SnapshotOption configures a [Snapshot].
type SnapshotOption func(*Snapshot)

// WithRefreshInterval sets the polling interval (default 30s).
func WithRefreshInterval(d time.Duration) SnapshotOption {
	return func(s *Snapshot) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSnapshotClock overrides time.Now.
func WithSnapshotClock(now func() time.Time) SnapshotOption {
	return func(s *Snapshot) { s.now = now }
}

// NewSnapshot returns an empty snapshot of store. Call [Snapshot.Refresh]
// before serving traffic.
func NewSnapshot(store Store, opts ...SnapshotOption) *Snapshot {
	s := &Snapshot{store: store, interval: 30 * time.Second, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Refresh reloads the copy from the store.
func (s *Snapshot) Refresh(ctx context.Context) error {
	drinks, err := s.store.List(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		return err
	}
	s.drinks, s.updated, s.lastErr = drinks, s.now(), nil
	return nil
}

// Run refreshes on the configured interval until ctx is done.
func (s *Snapshot) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("catalog: refresh failed, keeping previous menu", "err", err)
			}
		}
	}
}

// Drinks returns a copy of the current menu.
func (s *Snapshot) Drinks() []Drink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.drinks)
}

// Updated returns the time of the last successful refresh.
func (s *Snapshot) Updated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

// Ready reports nil once a refresh has succeeded, otherwise the last error.
// It backs the readiness probe.
func (s *Snapshot) Ready(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.updated.IsZero() {
		if s.lastErr != nil {
			return s.lastErr
		}
		return errNotLoaded
	}
	return nil
}
