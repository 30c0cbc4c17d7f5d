// Package session owns ordering sessions. Every session gets its own
// classifier, variation cache, context store and command gate; only the
// catalog menu is shared.
//
// All exported methods of [Manager] are safe for concurrent use.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/barkeep/internal/drinkmatch"
	"github.com/MrWong99/barkeep/internal/gate"
	"github.com/MrWong99/barkeep/internal/intent"
	"github.com/MrWong99/barkeep/internal/observe"
	"github.com/MrWong99/barkeep/internal/ordercontext"
	"github.com/MrWong99/barkeep/internal/voiceorder"
)

// Defaults applied by [NewManager] to zero [Config] fields.
const (
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Config holds what every new session is built from.
type Config struct {
	// Menu is the shared catalog view.
	Menu drinkmatch.Menu

	// IdleTimeout ends sessions without activity. Defaults to 30 minutes.
	IdleTimeout time.Duration

	ContextExpiry   time.Duration
	ReferenceWindow time.Duration
	FuzzyThreshold  float64

	Debounce  time.Duration
	Cooldowns map[string]time.Duration

	Metrics *observe.Metrics
}

// Info describes a session.
type Info struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

type entry struct {
	sess *voiceorder.Session
	info Info
}

// Option configures a [Manager].
type Option func(*Manager)

// WithClock overrides time.Now for activity tracking and every component of
// new sessions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager creates, looks up and expires sessions. It implements
// [voiceorder.Sessions].
type Manager struct {
	cfg     Config
	now     func() time.Time
	metrics *observe.Metrics

	mu        sync.RWMutex
	sessions  map[string]*entry
	cooldowns map[string]time.Duration
	onExpire  func(Info)
}

var _ voiceorder.Sessions = (*Manager)(nil)

// NewManager returns a manager with no sessions.
func NewManager(cfg Config, opts ...Option) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	m := &Manager{
		cfg:       cfg,
		now:       time.Now,
		metrics:   cfg.Metrics,
		sessions:  make(map[string]*entry),
		cooldowns: maps.Clone(cfg.Cooldowns),
	}
	if m.cooldowns == nil {
		m.cooldowns = make(map[string]time.Duration)
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// SetExpireHook registers fn to run for every session ended by the idle
// sweep. It runs outside the manager lock.
func (m *Manager) SetExpireHook(fn func(Info)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = fn
}

// Create starts a session.
func (m *Manager) Create(ctx context.Context) Info {
	now := m.now()
	id := uuid.NewString()

	m.mu.Lock()
	sess := m.build(id)
	e := &entry{sess: sess, info: Info{ID: id, CreatedAt: now, LastActivity: now}}
	m.sessions[id] = e
	m.mu.Unlock()

	m.metrics.ActiveSessions.Add(ctx, 1)
	slog.Info("session: created", "session_id", id)
	return e.info
}

// build assembles the per-session state. m.mu must be held.
func (m *Manager) build(id string) *voiceorder.Session {
	var ctxOpts []ordercontext.Option
	if m.cfg.ContextExpiry > 0 {
		ctxOpts = append(ctxOpts, ordercontext.WithExpiry(m.cfg.ContextExpiry))
	}
	ctxOpts = append(ctxOpts, ordercontext.WithClock(m.now))

	matchOpts := []drinkmatch.Option{drinkmatch.WithClock(m.now)}
	if m.cfg.ReferenceWindow > 0 {
		matchOpts = append(matchOpts, drinkmatch.WithReferenceWindow(m.cfg.ReferenceWindow))
	}
	if m.cfg.FuzzyThreshold > 0 {
		matchOpts = append(matchOpts, drinkmatch.WithThreshold(m.cfg.FuzzyThreshold))
	}

	gateOpts := []gate.Option{gate.WithClock(m.now), gate.WithCooldowns(m.cooldowns)}
	if m.cfg.Debounce > 0 {
		gateOpts = append(gateOpts, gate.WithDebounce(m.cfg.Debounce))
	}

	matcher := drinkmatch.New(m.cfg.Menu, nil, matchOpts...)
	return &voiceorder.Session{
		ID:         id,
		Classifier: intent.New(intent.WithMenuCheck(matcher.Recognizes)),
		Matcher:    matcher,
		Contexts:   ordercontext.New(ctxOpts...),
		Gate:       gate.New(gateOpts...),
	}
}

// Lookup returns the session with id and marks it active.
func (m *Manager) Lookup(id string) (*voiceorder.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session: %w: %q", voiceorder.ErrUnknownSession, id)
	}
	e.info.LastActivity = m.now()
	return e.sess, nil
}

// Info returns the metadata of session id without touching it.
func (m *Manager) Info(id string) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return Info{}, fmt.Errorf("session: %w: %q", voiceorder.ErrUnknownSession, id)
	}
	return e.info, nil
}

// End removes session id.
func (m *Manager) End(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: %w: %q", voiceorder.ErrUnknownSession, id)
	}
	m.metrics.ActiveSessions.Add(ctx, -1)
	slog.Info("session: ended", "session_id", id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SetCooldowns changes gate cooldowns for live and future sessions.
func (m *Manager) SetCooldowns(cooldowns map[string]time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.Copy(m.cooldowns, cooldowns)
	for _, e := range m.sessions {
		e.sess.Gate.SetCooldowns(cooldowns)
	}
}

// Sweep ends every session idle for longer than the idle timeout and
// returns them.
func (m *Manager) Sweep(ctx context.Context) []Info {
	now := m.now()
	var expired []Info

	m.mu.Lock()
	for id, e := range m.sessions {
		if now.Sub(e.info.LastActivity) < m.cfg.IdleTimeout {
			continue
		}
		delete(m.sessions, id)
		expired = append(expired, e.info)
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, info := range expired {
		m.metrics.ActiveSessions.Add(ctx, -1)
		slog.Info("session: expired", "session_id", info.ID, "idle", now.Sub(info.LastActivity))
		if hook != nil {
			hook(info)
		}
	}
	return expired
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}
