// Package gate rate-limits commands per logical channel.
//
// A channel admits one call at a time. A call is rejected with a
// [*CooldownError] while another call on the channel is running or until the
// channel's cooldown has elapsed since the last accepted call. Accepted
// calls wait a short debounce delay before running. Rejected calls are
// dropped, never queued.
package gate

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// ErrCooldown is the sentinel every [CooldownError] unwraps to.
var ErrCooldown = errors.New("gate: cooldown")

// CooldownError reports a rejected call.
type CooldownError struct {
	Channel string

	// RetryAfter is the time left until the channel accepts calls again. It
	// is zero when the rejection was caused by a call still in flight.
	RetryAfter time.Duration

	// InFlight is set when another call on the channel was running.
	InFlight bool
}

func (e *CooldownError) Error() string {
	if e.InFlight {
		return fmt.Sprintf("gate: channel %q busy", e.Channel)
	}
	return fmt.Sprintf("gate: channel %q cooling down, retry in %s", e.Channel, e.RetryAfter.Round(time.Millisecond))
}

func (e *CooldownError) Unwrap() error { return ErrCooldown }

// Channels used by barkeep.
const (
	ChannelVoiceCommand    = "voice_command"
	ChannelOrderProcessing = "order_processing"
	ChannelSpeechSynthesis = "speech_synthesis"
)

// DefaultDebounce is the delay between acceptance and execution.
const DefaultDebounce = 150 * time.Millisecond

// Option configures a [Gate].
type Option func(*Gate)

// WithDebounce sets the debounce delay. Zero disables it.
func WithDebounce(d time.Duration) Option {
	return func(g *Gate) { g.debounce = max(d, 0) }
}

// WithCooldown sets the cooldown of one channel.
func WithCooldown(channel string, d time.Duration) Option {
	return func(g *Gate) { g.cooldowns[channel] = d }
}

// WithCooldowns merges a channel to cooldown map.
func WithCooldowns(m map[string]time.Duration) Option {
	return func(g *Gate) { maps.Copy(g.cooldowns, m) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// OnReject registers a callback invoked for every rejection. It runs with
// the gate locked and must not call back into the gate.
func OnReject(fn func(channel string)) Option {
	return func(g *Gate) { g.onReject = fn }
}

type channelState struct {
	lastRun    time.Time
	processing bool
}

// Gate is safe for concurrent use. Channels without a configured cooldown
// only enforce the one-at-a-time rule.
type Gate struct {
	debounce  time.Duration
	cooldowns map[string]time.Duration
	now       func() time.Time
	onReject  func(string)

	mu       sync.Mutex
	channels map[string]*channelState
}

// New returns a gate.
func New(opts ...Option) *Gate {
	g := &Gate{
		debounce:  DefaultDebounce,
		cooldowns: make(map[string]time.Duration),
		now:       time.Now,
		channels:  make(map[string]*channelState),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Cooldown returns the configured cooldown of channel.
func (g *Gate) Cooldown(channel string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cooldowns[channel]
}

// SetCooldowns replaces the cooldowns of the listed channels. Calls already
// accepted are unaffected.
func (g *Gate) SetCooldowns(m map[string]time.Duration) {
	g.mu.Lock()
	maps.Copy(g.cooldowns, m)
	g.mu.Unlock()
}

// Acquire admits one call on channel. The returned release function must be
// called when the call finishes. Acquire does not debounce; see [Gate.Do].
func (g *Gate) Acquire(channel string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.channels[channel]
	if !ok {
		st = &channelState{}
		g.channels[channel] = st
	}
	now := g.now()
	if st.processing {
		g.reject(channel)
		return nil, &CooldownError{Channel: channel, InFlight: true}
	}
	if cd := g.cooldowns[channel]; !st.lastRun.IsZero() && now.Sub(st.lastRun) < cd {
		g.reject(channel)
		return nil, &CooldownError{Channel: channel, RetryAfter: cd - now.Sub(st.lastRun)}
	}
	st.lastRun = now
	st.processing = true

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			st.processing = false
			g.mu.Unlock()
		})
	}, nil
}

func (g *Gate) reject(channel string) {
	if g.onReject != nil {
		g.onReject(channel)
	}
}

// Do runs fn on channel after the debounce delay, or rejects it. fn is not
// run when ctx ends during the debounce wait.
func (g *Gate) Do(ctx context.Context, channel string, fn func(context.Context) error) error {
	release, err := g.Acquire(channel)
	if err != nil {
		return err
	}
	defer release()

	if g.debounce > 0 {
		t := time.NewTimer(g.debounce)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("gate: debounce %q: %w", channel, ctx.Err())
		case <-t.C:
		}
	}
	return fn(ctx)
}
