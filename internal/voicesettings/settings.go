// Package voicesettings keeps the voice output preferences the ordering UI
// reads and writes through /api/settings/voice.
package voicesettings

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/barkeep/internal/config"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("voicesettings: invalid settings")

// Voice engines.
const (
	ProviderElevenLabs = "elevenlabs"
	ProviderWebSpeech  = "webspeech"
)

// Settings is the wire form of the voice preferences.
type Settings struct {
	Provider      string  `json:"provider"`
	VoiceEnabled  bool    `json:"voiceEnabled"`
	Pitch         float64 `json:"pitch"`
	Rate          float64 `json:"rate"`
	Volume        float64 `json:"volume"`
	HasElevenLabs bool    `json:"hasElevenLabs"`
}

// Update is a partial change. Nil fields keep their value.
type Update struct {
	Provider     *string  `json:"provider"`
	VoiceEnabled *bool    `json:"voiceEnabled"`
	Pitch        *float64 `json:"pitch"`
	Rate         *float64 `json:"rate"`
	Volume       *float64 `json:"volume"`
	APIKey       *string  `json:"apiKey"`
}

// Validate reports every out-of-range field.
func (s Settings) Validate() error {
	var errs []error
	if !slices.Contains(config.ValidVoiceProviders, s.Provider) {
		errs = append(errs, fmt.Errorf("provider %q must be one of %s", s.Provider, strings.Join(config.ValidVoiceProviders, ", ")))
	}
	if s.Pitch < 0.5 || s.Pitch > 2.0 {
		errs = append(errs, fmt.Errorf("pitch %.2f is out of range [0.5, 2.0]", s.Pitch))
	}
	if s.Rate < 0.5 || s.Rate > 2.0 {
		errs = append(errs, fmt.Errorf("rate %.2f is out of range [0.5, 2.0]", s.Rate))
	}
	if s.Volume < 0 || s.Volume > 1 {
		errs = append(errs, fmt.Errorf("volume %.2f is out of range [0, 1]", s.Volume))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// FromConfig converts the config defaults. hasElevenLabs reports whether an
// ElevenLabs key is configured.
func FromConfig(v config.VoiceConfig, hasElevenLabs bool) Settings {
	return Settings{
		Provider:      v.Provider,
		VoiceEnabled:  v.Enabled == nil || *v.Enabled,
		Pitch:         v.Pitch,
		Rate:          v.Rate,
		Volume:        v.Volume,
		HasElevenLabs: hasElevenLabs,
	}
}

// Option configures a [Store].
type Option func(*Store)

// OnAPIKey registers fn to run when an update carries a new ElevenLabs key.
// It runs after the store is unlocked.
func OnAPIKey(fn func(key string)) Option {
	return func(s *Store) { s.onKey = fn }
}

// Store holds the current settings. It is safe for concurrent use.
type Store struct {
	onKey func(string)

	mu  sync.RWMutex
	cur Settings
}

// NewStore returns a store starting at initial.
func NewStore(initial Settings, opts ...Option) *Store {
	s := &Store{cur: initial}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Reset replaces the settings, keeping HasElevenLabs. Used when the config
// file changes.
func (s *Store) Reset(next Settings) {
	s.mu.Lock()
	next.HasElevenLabs = s.cur.HasElevenLabs
	s.cur = next
	s.mu.Unlock()
}

// Apply merges u into the current settings. Nothing changes when the result
// is invalid.
func (s *Store) Apply(u Update) (Settings, error) {
	s.mu.Lock()
	next := s.cur
	if u.Provider != nil {
		next.Provider = *u.Provider
	}
	if u.VoiceEnabled != nil {
		next.VoiceEnabled = *u.VoiceEnabled
	}
	if u.Pitch != nil {
		next.Pitch = *u.Pitch
	}
	if u.Rate != nil {
		next.Rate = *u.Rate
	}
	if u.Volume != nil {
		next.Volume = *u.Volume
	}
	err := next.Validate()
	var key string
	if err == nil && u.APIKey != nil && next.Provider == ProviderElevenLabs {
		key = strings.TrimSpace(*u.APIKey)
		if key == "" {
			err = fmt.Errorf("%w: empty ElevenLabs API key", ErrInvalid)
		}
	}
	if err != nil {
		cur := s.cur
		s.mu.Unlock()
		return cur, err
	}
	if key != "" {
		next.HasElevenLabs = true
	}
	s.cur = next
	hook := s.onKey
	s.mu.Unlock()

	slog.Info("voicesettings: updated", "provider", next.Provider, "enabled", next.VoiceEnabled)
	if key != "" && hook != nil {
		hook(key)
	}
	return next, nil
}
