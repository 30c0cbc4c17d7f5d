// Package config provides the configuration schema, loader, provider
// registry and hot-reload watcher for the barkeep voice ordering service.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/barkeep/internal/gate"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to a [slog.Level]. Unknown levels map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Gate channel names. They key the cooldown map and label metrics.
const (
	ChannelVoiceCommand    = gate.ChannelVoiceCommand
	ChannelOrderProcessing = gate.ChannelOrderProcessing
	ChannelSpeechSynthesis = gate.ChannelSpeechSynthesis
)

// Config is the root configuration structure, loaded with [Load] or
// [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Engine    EngineConfig    `yaml:"engine"`
	Gate      GateConfig      `yaml:"gate"`
	Session   SessionConfig   `yaml:"session"`
	CartBus   CartBusConfig   `yaml:"cartbus"`
	MCP       MCPConfig       `yaml:"mcp"`
	Voice     VoiceConfig     `yaml:"voice"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the HTTP API (default ":8080").
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`

	// ShutdownTimeout bounds graceful shutdown (default 15s).
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ProvidersConfig selects the upstream services. Every entry is optional:
// without an LLM the engine runs local-only, without TTS the synthesis
// endpoint answers 503.
type ProvidersConfig struct {
	LLM          ProviderEntry   `yaml:"llm"`
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
	TTS          ProviderEntry   `yaml:"tts"`
	TTSFallbacks []ProviderEntry `yaml:"tts_fallbacks"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
// Name selects the factory in the [Registry].
type ProviderEntry struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// Options holds provider-specific values (e.g. "voice", "output_format").
	Options map[string]any `yaml:"options"`
}

// CatalogConfig selects where the drink menu comes from. When PostgresDSN is
// set it wins over File. File defaults to "menu.yaml".
type CatalogConfig struct {
	File            string        `yaml:"file"`
	PostgresDSN     string        `yaml:"postgres_dsn"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// EngineConfig tunes the understanding pipeline.
type EngineConfig struct {
	// ContextExpiry is the inactivity window after which an order context
	// resets (default 5m).
	ContextExpiry time.Duration `yaml:"context_expiry"`

	// ReferenceWindow bounds how old a cached match may be for "same thing"
	// style references (default 5m).
	ReferenceWindow time.Duration `yaml:"reference_window"`

	// FuzzyThreshold is the minimum fuzzy score accepted (default 0.6).
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// AmbiguityTimeout is the hard ceiling on an LLM resolution (default 10s).
	AmbiguityTimeout time.Duration `yaml:"ambiguity_timeout"`

	// SynthesisTimeout bounds one speech synthesis call (default 8s).
	SynthesisTimeout time.Duration `yaml:"synthesis_timeout"`

	// ContextTokenBudget caps the prompt size sent to the LLM (default 1500).
	ContextTokenBudget int `yaml:"context_token_budget"`
}

// GateConfig configures the command gate.
type GateConfig struct {
	// Debounce is the delay before an accepted command runs (default 150ms).
	Debounce time.Duration `yaml:"debounce"`

	// Cooldowns maps channel names to their minimum interval.
	Cooldowns map[string]time.Duration `yaml:"cooldowns"`
}

// SessionConfig controls the session manager.
type SessionConfig struct {
	// IdleTimeout removes sessions without activity (default 30m).
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// CartBusConfig configures MQTT publication of order deltas. An empty
// BrokerURL disables the bus.
type CartBusConfig struct {
	BrokerURL   string `yaml:"broker_url"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// MCPConfig toggles the MCP tool endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// VoiceConfig holds the initial voice settings served by
// /api/settings/voice.
type VoiceConfig struct {
	// Provider is "elevenlabs" or "webspeech" (default "webspeech").
	Provider string  `yaml:"provider"`
	Enabled  *bool   `yaml:"enabled"`
	Pitch    float64 `yaml:"pitch"`
	Rate     float64 `yaml:"rate"`
	Volume   float64 `yaml:"volume"`
}

// Default values applied by [ApplyDefaults].
const (
	DefaultListenAddr         = ":8080"
	DefaultShutdownTimeout    = 15 * time.Second
	DefaultContextExpiry      = 5 * time.Minute
	DefaultReferenceWindow    = 5 * time.Minute
	DefaultFuzzyThreshold     = 0.6
	DefaultAmbiguityTimeout   = 10 * time.Second
	DefaultSynthesisTimeout   = 8 * time.Second
	DefaultContextTokenBudget = 1500
	DefaultDebounce           = 150 * time.Millisecond
	DefaultIdleTimeout        = 30 * time.Minute
	DefaultCatalogRefresh     = 30 * time.Second
	DefaultTopicPrefix        = "barkeep/sessions"
	DefaultCatalogFile        = "menu.yaml"
)

// DefaultCooldowns are the per-channel cooldowns used when none are
// configured.
var DefaultCooldowns = map[string]time.Duration{
	ChannelVoiceCommand:    1500 * time.Millisecond,
	ChannelOrderProcessing: 2 * time.Second,
	ChannelSpeechSynthesis: 1 * time.Second,
}

// ApplyDefaults fills zero-valued fields of cfg in place.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	e := &cfg.Engine
	if e.ContextExpiry == 0 {
		e.ContextExpiry = DefaultContextExpiry
	}
	if e.ReferenceWindow == 0 {
		e.ReferenceWindow = DefaultReferenceWindow
	}
	if e.FuzzyThreshold == 0 {
		e.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if e.AmbiguityTimeout == 0 {
		e.AmbiguityTimeout = DefaultAmbiguityTimeout
	}
	if e.SynthesisTimeout == 0 {
		e.SynthesisTimeout = DefaultSynthesisTimeout
	}
	if e.ContextTokenBudget == 0 {
		e.ContextTokenBudget = DefaultContextTokenBudget
	}

	if cfg.Gate.Debounce == 0 {
		cfg.Gate.Debounce = DefaultDebounce
	}
	if cfg.Gate.Cooldowns == nil {
		cfg.Gate.Cooldowns = make(map[string]time.Duration, len(DefaultCooldowns))
	}
	for ch, d := range DefaultCooldowns {
		if _, ok := cfg.Gate.Cooldowns[ch]; !ok {
			cfg.Gate.Cooldowns[ch] = d
		}
	}

	if cfg.Session.IdleTimeout == 0 {
		cfg.Session.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Catalog.File == "" && cfg.Catalog.PostgresDSN == "" {
		cfg.Catalog.File = DefaultCatalogFile
	}
	if cfg.Catalog.RefreshInterval == 0 {
		cfg.Catalog.RefreshInterval = DefaultCatalogRefresh
	}
	if cfg.CartBus.TopicPrefix == "" {
		cfg.CartBus.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.CartBus.ClientID == "" {
		cfg.CartBus.ClientID = "barkeep"
	}

	v := &cfg.Voice
	if v.Provider == "" {
		v.Provider = "webspeech"
	}
	if v.Enabled == nil {
		on := true
		v.Enabled = &on
	}
	if v.Pitch == 0 {
		v.Pitch = 1.0
	}
	if v.Rate == 0 {
		v.Rate = 1.0
	}
	if v.Volume == 0 {
		v.Volume = 1.0
	}
}
