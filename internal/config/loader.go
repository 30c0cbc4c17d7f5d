package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the provider names known per kind. Unknown names
// only produce a warning so third-party factories can be registered.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts": {"openai", "elevenlabs"},
}

// ValidVoiceProviders are the client-side voice engines the UI can select.
var ValidVoiceProviders = []string{"elevenlabs", "webspeech"}

// Load reads the YAML file at path and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r, applies defaults and validates the
// result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg for coherent values and returns every problem found
// joined into one error.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
		}
		validateProviderName("llm", fb.Name)
	}
	for i, fb := range cfg.Providers.TTSFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.tts_fallbacks[%d].name is required", i))
		}
		validateProviderName("tts", fb.Name)
	}
	if cfg.Providers.LLM.Name == "" && len(cfg.Providers.LLMFallbacks) > 0 {
		errs = append(errs, errors.New("providers.llm_fallbacks requires providers.llm"))
	}
	if cfg.Providers.TTS.Name == "" && len(cfg.Providers.TTSFallbacks) > 0 {
		errs = append(errs, errors.New("providers.tts_fallbacks requires providers.tts"))
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("config: no LLM provider configured; ambiguous commands fall back to the best local guess")
	}

	if cfg.Catalog.RefreshInterval < 0 {
		errs = append(errs, fmt.Errorf("catalog.refresh_interval %v must not be negative", cfg.Catalog.RefreshInterval))
	}

	e := cfg.Engine
	if e.FuzzyThreshold <= 0 || e.FuzzyThreshold >= 1 {
		errs = append(errs, fmt.Errorf("engine.fuzzy_threshold %.2f is out of range (0, 1)", e.FuzzyThreshold))
	}
	for name, d := range map[string]int64{
		"engine.context_expiry":    int64(e.ContextExpiry),
		"engine.reference_window":  int64(e.ReferenceWindow),
		"engine.ambiguity_timeout": int64(e.AmbiguityTimeout),
		"engine.synthesis_timeout": int64(e.SynthesisTimeout),
		"gate.debounce":            int64(cfg.Gate.Debounce),
		"session.idle_timeout":     int64(cfg.Session.IdleTimeout),
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	for ch, d := range cfg.Gate.Cooldowns {
		if _, known := DefaultCooldowns[ch]; !known {
			errs = append(errs, fmt.Errorf("gate.cooldowns: unknown channel %q", ch))
		}
		if d < 0 {
			errs = append(errs, fmt.Errorf("gate.cooldowns.%s must not be negative", ch))
		}
	}

	v := cfg.Voice
	if v.Provider != "" && !slices.Contains(ValidVoiceProviders, v.Provider) {
		errs = append(errs, fmt.Errorf("voice.provider %q is invalid; valid values: elevenlabs, webspeech", v.Provider))
	}
	if v.Pitch != 0 && (v.Pitch < 0.5 || v.Pitch > 2.0) {
		errs = append(errs, fmt.Errorf("voice.pitch %.2f is out of range [0.5, 2.0]", v.Pitch))
	}
	if v.Rate != 0 && (v.Rate < 0.5 || v.Rate > 2.0) {
		errs = append(errs, fmt.Errorf("voice.rate %.2f is out of range [0.5, 2.0]", v.Rate))
	}
	if v.Volume < 0 || v.Volume > 1 {
		errs = append(errs, fmt.Errorf("voice.volume %.2f is out of range [0, 1]", v.Volume))
	}

	if cfg.CartBus.BrokerURL == "" && cfg.CartBus.Username != "" {
		slog.Warn("config: cartbus credentials set without broker_url; the cart bus stays disabled")
	}

	return errors.Join(errs...)
}

func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("config: unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
