package config

import (
	"maps"
	"time"
)

// ConfigDiff lists the changes between two configs that can be applied
// without a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CooldownsChanged is set when any gate cooldown or the debounce delay
	// changed. New sessions pick up NewGate; running ones keep their gate.
	CooldownsChanged bool
	NewGate          GateConfig

	// VoiceChanged is set when the default voice settings changed.
	VoiceChanged bool

	// RestartRequired lists sections whose changes only take effect after a
	// restart (providers, catalog source, listen address, cart bus).
	RestartRequired []string
}

// Diff compares old and new.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Gate.Debounce != new.Gate.Debounce ||
		!maps.EqualFunc(old.Gate.Cooldowns, new.Gate.Cooldowns, func(a, b time.Duration) bool { return a == b }) {
		d.CooldownsChanged = true
		d.NewGate = new.Gate
	}

	if !voiceEqual(old.Voice, new.Voice) {
		d.VoiceChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Catalog.File != new.Catalog.File || old.Catalog.PostgresDSN != new.Catalog.PostgresDSN {
		d.RestartRequired = append(d.RestartRequired, "catalog")
	}
	if old.CartBus != new.CartBus {
		d.RestartRequired = append(d.RestartRequired, "cartbus")
	}
	return d
}

func voiceEqual(a, b VoiceConfig) bool {
	ae, be := a.Enabled == nil || *a.Enabled, b.Enabled == nil || *b.Enabled
	return a.Provider == b.Provider && ae == be && a.Pitch == b.Pitch && a.Rate == b.Rate && a.Volume == b.Volume
}

func providersEqual(a, b ProvidersConfig) bool {
	entryEq := func(x, y ProviderEntry) bool {
		return x.Name == y.Name && x.APIKey == y.APIKey && x.BaseURL == y.BaseURL && x.Model == y.Model
	}
	if !entryEq(a.LLM, b.LLM) || !entryEq(a.TTS, b.TTS) {
		return false
	}
	if len(a.LLMFallbacks) != len(b.LLMFallbacks) || len(a.TTSFallbacks) != len(b.TTSFallbacks) {
		return false
	}
	for i := range a.LLMFallbacks {
		if !entryEq(a.LLMFallbacks[i], b.LLMFallbacks[i]) {
			return false
		}
	}
	for i := range a.TTSFallbacks {
		if !entryEq(a.TTSFallbacks[i], b.TTSFallbacks[i]) {
			return false
		}
	}
	return true
}
