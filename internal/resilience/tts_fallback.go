package resilience

import (
	"context"
	"log/slog"

	"github.com/MrWong99/barkeep/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with failover across backends.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] preferring primary.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another backend.
func (f *TTSFallback) AddFallback(name string, p tts.Provider) {
	f.group.AddFallback(name, p)
}

// Synthesize renders text with the first healthy backend. A voice ID is
// provider specific, so it is only forwarded to the backend it belongs to.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (*tts.Audio, error) {
	audio, used, err := executeNamed(f.group, func(name string, p tts.Provider) (*tts.Audio, error) {
		v := voice
		if v.Provider != "" && v.Provider != name {
			v.ID = ""
		}
		return p.Synthesize(ctx, text, v)
	})
	if err == nil && voice.Provider != "" && used != voice.Provider {
		slog.Debug("resilience: synthesized with fallback provider", "wanted", voice.Provider, "used", used)
	}
	return audio, err
}

// ListVoices returns the voices of the first healthy backend.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	voices, _, err := ExecuteWithResult(f.group, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
	return voices, err
}

// States exposes breaker states for readiness reporting.
func (f *TTSFallback) States() map[string]State {
	return f.group.States()
}
