// Package tts defines the Provider interface for the speech synthesis
// backends behind POST /api/synthesize.
//
// The browser plays the returned audio directly, so synthesis is one-shot:
// a complete response string goes in, a complete encoded clip comes out.
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
)

// ErrEmptyText is returned when Synthesize is called with blank text.
var ErrEmptyText = errors.New("tts: text must not be empty")

// Audio is an encoded speech clip.
type Audio struct {
	// Data holds the encoded bytes.
	Data []byte

	// ContentType is the MIME type of Data, e.g. "audio/mpeg".
	ContentType string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text with voice and returns the encoded clip. An
	// empty voice.ID selects the provider default.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (*Audio, error)

	// ListVoices returns the voices the provider currently offers.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
