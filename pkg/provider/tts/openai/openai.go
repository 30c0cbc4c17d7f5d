// Package openai provides a TTS provider backed by the OpenAI audio speech
// endpoint (tts-1 / tts-1-hd / gpt-4o-mini-tts).
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/barkeep/pkg/provider/tts"
)

const (
	defaultModel = "tts-1"
	defaultVoice = "nova"
)

// builtinVoices are the stock OpenAI speech voices.
var builtinVoices = []string{"alloy", "ash", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer"}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithModel selects the speech model.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithDefaultVoice sets the voice used when the request carries none.
func WithDefaultVoice(voice string) Option {
	return func(p *Provider) { p.voice = voice }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// Provider implements tts.Provider using OpenAI speech synthesis.
type Provider struct {
	client  oai.Client
	model   string
	voice   string
	baseURL string
}

// New creates an OpenAI TTS provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai tts: apiKey must not be empty")
	}
	p := &Provider{model: defaultModel, voice: defaultVoice}
	for _, o := range opts {
		o(p)
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if p.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(p.baseURL))
	}
	p.client = oai.NewClient(reqOpts...)
	return p, nil
}

// Synthesize implements tts.Provider. The clip is always mp3.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (*tts.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}
	v := voice.ID
	if v == "" {
		v = p.voice
	}

	params := oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(v),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if voice.SpeedFactor > 0 {
		params.Speed = param.NewOpt(voice.SpeedFactor)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai tts: speech: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai tts: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read body: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("openai tts: empty audio")
	}
	return &tts.Audio{Data: data, ContentType: "audio/mpeg"}, nil
}

// ListVoices implements tts.Provider. OpenAI has no voice listing endpoint,
// so the stock voices are returned.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	out := make([]tts.VoiceProfile, 0, len(builtinVoices))
	for _, v := range builtinVoices {
		out = append(out, tts.VoiceProfile{ID: v, Name: v, Provider: "openai"})
	}
	return out, nil
}

var _ tts.Provider = (*Provider)(nil)
