// Package httpapi is the HTTP surface of barkeep: session lifecycle, voice
// commands, the caller event socket, the catalog, voice settings, speech
// synthesis, MCP, metrics and health probes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/barkeep/internal/catalog"
	"github.com/MrWong99/barkeep/internal/gate"
	"github.com/MrWong99/barkeep/internal/health"
	"github.com/MrWong99/barkeep/internal/observe"
	"github.com/MrWong99/barkeep/internal/session"
	"github.com/MrWong99/barkeep/internal/voiceorder"
	"github.com/MrWong99/barkeep/internal/voicesettings"
	"github.com/MrWong99/barkeep/pkg/provider/tts"
)

// DefaultSynthesisTimeout bounds one /api/synthesize call.
const DefaultSynthesisTimeout = 8 * time.Second

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// Engine runs voice commands.
type Engine interface {
	ProcessVoiceOrder(ctx context.Context, text, sessionID string) voiceorder.VoiceOrderResult
}

// Sessions is the session lifecycle the API drives. [*session.Manager]
// implements it.
type Sessions interface {
	voiceorder.Sessions
	Create(ctx context.Context) session.Info
	End(ctx context.Context, id string) error
}

// Menu is the catalog view served by /v1/drinks.
type Menu interface {
	Drinks() []catalog.Drink
}

// Config holds the dependencies of a [Server]. Engine, Sessions and Menu
// are required.
type Config struct {
	Engine   Engine
	Sessions Sessions
	Menu     Menu

	// Voice backs /api/settings/voice. Nil disables the routes.
	Voice *voicesettings.Store

	// Synth renders /api/synthesize. It can be set later with
	// [Server.SetSynthesizer].
	Synth tts.Provider

	// SynthGate rate limits synthesis on [gate.ChannelSpeechSynthesis]. A nil
	// gate gets a fresh one with a one second cooldown.
	SynthGate    *gate.Gate
	SynthTimeout time.Duration

	// MCP is mounted at /mcp when non-nil.
	MCP http.Handler

	Health  *health.Handler
	Metrics *observe.Metrics
}

// Server routes requests. Handlers are safe for concurrent use.
type Server struct {
	cfg Config

	mu    sync.RWMutex
	synth tts.Provider
}

// New returns a server.
func New(cfg Config) *Server {
	if cfg.SynthGate == nil {
		cfg.SynthGate = gate.New(gate.WithDebounce(0), gate.WithCooldown(gate.ChannelSpeechSynthesis, time.Second))
	}
	if cfg.SynthTimeout <= 0 {
		cfg.SynthTimeout = DefaultSynthesisTimeout
	}
	if cfg.Health == nil {
		cfg.Health = health.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Server{cfg: cfg, synth: cfg.Synth}
}

// SetSynthesizer replaces the synthesis backend.
func (s *Server) SetSynthesizer(p tts.Provider) {
	s.mu.Lock()
	s.synth = p
	s.mu.Unlock()
}

func (s *Server) synthesizer() tts.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synth
}

// Router returns the request router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(observe.Middleware(s.cfg.Metrics))

	s.cfg.Health.Register(r)
	r.Handle("/metrics", observe.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Delete("/sessions/{id}", s.handleEndSession)
		r.Post("/sessions/{id}/speech", s.handleSpeech)
		r.Get("/sessions/{id}/context", s.handleContext)
		r.Get("/sessions/{id}/events", s.handleEvents)
		r.Get("/drinks", s.handleDrinks)
	})

	r.Route("/api", func(r chi.Router) {
		if s.cfg.Voice != nil {
			r.Get("/settings/voice", s.handleGetVoice)
			r.Post("/settings/voice", s.handleUpdateVoice)
		}
		r.Post("/synthesize", s.handleSynthesize)
	})

	if s.cfg.MCP != nil {
		r.Handle("/mcp", s.cfg.MCP)
		r.Handle("/mcp/*", s.cfg.MCP)
	}
	return r
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
