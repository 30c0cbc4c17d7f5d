package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/barkeep/internal/gate"
	"github.com/MrWong99/barkeep/internal/observe"
	"github.com/MrWong99/barkeep/internal/voicesettings"
	"github.com/MrWong99/barkeep/pkg/provider/tts"
)

type voiceResponse struct {
	Success bool                   `json:"success"`
	Config  voicesettings.Settings `json:"config"`
}

func (s *Server) handleGetVoice(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, voiceResponse{Success: true, Config: s.cfg.Voice.Get()})
}

func (s *Server) handleUpdateVoice(w http.ResponseWriter, r *http.Request) {
	var u voicesettings.Update
	if err := decodeJSON(r, &u); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "Failed to update voice settings", Message: err.Error()})
		return
	}
	next, err := s.cfg.Voice.Apply(u)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "Failed to update voice settings", Message: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, voiceResponse{Success: true, Config: next})
}

type synthesizeRequest struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Voice    string `json:"voice"`
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "Text is required")
		return
	}
	synth := s.synthesizer()
	if synth == nil {
		respondError(w, http.StatusServiceUnavailable, "synthesis_unavailable", "no speech synthesis provider configured")
		return
	}

	var audio *tts.Audio
	err := s.cfg.SynthGate.Do(r.Context(), gate.ChannelSpeechSynthesis, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.SynthTimeout)
		defer cancel()
		start := time.Now()
		a, err := synth.Synthesize(ctx, req.Text, tts.VoiceProfile{ID: req.Voice, Provider: req.Provider})
		s.cfg.Metrics.TTSDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.Attr("provider", providerLabel(req.Provider))))
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.cfg.Metrics.RecordProviderRequest(ctx, providerLabel(req.Provider), "tts", status)
		audio = a
		return err
	})

	switch {
	case errors.Is(err, gate.ErrCooldown):
		s.cfg.Metrics.RecordGateRejection(r.Context(), gate.ChannelSpeechSynthesis)
		setRetryAfter(w, err)
		respondError(w, http.StatusTooManyRequests, "cooldown", err.Error())
		return
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "synthesis_timeout", err.Error())
		return
	case err != nil:
		observe.Logger(r.Context()).Warn("httpapi: synthesize", "err", err)
		respondError(w, http.StatusBadGateway, "synthesis_failed", err.Error())
		return
	case audio == nil || len(audio.Data) == 0:
		respondError(w, http.StatusBadGateway, "synthesis_failed", "provider returned no audio")
		return
	}

	ct := audio.ContentType
	if ct == "" {
		ct = "audio/mpeg"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="speech.mp3"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio.Data)
}

func providerLabel(p string) string {
	if p == "" {
		return "default"
	}
	return p
}
