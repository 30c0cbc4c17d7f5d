package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/barkeep/internal/catalog"
	"github.com/MrWong99/barkeep/internal/gate"
	"github.com/MrWong99/barkeep/internal/voiceorder"
)

type speechRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	info := s.cfg.Sessions.Create(r.Context())
	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.cfg.Sessions.End(r.Context(), id); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res := s.cfg.Engine.ProcessVoiceOrder(r.Context(), req.Text, chi.URLParam(r, "id"))
	respondJSON(w, resultStatus(w, res), res)
}

// resultStatus maps a pipeline result to an HTTP status, setting
// Retry-After for cooldowns.
func resultStatus(w http.ResponseWriter, res voiceorder.VoiceOrderResult) int {
	switch {
	case errors.Is(res.Err, voiceorder.ErrUnknownSession):
		return http.StatusNotFound
	case errors.Is(res.Err, voiceorder.ErrCooldown):
		setRetryAfter(w, res.Err)
		return http.StatusTooManyRequests
	}
	return http.StatusOK
}

func setRetryAfter(w http.ResponseWriter, err error) {
	var ce *gate.CooldownError
	if errors.As(err, &ce) && ce.RetryAfter > 0 {
		secs := int(math.Ceil(ce.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	sess, err := s.cfg.Sessions.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sess.Contexts.Get())
}

func (s *Server) handleDrinks(w http.ResponseWriter, r *http.Request) {
	drinks := s.cfg.Menu.Drinks()
	if q := strings.TrimSpace(r.URL.Query().Get("category")); q != "" {
		var filtered []catalog.Drink
		for _, d := range drinks {
			if strings.EqualFold(d.Category, q) {
				filtered = append(filtered, d)
			}
		}
		drinks = filtered
	}
	if drinks == nil {
		drinks = []catalog.Drink{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"drinks": drinks})
}
