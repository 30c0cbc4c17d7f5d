package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/barkeep/internal/observe"
	"github.com/MrWong99/barkeep/internal/voiceorder"
)

// Caller event frame types.
const (
	EventWakeWord = "wakeWord"
	EventSpeech   = "speech"
	EventStart    = "start"
	EventStop     = "stop"
	EventError    = "error"
	EventResult   = "result"
)

// eventReadLimit caps one inbound frame.
const eventReadLimit = 32 << 10

// Event is one frame on the caller event socket. Only the fields of its
// type are set.
type Event struct {
	Type string `json:"type"`

	// Mode is the wake word mode of a wakeWord frame.
	Mode string `json:"mode,omitempty"`

	// Text is the transcript of a speech frame.
	Text string `json:"text,omitempty"`

	// ErrorType and Message describe an error frame.
	ErrorType string `json:"errorType,omitempty"`
	Message   string `json:"message,omitempty"`

	Result *voiceorder.VoiceOrderResult `json:"result,omitempty"`
}

// handleEvents upgrades to the caller event socket. Speech frames run
// through the pipeline and are answered with a result frame; the other
// frame types are logged.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.cfg.Sessions.Lookup(id); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("httpapi: accept event socket", "session_id", id, "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(eventReadLimit)

	ctx := observe.WithSession(r.Context(), id)
	log := observe.Logger(ctx)
	log.Debug("httpapi: event socket connected")

	for {
		var ev Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if isClosed(err) {
				log.Debug("httpapi: event socket closed")
				return
			}
			log.Warn("httpapi: read event", "err", err)
			conn.Close(websocket.StatusUnsupportedData, "invalid frame")
			return
		}

		var reply *Event
		switch ev.Type {
		case EventSpeech:
			res := s.cfg.Engine.ProcessVoiceOrder(ctx, ev.Text, id)
			reply = &Event{Type: EventResult, Result: &res}
		case EventWakeWord:
			log.Debug("httpapi: wake word", "mode", ev.Mode)
		case EventStart, EventStop:
			log.Debug("httpapi: listening state", "event", ev.Type)
		case EventError:
			log.Warn("httpapi: caller reported error", "type", ev.ErrorType, "message", ev.Message)
		default:
			reply = &Event{Type: EventError, ErrorType: "invalid_event", Message: "unknown event type " + ev.Type}
		}
		if reply == nil {
			continue
		}
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			if !isClosed(err) {
				log.Warn("httpapi: write event", "err", err)
			}
			return
		}
	}
}

func isClosed(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled)
}
