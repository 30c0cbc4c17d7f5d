package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/barkeep/internal/catalog"
	"github.com/MrWong99/barkeep/internal/gate"
	"github.com/MrWong99/barkeep/internal/httpapi"
	"github.com/MrWong99/barkeep/internal/order"
	"github.com/MrWong99/barkeep/internal/session"
	"github.com/MrWong99/barkeep/internal/voiceorder"
	"github.com/MrWong99/barkeep/internal/voicesettings"
	"github.com/MrWong99/barkeep/pkg/provider/tts"
	ttsmock "github.com/MrWong99/barkeep/pkg/provider/tts/mock"
)

type menu []catalog.Drink

func (m menu) Drinks() []catalog.Drink { return m }

var drinks = menu{
	{ID: "mojito", Name: "Mojito", Category: "cocktail", Inventory: 10, Price: 9},
	{ID: "beer", Name: "Beer", Category: "beer", Inventory: 20, Price: 5},
	{ID: "diet-coke", Name: "Diet Coke", Category: "soft", Inventory: 5, Price: 3},
}

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

type fixture struct {
	sessions *session.Manager
	voice    *voicesettings.Store
	synth    *ttsmock.Provider
	api      *httpapi.Server
	handler  http.Handler

	mu   sync.Mutex
	keys []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &fixedClock{t: time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC)}
	f := &fixture{
		synth: &ttsmock.Provider{Audio: &tts.Audio{Data: []byte("mp3-bytes"), ContentType: "audio/mpeg"}},
	}
	f.sessions = session.NewManager(session.Config{
		Menu:      drinks,
		Cooldowns: map[string]time.Duration{gate.ChannelVoiceCommand: 1500 * time.Millisecond},
	}, session.WithClock(clk.Now))
	f.voice = voicesettings.NewStore(voicesettings.Settings{
		Provider: voicesettings.ProviderWebSpeech, VoiceEnabled: true, Pitch: 1, Rate: 1, Volume: 1,
	}, voicesettings.OnAPIKey(func(key string) {
		f.mu.Lock()
		f.keys = append(f.keys, key)
		f.mu.Unlock()
	}))
	f.api = httpapi.New(httpapi.Config{
		Engine:    voiceorder.New(f.sessions),
		Sessions:  f.sessions,
		Menu:      drinks,
		Voice:     f.voice,
		Synth:     f.synth,
		SynthGate: gate.New(gate.WithDebounce(0), gate.WithClock(clk.Now), gate.WithCooldown(gate.ChannelSpeechSynthesis, time.Second)),
	})
	f.handler = f.api.Router()
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) createSession(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/sessions", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d: %s", rec.Code, rec.Body)
	}
	var info session.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if info.ID == "" {
		t.Fatal("empty session id")
	}
	return info.ID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestSessions_CreateAndEnd(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.createSession(t)
	if f.sessions.Len() != 1 {
		t.Fatalf("sessions = %d, want 1", f.sessions.Len())
	}

	if rec := f.do(t, http.MethodDelete, "/v1/sessions/"+id, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("end: status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/v1/sessions/"+id, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second end: status %d, want 404", rec.Code)
	}
}

func TestSpeech(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.createSession(t)

	rec := f.do(t, http.MethodPost, "/v1/sessions/"+id+"/speech", `{"text":"give me two mojitos"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	res := decode[voiceorder.VoiceOrderResult](t, rec)
	if !res.Success || res.Order == nil {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Order.Items) != 1 || res.Order.Items[0].Name != "Mojito" || res.Order.Items[0].Quantity != 2 {
		t.Errorf("items = %+v", res.Order.Items)
	}

	ctxRec := f.do(t, http.MethodGet, "/v1/sessions/"+id+"/context", "")
	if ctxRec.Code != http.StatusOK {
		t.Fatalf("context: status %d", ctxRec.Code)
	}
	oc := decode[order.Context](t, ctxRec)
	if len(oc.CurrentItems) != 1 || oc.CartTotal() != 18 {
		t.Errorf("context = %+v", oc)
	}
}

func TestSpeech_CooldownIs429(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.createSession(t)

	if rec := f.do(t, http.MethodPost, "/v1/sessions/"+id+"/speech", `{"text":"give me a beer"}`); rec.Code != http.StatusOK {
		t.Fatalf("first: status %d", rec.Code)
	}
	rec := f.do(t, http.MethodPost, "/v1/sessions/"+id+"/speech", `{"text":"give me a beer"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second: status %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
	if res := decode[voiceorder.VoiceOrderResult](t, rec); res.Success {
		t.Error("cooldown result reported success")
	}
}

func TestSpeech_EmptyTranscript(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.createSession(t)

	rec := f.do(t, http.MethodPost, "/v1/sessions/"+id+"/speech", `{"text":"   "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	res := decode[voiceorder.VoiceOrderResult](t, rec)
	if res.Success || res.Response == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestSession_UnknownIs404(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/v1/sessions/nope/speech", `{"text":"give me a beer"}`},
		{http.MethodGet, "/v1/sessions/nope/context", ""},
		{http.MethodGet, "/v1/sessions/nope/events", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if rec := f.do(t, tt.method, tt.path, tt.body); rec.Code != http.StatusNotFound {
				t.Errorf("status %d, want 404", rec.Code)
			}
		})
	}
}

func TestDrinks(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?category=cocktail", 1},
		{"?category=wine", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/v1/drinks"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), `"drinks":[`) {
				t.Errorf("body = %s, want a drinks array", rec.Body)
			}
			body := decode[struct {
				Drinks []catalog.Drink `json:"drinks"`
			}](t, rec)
			if len(body.Drinks) != tt.want {
				t.Errorf("drinks = %d, want %d", len(body.Drinks), tt.want)
			}
		})
	}
}

type voiceBody struct {
	Success bool                   `json:"success"`
	Config  voicesettings.Settings `json:"config"`
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
}

func TestVoiceSettings(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	got := decode[voiceBody](t, f.do(t, http.MethodGet, "/api/settings/voice", ""))
	if !got.Success || got.Config.Provider != voicesettings.ProviderWebSpeech {
		t.Fatalf("get = %+v", got)
	}

	rec := f.do(t, http.MethodPost, "/api/settings/voice", `{"rate":1.5,"voiceEnabled":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d: %s", rec.Code, rec.Body)
	}
	got = decode[voiceBody](t, rec)
	if got.Config.Rate != 1.5 || got.Config.VoiceEnabled {
		t.Errorf("update = %+v", got.Config)
	}

	rec = f.do(t, http.MethodPost, "/api/settings/voice", `{"pitch":9}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid update: status %d", rec.Code)
	}
	if got = decode[voiceBody](t, rec); got.Error != "Failed to update voice settings" || got.Message == "" {
		t.Errorf("invalid update body = %+v", got)
	}
	if f.voice.Get().Pitch != 1 {
		t.Error("invalid update changed the stored settings")
	}

	rec = f.do(t, http.MethodPost, "/api/settings/voice", `{"provider":"elevenlabs","apiKey":"sk-test"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("key update: status %d: %s", rec.Code, rec.Body)
	}
	if got = decode[voiceBody](t, rec); !got.Config.HasElevenLabs {
		t.Errorf("hasElevenLabs not set: %+v", got.Config)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.keys) != 1 || f.keys[0] != "sk-test" {
		t.Errorf("api key hook calls = %v", f.keys)
	}
}

func TestSynthesize(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/synthesize", `{"text":"Two mojitos coming up","voice":"bella"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "speech.mp3") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Body.String() != "mp3-bytes" {
		t.Errorf("body = %q", rec.Body)
	}
	calls := f.synth.Calls()
	if len(calls) != 1 || calls[0].Text != "Two mojitos coming up" || calls[0].Voice.ID != "bella" {
		t.Errorf("calls = %+v", calls)
	}

	if rec := f.do(t, http.MethodPost, "/api/synthesize", `{"text":"again"}`); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second call: status %d, want 429", rec.Code)
	}
}

func TestSynthesize_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		body  string
		synth tts.Provider
		want  int
	}{
		{"empty text", `{"text":" "}`, &ttsmock.Provider{}, http.StatusBadRequest},
		{"no body", "", &ttsmock.Provider{}, http.StatusBadRequest},
		{"no provider", `{"text":"hi"}`, nil, http.StatusServiceUnavailable},
		{"provider error", `{"text":"hi"}`, &ttsmock.Provider{SynthesizeErr: errors.New("boom")}, http.StatusBadGateway},
		{"no audio", `{"text":"hi"}`, &ttsmock.Provider{}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.api.SetSynthesizer(tt.synth)
			if rec := f.do(t, http.MethodPost, "/api/synthesize", tt.body); rec.Code != tt.want {
				t.Errorf("status %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.createSession(t)

	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/" + id + "/events"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	for _, ev := range []httpapi.Event{
		{Type: httpapi.EventWakeWord, Mode: "order"},
		{Type: httpapi.EventStart},
		{Type: httpapi.EventSpeech, Text: "give me a beer"},
	} {
		if err := wsjson.Write(ctx, conn, ev); err != nil {
			t.Fatalf("write %s: %v", ev.Type, err)
		}
	}

	var reply httpapi.Event
	if err := wsjson.Read(ctx, conn, &reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Type != httpapi.EventResult || reply.Result == nil || !reply.Result.Success {
		t.Fatalf("reply = %+v", reply)
	}
	if items := reply.Result.Order.Items; len(items) != 1 || items[0].Name != "Beer" {
		t.Errorf("items = %+v", items)
	}

	if err := wsjson.Write(ctx, conn, httpapi.Event{Type: "dance"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := wsjson.Read(ctx, conn, &reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Type != httpapi.EventError || reply.ErrorType != "invalid_event" {
		t.Errorf("reply = %+v", reply)
	}

	conn.Close(websocket.StatusNormalClosure, "")
}

func TestHealthAndMetricsMounted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		if rec := f.do(t, http.MethodGet, path, ""); rec.Code != http.StatusOK {
			t.Errorf("%s: status %d", path, rec.Code)
		}
	}
}
