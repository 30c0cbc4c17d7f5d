package app_test

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/barkeep/internal/app"
	"github.com/MrWong99/barkeep/internal/cartbus"
	"github.com/MrWong99/barkeep/internal/catalog"
	"github.com/MrWong99/barkeep/internal/config"
	"github.com/MrWong99/barkeep/pkg/provider/tts"
	ttsmock "github.com/MrWong99/barkeep/pkg/provider/tts/mock"
)

// testConfig returns a defaulted config with MCP enabled.
func testConfig() *config.Config {
	cfg := &config.Config{
		Server: config.ServerConfig{ListenAddr: "127.0.0.1:0", LogLevel: config.LogInfo},
		MCP:    config.MCPConfig{Enabled: true},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func testStore() *catalog.MemStore {
	return catalog.NewMemStore(
		catalog.Drink{ID: "mojito", Name: "Mojito", Category: "cocktail", Inventory: 10, Price: 9},
		catalog.Drink{ID: "beer", Name: "Beer", Category: "beer", Inventory: 20, Price: 5},
	)
}

type bus struct {
	mu     sync.Mutex
	deltas []cartbus.Delta
	closed bool
}

func (b *bus) Publish(_ context.Context, d cartbus.Delta) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deltas = append(b.deltas, d)
	return nil
}

func (b *bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

func newApp(t *testing.T, providers *app.Providers, opts ...app.Option) (*app.App, *bus) {
	t.Helper()
	b := &bus{}
	opts = append([]app.Option{app.WithCatalogStore(testStore()), app.WithPublisher(b)}, opts...)
	a, err := app.New(context.Background(), testConfig(), providers, opts...)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	return a, b
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew_WithMocks(t *testing.T) {
	t.Parallel()
	a, _ := newApp(t, nil)
	h := a.Handler()

	if rec := serve(t, h, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("/readyz = %d: %s", rec.Code, rec.Body)
	}
	rec := serve(t, h, http.MethodGet, "/v1/drinks", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Mojito") {
		t.Errorf("/v1/drinks = %d: %s", rec.Code, rec.Body)
	}
	if rec := serve(t, h, http.MethodPost, "/api/synthesize", `{"text":"hi"}`); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/api/synthesize without TTS = %d, want 503", rec.Code)
	}
}

func TestNew_MenuFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "menu.yaml")
	menu := "drinks:\n  - name: Mojito\n    category: cocktail\n    inventory: 4\n    price: 9\n"
	if err := os.WriteFile(path, []byte(menu), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Catalog.File = path

	a, err := app.New(context.Background(), cfg, nil, app.WithPublisher(&bus{}))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if rec := serve(t, a.Handler(), http.MethodGet, "/v1/drinks", ""); !strings.Contains(rec.Body.String(), "Mojito") {
		t.Errorf("/v1/drinks = %s", rec.Body)
	}

	cfg = testConfig()
	cfg.Catalog.File = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := app.New(context.Background(), cfg, nil, app.WithPublisher(&bus{})); err == nil {
		t.Error("New() with a missing menu file succeeded")
	}
}

func TestApp_OrderPublishesToBus(t *testing.T) {
	t.Parallel()
	a, b := newApp(t, nil)
	h := a.Handler()

	info := a.Sessions().Create(context.Background())
	rec := serve(t, h, http.MethodPost, "/v1/sessions/"+info.ID+"/speech", `{"text":"give me two mojitos"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("speech = %d: %s", rec.Code, rec.Body)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.deltas) != 1 || b.deltas[0].SessionID != info.ID {
		t.Errorf("deltas = %+v", b.deltas)
	}
}

func TestApp_ElevenLabsKeyEnablesSynthesis(t *testing.T) {
	t.Parallel()

	el := &ttsmock.Provider{Audio: &tts.Audio{Data: []byte("el"), ContentType: "audio/mpeg"}}
	var gotKey string
	providers := &app.Providers{
		ElevenLabs: func(key string) (tts.Provider, error) {
			gotKey = key
			return el, nil
		},
	}
	a, _ := newApp(t, providers)
	h := a.Handler()

	rec := serve(t, h, http.MethodPost, "/api/settings/voice", `{"provider":"elevenlabs","apiKey":"sk-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("voice update = %d: %s", rec.Code, rec.Body)
	}
	if gotKey != "sk-1" {
		t.Errorf("factory key = %q", gotKey)
	}

	rec = serve(t, h, http.MethodPost, "/api/synthesize", `{"text":"cheers"}`)
	if rec.Code != http.StatusOK || rec.Body.String() != "el" {
		t.Fatalf("synthesize = %d: %q", rec.Code, rec.Body)
	}
	if len(el.Calls()) != 1 {
		t.Errorf("elevenlabs calls = %d", len(el.Calls()))
	}
}

func TestApp_ElevenLabsFactoryError(t *testing.T) {
	t.Parallel()

	base := &ttsmock.Provider{Audio: &tts.Audio{Data: []byte("base")}}
	providers := &app.Providers{
		TTS:        base,
		ElevenLabs: func(string) (tts.Provider, error) { return nil, errors.New("bad key") },
	}
	a, _ := newApp(t, providers)
	h := a.Handler()

	serve(t, h, http.MethodPost, "/api/settings/voice", `{"provider":"elevenlabs","apiKey":"sk-1"}`)
	rec := serve(t, h, http.MethodPost, "/api/synthesize", `{"text":"cheers"}`)
	if rec.Body.String() != "base" {
		t.Errorf("synthesize body = %q, want the configured provider", rec.Body)
	}
}

func TestApp_Shutdown(t *testing.T) {
	t.Parallel()
	a, b := newApp(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown() error: %v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		t.Error("cart bus not closed")
	}
}

func TestApp_RunAndShutdown(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	a, _ := newApp(t, nil, app.WithListener(ln))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(ctx)
	}()

	url := "http://" + ln.Addr().String() + "/healthz"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return within 5s after context cancellation")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
}
