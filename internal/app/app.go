// Package app wires all barkeep subsystems into a running service.
//
// The App struct owns the full lifecycle: New builds the catalog, cart bus,
// session manager, pipeline and HTTP surface, Run serves until the context
// ends, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithCatalogStore,
// WithPublisher). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/barkeep/internal/ambiguity"
	"github.com/MrWong99/barkeep/internal/cartbus"
	"github.com/MrWong99/barkeep/internal/catalog"
	"github.com/MrWong99/barkeep/internal/config"
	"github.com/MrWong99/barkeep/internal/gate"
	"github.com/MrWong99/barkeep/internal/health"
	"github.com/MrWong99/barkeep/internal/httpapi"
	"github.com/MrWong99/barkeep/internal/mcpserver"
	"github.com/MrWong99/barkeep/internal/resilience"
	"github.com/MrWong99/barkeep/internal/session"
	"github.com/MrWong99/barkeep/internal/voiceorder"
	"github.com/MrWong99/barkeep/internal/voicesettings"
	"github.com/MrWong99/barkeep/pkg/provider/llm"
	"github.com/MrWong99/barkeep/pkg/provider/tts"
)

// Version is reported by the MCP server. Set at build time.
var Version = "dev"

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	// LLM resolves ambiguous commands. Nil runs the engine local-only.
	LLM llm.Provider

	// TTS backs /api/synthesize.
	TTS tts.Provider

	// ElevenLabs builds an ElevenLabs synthesizer for a key supplied at
	// runtime through the voice settings endpoint. Nil ignores such keys.
	ElevenLabs func(apiKey string) (tts.Provider, error)
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	store     catalog.Store
	menu      *catalog.Snapshot
	bus       cartbus.Publisher
	checkers  []health.Checker
	sessions  *session.Manager
	engine    *voiceorder.Engine
	voice     *voicesettings.Store
	synthGate *gate.Gate
	api       *httpapi.Server

	configPath string
	logLevel   *slog.LevelVar
	listener   net.Listener

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithCatalogStore injects a drink store instead of opening the configured
// file or database.
func WithCatalogStore(s catalog.Store) Option {
	return func(a *App) { a.store = s }
}

// WithPublisher injects a cart bus publisher instead of connecting to MQTT.
func WithPublisher(p cartbus.Publisher) Option {
	return func(a *App) { a.bus = p }
}

// WithConfigWatch hot-reloads path while Run is active. Log level,
// cooldowns and voice defaults apply live; other changes are logged as
// needing a restart.
func WithConfigWatch(path string, level *slog.LevelVar) Option {
	return func(a *App) {
		a.configPath = path
		a.logLevel = level
	}
}

// WithListener serves on l instead of listening on cfg.Server.ListenAddr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Catalog ───────────────────────────────────────────────────────
	if err := a.initCatalog(ctx); err != nil {
		return nil, fmt.Errorf("app: init catalog: %w", err)
	}

	// ── 2. Cart bus ──────────────────────────────────────────────────────
	if err := a.initCartBus(); err != nil {
		return nil, fmt.Errorf("app: init cart bus: %w", err)
	}

	// ── 3. Sessions + pipeline ───────────────────────────────────────────
	a.sessions = session.NewManager(session.Config{
		Menu:            a.menu,
		IdleTimeout:     cfg.Session.IdleTimeout,
		ContextExpiry:   cfg.Engine.ContextExpiry,
		ReferenceWindow: cfg.Engine.ReferenceWindow,
		FuzzyThreshold:  cfg.Engine.FuzzyThreshold,
		Debounce:        cfg.Gate.Debounce,
		Cooldowns:       cfg.Gate.Cooldowns,
	})
	a.engine = voiceorder.New(a.sessions,
		voiceorder.WithResolver(a.buildResolver()),
		voiceorder.WithPublisher(a.bus),
	)
	if a.engine.LocalOnly() {
		slog.Info("app: no language model configured, resolving ambiguity locally")
	}

	// ── 4. HTTP surface ──────────────────────────────────────────────────
	a.initAPI()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initCatalog opens the drink store and takes the first snapshot.
func (a *App) initCatalog(ctx context.Context) error {
	if a.store == nil {
		switch {
		case a.cfg.Catalog.PostgresDSN != "":
			pool, err := pgxpool.New(ctx, a.cfg.Catalog.PostgresDSN)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			a.closers = append(a.closers, func() error {
				pool.Close()
				return nil
			})
			pg := catalog.NewPostgresStore(pool)
			if err := pg.Migrate(ctx); err != nil {
				return err
			}
			a.store = pg
		default:
			ms, err := catalog.LoadMenuFile(a.cfg.Catalog.File)
			if err != nil {
				return err
			}
			a.store = ms
		}
	}

	var snapOpts []catalog.SnapshotOption
	if a.cfg.Catalog.RefreshInterval > 0 {
		snapOpts = append(snapOpts, catalog.WithRefreshInterval(a.cfg.Catalog.RefreshInterval))
	}
	a.menu = catalog.NewSnapshot(a.store, snapOpts...)
	if err := a.menu.Refresh(ctx); err != nil {
		// Readiness stays red until a later refresh succeeds.
		slog.Warn("app: initial catalog load failed", "err", err)
	} else {
		slog.Info("app: catalog loaded", "drinks", len(a.menu.Drinks()))
	}
	a.checkers = append(a.checkers, health.Checker{Name: "catalog", Check: a.menu.Ready})
	return nil
}

// initCartBus connects the MQTT publisher when a broker is configured.
func (a *App) initCartBus() error {
	if a.bus != nil {
		return nil
	}
	bc := a.cfg.CartBus
	if bc.BrokerURL == "" {
		a.bus = cartbus.Nop{}
		return nil
	}
	mq, err := cartbus.NewMQTT(cartbus.Config{
		BrokerURL:   bc.BrokerURL,
		ClientID:    bc.ClientID,
		Username:    bc.Username,
		Password:    bc.Password,
		TopicPrefix: bc.TopicPrefix,
	})
	if err != nil {
		return err
	}
	a.bus = mq
	a.checkers = append(a.checkers, health.Checker{Name: "cartbus", Check: mq.Ready})
	slog.Info("app: cart bus connected", "broker", bc.BrokerURL)
	return nil
}

func (a *App) buildResolver() *ambiguity.Resolver {
	return ambiguity.New(a.providers.LLM,
		ambiguity.WithTimeout(a.cfg.Engine.AmbiguityTimeout),
		ambiguity.WithTokenBudget(a.cfg.Engine.ContextTokenBudget),
	)
}

// initAPI builds the voice settings store and the HTTP server.
func (a *App) initAPI() {
	a.voice = voicesettings.NewStore(
		voicesettings.FromConfig(a.cfg.Voice, hasElevenLabs(a.cfg.Providers)),
		voicesettings.OnAPIKey(a.useElevenLabsKey),
	)

	a.synthGate = gate.New(
		gate.WithDebounce(0),
		gate.WithCooldown(gate.ChannelSpeechSynthesis, a.cfg.Gate.Cooldowns[gate.ChannelSpeechSynthesis]),
	)

	var mcpHandler http.Handler
	if a.cfg.MCP.Enabled {
		mcpHandler = mcpserver.New(a.engine, a.sessions, a.menu, Version).Handler()
	}

	a.api = httpapi.New(httpapi.Config{
		Engine:       a.engine,
		Sessions:     a.sessions,
		Menu:         a.menu,
		Voice:        a.voice,
		Synth:        a.providers.TTS,
		SynthGate:    a.synthGate,
		SynthTimeout: a.cfg.Engine.SynthesisTimeout,
		MCP:          mcpHandler,
		Health:       health.New(a.checkers...),
	})
}

// useElevenLabsKey puts an ElevenLabs synthesizer built from key in front of
// the configured one.
func (a *App) useElevenLabsKey(key string) {
	if a.providers.ElevenLabs == nil {
		slog.Warn("app: elevenlabs key supplied but no elevenlabs factory is registered")
		return
	}
	p, err := a.providers.ElevenLabs(key)
	if err != nil {
		slog.Warn("app: create elevenlabs synthesizer", "err", err)
		return
	}
	fb := resilience.NewTTSFallback(p, "elevenlabs", resilience.FallbackConfig{})
	if a.providers.TTS != nil {
		fb.AddFallback(a.cfg.Providers.TTS.Name, a.providers.TTS)
	}
	a.api.SetSynthesizer(fb)
	slog.Info("app: elevenlabs synthesizer enabled")
}

func hasElevenLabs(pc config.ProvidersConfig) bool {
	if pc.TTS.Name == "elevenlabs" && pc.TTS.APIKey != "" {
		return true
	}
	for _, e := range pc.TTSFallbacks {
		if e.Name == "elevenlabs" && e.APIKey != "" {
			return true
		}
	}
	return false
}

// Handler returns the HTTP router.
func (a *App) Handler() http.Handler { return a.api.Router() }

// Sessions returns the session manager.
func (a *App) Sessions() *session.Manager { return a.sessions }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP, refreshes the catalog, sweeps idle sessions and watches
// the config file until ctx is cancelled. It then drains the HTTP server
// within the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen %s: %w", a.cfg.Server.ListenAddr, err)
		}
	}
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.menu.Run(gctx) })
	g.Go(func() error { return a.sessions.Run(gctx, session.DefaultSweepInterval) })

	g.Go(func() error {
		slog.Info("app: http server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := a.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("app: http shutdown: %w", err)
		}
		return nil
	})

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.applyConfig)
		if err != nil {
			slog.Warn("app: config hot reload disabled", "err", err)
		} else {
			g.Go(func() error {
				<-gctx.Done()
				w.Stop()
				return nil
			})
		}
	}

	slog.Info("app running", "local_only", a.engine.LocalOnly(), "mcp", a.cfg.MCP.Enabled)
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// applyConfig applies the live-reloadable parts of a changed config.
func (a *App) applyConfig(old, next *config.Config) {
	d := config.Diff(old, next)
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.SlogLevel())
		slog.Info("app: log level changed", "level", d.NewLogLevel)
	}
	if d.CooldownsChanged {
		a.sessions.SetCooldowns(d.NewGate.Cooldowns)
		if cd, ok := d.NewGate.Cooldowns[gate.ChannelSpeechSynthesis]; ok {
			a.synthGate.SetCooldowns(map[string]time.Duration{gate.ChannelSpeechSynthesis: cd})
		}
		slog.Info("app: cooldowns changed", "cooldowns", d.NewGate.Cooldowns)
	}
	if d.VoiceChanged {
		a.voice.Reset(voicesettings.FromConfig(next.Voice, hasElevenLabs(next.Providers)))
		slog.Info("app: voice defaults changed")
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("app: config changes need a restart", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.bus.Close()

		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
