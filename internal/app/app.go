// Package app wires all voxbridge subsystems into a running service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP and processes messages until the context is
// cancelled, and Shutdown releases what New acquired.
//
// For testing, inject doubles via functional options (WithStore, WithSender,
// WithTranscoder). When an option is not provided, New creates real
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

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxbridge/internal/bot"
	"github.com/MrWong99/voxbridge/internal/config"
	"github.com/MrWong99/voxbridge/internal/contact"
	"github.com/MrWong99/voxbridge/internal/contact/dynamo"
	"github.com/MrWong99/voxbridge/internal/contact/postgres"
	"github.com/MrWong99/voxbridge/internal/dispatch"
	"github.com/MrWong99/voxbridge/internal/health"
	"github.com/MrWong99/voxbridge/internal/langresolve"
	"github.com/MrWong99/voxbridge/internal/media"
	"github.com/MrWong99/voxbridge/internal/menu"
	"github.com/MrWong99/voxbridge/internal/messaging"
	"github.com/MrWong99/voxbridge/internal/messaging/twilio"
	"github.com/MrWong99/voxbridge/internal/observe"
	"github.com/MrWong99/voxbridge/internal/speech"
	"github.com/MrWong99/voxbridge/internal/translate"
	"github.com/MrWong99/voxbridge/internal/voicecatalog"
)

const (
	mediaSweepInterval = time.Minute
	serverShutdownWait = 10 * time.Second
)

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics

	store      contact.Store
	sender     messaging.Sender
	transcoder speech.Transcoder
	catalog    *voicecatalog.Catalog
	bot        *bot.Bot
	media      *media.Store
	dispatcher *dispatch.Dispatcher
	health     *health.Handler
	handler    http.Handler
	server     *http.Server
	listener   net.Listener

	levelVar      *slog.LevelVar
	metricsRoute  http.Handler
	configPath    string
	watcher       *config.Watcher
	watchInterval time.Duration

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a contact store instead of creating one from config.
func WithStore(s contact.Store) Option {
	return func(a *App) { a.store = s }
}

// WithSender injects the outbound message sender.
func WithSender(s messaging.Sender) Option {
	return func(a *App) { a.sender = s }
}

// WithTranscoder replaces the ffmpeg transcoder.
func WithTranscoder(t speech.Transcoder) Option {
	return func(a *App) { a.transcoder = t }
}

// WithLevelVar lets hot reload change the log level of the installed handler.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.levelVar = v }
}

// WithMetricsHandler mounts h at GET /metrics when observe.metrics is set.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsRoute = h }
}

// WithConfigWatch enables hot reload of the file at path.
func WithConfigWatch(path string, interval time.Duration) Option {
	return func(a *App) {
		a.configPath = path
		a.watchInterval = interval
	}
}

// WithListener serves on l instead of listening on server.listen_addr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers come
// from [BuildProviders]; secret references in cfg must already be resolved.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil {
		return nil, errors.New("app: an llm provider is required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		metrics:   observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Contact store ─────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Outbound sender ───────────────────────────────────────────────
	if err := a.initSender(); err != nil {
		return nil, fmt.Errorf("app: init sender: %w", err)
	}

	// ── 3. Bot: translation, speech, state machine ───────────────────────
	if err := a.initBot(); err != nil {
		return nil, fmt.Errorf("app: init bot: %w", err)
	}

	// ── 4. Dispatcher + media ────────────────────────────────────────────
	a.initDispatch()

	// ── 5. Health ────────────────────────────────────────────────────────
	a.initHealth()

	// ── 6. HTTP ──────────────────────────────────────────────────────────
	a.initHTTP()

	// ── 7. Hot reload ────────────────────────────────────────────────────
	if a.configPath != "" {
		var wopts []config.WatcherOption
		if a.watchInterval > 0 {
			wopts = append(wopts, config.WithInterval(a.watchInterval))
		}
		w, err := config.NewWatcher(a.configPath, a.onConfigChange, wopts...)
		if err != nil {
			return nil, fmt.Errorf("app: watch config: %w", err)
		}
		a.watcher = w
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	switch a.cfg.Store.Backend {
	case config.StorePostgres:
		st, closeFn, err := postgres.Open(ctx, a.cfg.Store.PostgresDSN)
		if err != nil {
			return err
		}
		if err := st.Migrate(ctx); err != nil {
			closeFn()
			return err
		}
		a.store = st
		a.closers = append(a.closers, func() error {
			closeFn()
			return nil
		})
		slog.Info("contact store ready", "backend", "postgres")

	case config.StoreDynamo:
		st, err := dynamo.NewAWS(ctx, a.cfg.Store.DynamoTable, a.cfg.Store.DynamoRegion)
		if err != nil {
			return err
		}
		a.store = st
		slog.Info("contact store ready", "backend", "dynamodb", "table", a.cfg.Store.DynamoTable)

	default:
		a.store = contact.NewMemStore()
		slog.Info("contact store ready", "backend", "memory")
	}
	return nil
}

func (a *App) initSender() error {
	if a.sender != nil {
		return nil
	}
	var opts []twilio.Option
	if u := a.cfg.Messaging.APIBaseURL; u != "" {
		opts = append(opts, twilio.WithBaseURL(u))
	}
	c, err := twilio.New(a.cfg.Messaging.AccountSID, a.cfg.Messaging.AuthToken, a.cfg.Messaging.From, opts...)
	if err != nil {
		return err
	}
	a.sender = c
	return nil
}

func (a *App) initBot() error {
	settings, err := BotSettings(a.cfg.Bot)
	if err != nil {
		return err
	}

	// Interface values stay nil unless the provider exists.
	var (
		picker translate.VoicePicker
		sp     bot.SpeechProcessor
	)
	if a.providers.TTS != nil {
		a.catalog = voicecatalog.New(a.providers.TTS)
		picker = a.catalog
	}

	topts := []translate.Option{
		translate.WithLanguageNamer(settings.Languages),
		translate.WithMetrics(a.metrics),
	}
	if a.cfg.Bot.DefaultVoice != "" {
		topts = append(topts, translate.WithDefaultVoice(a.cfg.Bot.DefaultVoice, a.cfg.Bot.DefaultLocale))
	}
	tr := translate.New(a.providers.LLM, a.providers.TTS, picker, topts...)

	if a.providers.STT != nil {
		transcoder := a.transcoder
		if transcoder == nil {
			transcoder = speech.FFmpeg{Path: a.cfg.Speech.FFmpegPath}
		}
		sp = speech.New(a.providers.STT, transcoder,
			speech.WithCredentials(a.cfg.Messaging.AccountSID, a.cfg.Messaging.AuthToken),
			speech.WithTempDir(a.cfg.Speech.TempDir),
			speech.WithMaxDownloadBytes(a.cfg.Speech.MaxDownloadBytes),
			speech.WithDetector(tr),
			speech.WithLanguageNamer(settings.Languages),
			speech.WithMetrics(a.metrics),
		)
	}

	b, err := bot.New(a.store, sp, tr, bot.WithSettings(settings))
	if err != nil {
		return err
	}
	a.bot = b
	return nil
}

func (a *App) initDispatch() {
	a.media = media.New(a.cfg.Media.TTL)

	opts := []dispatch.Option{dispatch.WithMetrics(a.metrics)}
	if a.cfg.Server.PublicBaseURL != "" {
		opts = append(opts, dispatch.WithMediaHost(a.media))
	}
	a.dispatcher = dispatch.New(a.bot, a.sender, dispatch.Config{
		Workers:           a.cfg.Dispatch.Workers,
		QueueSize:         a.cfg.Dispatch.QueueSize,
		TaskTimeout:       a.cfg.Dispatch.TaskTimeout,
		PublicBaseURL:     a.cfg.Server.PublicBaseURL,
		AuthToken:         a.cfg.Messaging.AuthToken,
		ValidateSignature: a.cfg.Messaging.ValidateSignature,
	}, opts...)
}

func (a *App) initHealth() {
	var checks []health.Checker
	if p, ok := a.store.(contact.Pinger); ok {
		checks = append(checks, health.Checker{Name: "store", Check: p.Ping})
	}
	if a.catalog != nil {
		cat := a.catalog
		checks = append(checks, health.Checker{
			Name: "voices",
			Check: func(ctx context.Context) error {
				if cat.Loaded() {
					return nil
				}
				return cat.Load(ctx)
			},
		})
	}
	a.health = health.New(checks...)
}

func (a *App) initHTTP() {
	mux := http.NewServeMux()
	a.dispatcher.Register(mux)
	a.media.Register(mux)
	a.health.Register(mux)
	if a.cfg.Observe.Metrics && a.metricsRoute != nil {
		mux.Handle("GET /metrics", a.metricsRoute)
	}
	a.handler = observe.Middleware(a.metrics)(mux)
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// BotSettings converts the bot config section into running settings.
func BotSettings(b config.BotConfig) (bot.Settings, error) {
	policy, err := langresolve.ParsePolicy(b.UnknownLanguagePolicy)
	if err != nil {
		return bot.Settings{}, err
	}
	langs, err := menu.NewCatalog(b.Languages)
	if err != nil {
		return bot.Settings{}, err
	}
	return bot.Settings{
		ResetKeyword:          b.ResetKeyword,
		FreeAllowance:         b.FreeAllowance,
		PaywallURL:            b.PaywallURL,
		UnknownLanguagePolicy: policy,
		VoicePreferenceStep:   b.VoiceStepEnabled(),
		Languages:             langs,
	}, nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the full HTTP handler including middleware.
func (a *App) Handler() http.Handler { return a.handler }

// Bot returns the running state machine.
func (a *App) Bot() *bot.Bot { return a.bot }

// ─── Hot reload ──────────────────────────────────────────────────────────────

func (a *App) onConfigChange(_, _ *config.Config, d config.ConfigDiff) {
	a.ApplyDiff(d)
}

// ApplyDiff applies the hot-reloadable part of d to the running service.
func (a *App) ApplyDiff(d config.ConfigDiff) {
	if d.LogLevelChanged && a.levelVar != nil {
		a.levelVar.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.BotChanged {
		settings, err := BotSettings(d.NewBot)
		if err != nil {
			slog.Warn("ignoring invalid bot settings", "err", err)
			return
		}
		a.bot.UpdateSettings(settings)
		slog.Info("bot settings reloaded",
			"reset_keyword", settings.ResetKeyword,
			"free_allowance", settings.FreeAllowance,
			"voice_step", settings.VoicePreferenceStep,
			"languages", len(settings.Languages.Languages()),
		)
		if d.NewBot.DefaultVoice != a.cfg.Bot.DefaultVoice || d.NewBot.DefaultLocale != a.cfg.Bot.DefaultLocale {
			slog.Warn("bot.default_voice changes take effect after a restart")
		}
	}
}

// SlogLevel maps a config level to slog. Unknown levels map to info.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and processes messages until ctx is cancelled. It returns
// nil after a clean stop.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.dispatcher.Run(gctx) })

	g.Go(func() error {
		a.media.Run(gctx, mediaSweepInterval)
		return nil
	})

	if a.catalog != nil {
		g.Go(func() error {
			if err := a.catalog.Load(gctx); err != nil {
				slog.Warn("voice catalog warm-up failed; will retry on demand", "err", err)
			}
			return nil
		})
	}

	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}

	g.Go(func() error {
		var err error
		tls := a.cfg.Server.TLS
		switch {
		case a.listener != nil && tls != nil:
			err = a.server.ServeTLS(a.listener, tls.CertFile, tls.KeyFile)
		case a.listener != nil:
			err = a.server.Serve(a.listener)
		case tls != nil:
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		default:
			err = a.server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: http server: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), serverShutdownWait)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	slog.Info("app running", "listen_addr", a.cfg.Server.ListenAddr, "store", a.storeName())
	return g.Wait()
}

func (a *App) storeName() string {
	if a.cfg.Store.Backend == "" {
		return string(config.StoreMemory)
	}
	return string(a.cfg.Store.Backend)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
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
