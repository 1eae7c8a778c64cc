package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"distress-detector/internal/alerting"
	"distress-detector/internal/cache"
	"distress-detector/internal/config"
	"distress-detector/internal/market"
	"distress-detector/internal/scheduler"
	"distress-detector/internal/scoring"
	"distress-detector/internal/service"
	"distress-detector/internal/storage"
)

// ErrNoDatabase is returned by commands that need persistence when
// database.dsn is empty.
var ErrNoDatabase = errors.New("database.dsn 未配置")

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if a.Config.Database.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
	}
	return store, store.Close, nil
}

// requireStore is openStore for commands that cannot work without a database.
func (a *App) requireStore(ctx context.Context) (*storage.Store, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, ErrNoDatabase
	}
	return store, closeStore, nil
}

func (a *App) newEngine() (*scoring.Engine, error) {
	if len(a.Config.Scoring.Keywords) == 0 {
		return scoring.Default(), nil
	}
	lexicon, err := scoring.NewLexicon(a.Config.Scoring.Keywords)
	if err != nil {
		return nil, fmt.Errorf("scoring.keywords: %w", err)
	}
	return scoring.New(lexicon), nil
}

// newAverages builds the market average provider over pricer, wrapped in
// the configured cache backend.
func (a *App) newAverages(pricer market.AveragePricer) (market.AverageProvider, func(), error) {
	direct := market.NewStoreProvider(pricer)
	cfg := a.Config.Market

	var store cache.Store
	closer := func() {}
	switch strings.ToLower(cfg.CacheBackend) {
	case "", "none":
		return direct, closer, nil
	case "memory":
		store = cache.NewMemoryStore()
	case "redis":
		rs := cache.NewRedisStore(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store = rs
		closer = func() {
			if err := rs.Close(); err != nil {
				a.Logger.Warn().Err(err).Msg("close redis")
			}
		}
	default:
		return nil, nil, fmt.Errorf("unsupported market.cache_backend %q", cfg.CacheBackend)
	}
	return market.NewCachedProvider(direct, store, cfg.CacheTTL, a.Logger), closer, nil
}

func (a *App) newDispatcher(prefs alerting.PreferenceLister, recorder alerting.DeliveryRecorder) *alerting.Dispatcher {
	cfg := a.Config.Alerting
	opts := alerting.Options{
		Preferences: prefs,
		Recorder:    recorder,
		Workers:     cfg.Workers,
		Timeout:     cfg.RequestTimeout,
	}
	if cfg.Email.Enabled {
		opts.Email = alerting.NewSMTPEmailSender(alerting.SMTPOptions{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			Timeout:  cfg.RequestTimeout,
		}, a.Logger)
	}
	if cfg.SMS.Enabled {
		opts.SMS = alerting.NewHTTPSMSSender(cfg.SMS.BaseURL, cfg.SMS.APIToken, cfg.SMS.Sender, cfg.RequestTimeout, a.Logger)
	}
	if opts.Email == nil && opts.SMS == nil {
		a.Logger.Warn().Msg("no alert channel enabled; alerts will only be logged")
	}
	return alerting.NewDispatcher(opts, a.Logger)
}

// newService wires the listing service over store. sched may be nil for
// one-shot commands.
func (a *App) newService(store *storage.Store, sched *scheduler.Scheduler) (*service.Service, func(), error) {
	engine, err := a.newEngine()
	if err != nil {
		return nil, nil, err
	}
	averages, closeAverages, err := a.newAverages(store)
	if err != nil {
		return nil, nil, err
	}

	svc := service.New(service.Options{
		Threshold:     a.Config.Alerting.Threshold,
		AlertsEnabled: a.Config.Alerting.Enabled,
		LockKey:       a.Config.Scheduler.AdvisoryLockKey,
	}, engine, store, averages, a.newDispatcher(store, store), sched, a.Logger)
	return svc, closeAverages, nil
}

// Run executes the long-running rescore service until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sched, err := scheduler.New(scheduler.Options{
		Interval:      a.Config.Scheduler.Interval,
		AlignToBucket: a.Config.Scheduler.AlignToBucket,
		StartupDelay:  a.Config.Scheduler.StartupDelay,
		RunOnStart:    true,
	}, a.Logger)
	if err != nil {
		return err
	}

	svc, closeService, err := a.newService(store, sched)
	if err != nil {
		return err
	}
	defer closeService()

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting rescore service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("rescore service stopped")
	return nil
}

// Migrate applies the embedded schema.
func (a *App) Migrate(ctx context.Context) error {
	if a.Config.Database.DSN == "" {
		return ErrNoDatabase
	}
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return err
	}
	store := storage.NewStore(pool)
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	a.Logger.Info().Msg("schema applied")
	return nil
}
