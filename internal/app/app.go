package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"gold-price-alerts/internal/alerting"
	"gold-price-alerts/internal/config"
	"gold-price-alerts/internal/fetcher"
	"gold-price-alerts/internal/metrics"
	"gold-price-alerts/internal/scheduler"
	"gold-price-alerts/internal/service"
	"gold-price-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() fetcher.PriceFetcher {
	src := a.Config.Source
	return fetcher.NewG2G(fetcher.G2GOptions{
		KeywordURL:    src.KeywordURL,
		SearchBaseURL: src.SearchBaseURL,
		OfferBaseURL:  src.OfferBaseURL,
		OfferTitle:    src.OfferTitle,
		ServiceTerm:   src.ServiceTerm,
		BrandTerm:     src.BrandTerm,
		RegionName:    src.RegionName,
		Country:       src.Country,
		Currency:      src.Currency,
		Timeout:       src.RequestTimeout,
		UserAgent:     src.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Discord.Enabled {
		cfg := a.Config.Alerting.Discord
		return alerting.NewDiscordNotifier(cfg.BotToken, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
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
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running polling service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence and alerting disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	var m *metrics.Metrics
	if a.Config.Metrics.Enabled {
		m = metrics.New()
		go func() {
			if err := m.Serve(ctx, a.Config.Metrics.ListenAddr, a.Logger); err != nil {
				a.Logger.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToMinute,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	var sampleStore storage.SampleStore
	var subStore storage.SubscriptionStore
	if store != nil {
		sampleStore = store
		subStore = store
	}

	svc := service.New(a.Config, sched, a.newFetcher(), sampleStore, subStore, a.newNotifier(), m, a.Logger)

	a.Logger.Info().Msg("starting polling service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("polling service stopped")
	return nil
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ChartOptions configure chart generation.
type ChartOptions struct {
	View    string
	OutPath string
}
