package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"gold-price-alerts/internal/alerting"
	"gold-price-alerts/internal/config"
	"gold-price-alerts/internal/fetcher"
	"gold-price-alerts/internal/metrics"
	"gold-price-alerts/internal/scheduler"
	"gold-price-alerts/internal/storage"
)

var (
	// ErrInvalidThreshold rejects non-positive alert thresholds at the
	// management surface, before anything reaches the engine.
	ErrInvalidThreshold = errors.New("service: threshold must be greater than zero")
	// ErrInvalidSubscriber rejects empty subscriber ids.
	ErrInvalidSubscriber = errors.New("service: subscriber id must not be empty")
)

// Service orchestrates fetching, persistence, and alerting.
type Service struct {
	scheduler *scheduler.Scheduler
	fetcher   fetcher.PriceFetcher
	samples   storage.SampleStore
	subs      storage.SubscriptionStore
	notifier  alerting.Notifier
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	fetchTimeout time.Duration
	alertsOn     bool
	locker       storage.AdvisoryLocker
	lockKey      int64
}

// New constructs the polling service.
func New(cfg *config.Config, sched *scheduler.Scheduler, priceFetcher fetcher.PriceFetcher, samples storage.SampleStore, subs storage.SubscriptionStore, notifier alerting.Notifier, m *metrics.Metrics, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := samples.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:    sched,
		fetcher:      priceFetcher,
		samples:      samples,
		subs:         subs,
		notifier:     notifier,
		metrics:      m,
		logger:       logger.With().Str("component", "service").Logger(),
		fetchTimeout: cfg.Source.RequestTimeout,
		alertsOn:     cfg.Alerting.Enabled,
		locker:       locker,
		lockKey:      cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the polling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick executes one poll cycle: fetch the price, persist the sample,
// evaluate alerts, and commit subscription state. The scheduler guarantees
// cycles never interleave in-process; the advisory lock extends that across
// instances sharing one store.
func (s *Service) ProcessTick(ctx context.Context, tick time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", tick).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeTick(ctx, tick)
}

func (s *Service) executeTick(ctx context.Context, tick time.Time) error {
	s.metrics.CycleStarted()

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	quote, err := s.fetcher.FetchPrice(fetchCtx)
	cancel()
	if err != nil {
		// no partial sample is ever written; the next tick retries
		s.metrics.FetchFailed()
		return fmt.Errorf("fetch price: %w", err)
	}

	if s.samples != nil {
		sample := storage.Sample{Timestamp: tick.UTC(), Price: quote.Price}
		if err := s.samples.AppendSample(ctx, sample); err != nil {
			return fmt.Errorf("persist sample: %w", err)
		}
		s.metrics.SampleRecorded(quote.Price)
	}

	s.logger.Info().Time("tick", tick).Str("price", quote.Price.String()).Msg("sample recorded")

	if !s.alertsOn || s.subs == nil {
		return nil
	}
	return s.evaluateAlerts(ctx, quote)
}

func (s *Service) evaluateAlerts(ctx context.Context, quote fetcher.Quote) error {
	subs, err := s.subs.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	outcome := alerting.Evaluate(quote.Price, subs)

	for _, trig := range outcome.Triggers {
		if s.notifier != nil {
			alert := alerting.Alert{
				SubscriberID: trig.SubscriberID,
				Price:        trig.Price,
				Threshold:    trig.Threshold,
				PriceLink:    quote.Link,
				Footer:       quote.Source,
			}
			if err := s.notifier.Notify(ctx, alert); err != nil {
				// best effort: committed state is authoritative regardless
				// of delivery, and this price is never retried
				s.metrics.DispatchFailed()
				s.logger.Error().Err(err).Str("subscriber", trig.SubscriberID).Msg("failed to dispatch alert")
			} else {
				s.metrics.AlertDispatched()
			}
		}
		if err := s.subs.UpdateSubscriptionState(ctx, trig.SubscriberID, trig.Price, true); err != nil {
			s.logger.Error().Err(err).Str("subscriber", trig.SubscriberID).Msg("failed to commit trigger state")
		}
	}

	for _, sub := range outcome.Resets {
		if err := s.subs.UpdateSubscriptionState(ctx, sub.SubscriberID, sub.LastSeenPrice, false); err != nil {
			s.logger.Error().Err(err).Str("subscriber", sub.SubscriberID).Msg("failed to commit reset state")
		}
	}

	if len(outcome.Triggers) > 0 || len(outcome.Resets) > 0 {
		s.logger.Info().
			Int("triggered", len(outcome.Triggers)).
			Int("reset", len(outcome.Resets)).
			Str("price", quote.Price.String()).
			Msg("alerts evaluated")
	}
	return nil
}

// Subscribe creates or replaces the subscriber's alert, resetting the
// engine-owned state. Calling it twice with the same threshold is a no-op.
func (s *Service) Subscribe(ctx context.Context, subscriberID string, threshold decimal.Decimal) error {
	if subscriberID == "" {
		return ErrInvalidSubscriber
	}
	if !threshold.IsPositive() {
		return ErrInvalidThreshold
	}
	sub := storage.Subscription{
		SubscriberID:  subscriberID,
		Threshold:     threshold,
		LastSeenPrice: decimal.Zero,
		Notified:      false,
	}
	if err := s.subs.UpsertSubscription(ctx, sub); err != nil {
		return err
	}
	s.logger.Info().Str("subscriber", subscriberID).Str("threshold", threshold.String()).Msg("subscription set")
	return nil
}

// Unsubscribe deletes the subscriber's alert. Unknown subscribers are ignored.
func (s *Service) Unsubscribe(ctx context.Context, subscriberID string) error {
	if subscriberID == "" {
		return ErrInvalidSubscriber
	}
	if err := s.subs.DeleteSubscription(ctx, subscriberID); err != nil {
		return err
	}
	s.logger.Info().Str("subscriber", subscriberID).Msg("subscription cleared")
	return nil
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
