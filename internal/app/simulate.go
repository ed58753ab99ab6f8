package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"gold-price-alerts/internal/fetcher"
	"gold-price-alerts/internal/service"
)

// SimulateAlert runs one poll cycle against a fixed price instead of the
// live source. No sample is persisted, but subscription state commits exactly
// as in a real cycle.
func (a *App) SimulateAlert(ctx context.Context, price decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no notification channel configured")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot evaluate subscriptions")
	}
	if closeStore != nil {
		defer closeStore()
	}

	static := &staticPriceFetcher{price: price}
	svc := service.New(a.Config, nil, static, nil, store, notifier, nil, a.Logger)

	return svc.ProcessTick(ctx, time.Now().UTC())
}

type staticPriceFetcher struct {
	price decimal.Decimal
}

func (s *staticPriceFetcher) FetchPrice(ctx context.Context) (fetcher.Quote, error) {
	return fetcher.Quote{
		Price:  s.price,
		Link:   "https://www.g2g.com/offer",
		Source: "simulated",
	}, nil
}

var _ fetcher.PriceFetcher = (*staticPriceFetcher)(nil)
