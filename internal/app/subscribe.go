package app

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"gold-price-alerts/internal/service"
)

// Subscribe sets (or replaces) a price alert for one subscriber.
func (a *App) Subscribe(ctx context.Context, subscriberID string, threshold decimal.Decimal) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot manage subscriptions")
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc := service.New(a.Config, nil, nil, nil, store, nil, nil, a.Logger)
	return svc.Subscribe(ctx, subscriberID, threshold)
}

// Unsubscribe clears a subscriber's price alert.
func (a *App) Unsubscribe(ctx context.Context, subscriberID string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot manage subscriptions")
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc := service.New(a.Config, nil, nil, nil, store, nil, nil, a.Logger)
	return svc.Unsubscribe(ctx, subscriberID)
}
