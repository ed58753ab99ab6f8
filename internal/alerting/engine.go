package alerting

import (
	"github.com/shopspring/decimal"

	"gold-price-alerts/internal/storage"
)

// Trigger describes one subscriber that must be notified for a new sample.
// Threshold is snapshotted at evaluation time.
type Trigger struct {
	SubscriberID string
	Price        decimal.Decimal
	Threshold    decimal.Decimal
}

// Outcome is the full result of evaluating one sample against the
// subscription table: who to notify and which state updates to commit.
type Outcome struct {
	// Triggers fire a notification and commit last_seen_price = sample price,
	// notified = true.
	Triggers []Trigger
	// Resets commit notified = false for subscribers whose threshold the
	// price has risen back above. Their last_seen_price is left untouched, so
	// a later drop to the exact price of a prior trigger stays silent until
	// the price moves again.
	Resets []storage.Subscription
}

// Evaluate applies the falling-threshold, change-gated rule to one new
// sample. A subscriber triggers when the price is at or below their threshold
// and differs from the price they were last notified at; the change gate
// suppresses repeats for an unchanged price only, not for a different price
// that is still below threshold.
func Evaluate(price decimal.Decimal, subs []storage.Subscription) Outcome {
	var out Outcome
	for _, sub := range subs {
		switch {
		case sub.Threshold.GreaterThanOrEqual(price):
			if !sub.LastSeenPrice.Equal(price) {
				out.Triggers = append(out.Triggers, Trigger{
					SubscriberID: sub.SubscriberID,
					Price:        price,
					Threshold:    sub.Threshold,
				})
			}
		default:
			if sub.Notified {
				out.Resets = append(out.Resets, sub)
			}
		}
	}
	return out
}
