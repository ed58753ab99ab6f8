package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sample is one timestamped price observation. Samples are append-only and
// written by a single poller in wall-clock order; the store does not enforce
// ordering itself.
type Sample struct {
	Timestamp time.Time
	Price     decimal.Decimal
}

// Subscription holds a subscriber's alert threshold plus the engine-owned
// notification state. LastSeenPrice and Notified are mutated only by the
// alert commit path; the subscribe surface always writes them as zero/false.
type Subscription struct {
	SubscriberID  string
	Threshold     decimal.Decimal
	LastSeenPrice decimal.Decimal
	Notified      bool
}
