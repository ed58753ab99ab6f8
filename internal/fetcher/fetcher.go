package fetcher

import (
	"context"

	"github.com/shopspring/decimal"
)

// Quote is one marketplace price observation with its offer context.
type Quote struct {
	// Price is the lowest listed unit price in the configured currency.
	Price decimal.Decimal
	// Link points at the offer page the price was taken from.
	Link string
	// Source names the offer (used as the notification footer).
	Source string
}

// PriceFetcher retrieves the current marketplace gold price.
type PriceFetcher interface {
	FetchPrice(ctx context.Context) (Quote, error)
}
