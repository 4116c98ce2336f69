package quote

import (
	"context"
	"errors"

	"moneyfolio/internal/models"
)

// ErrNoPrice is returned when a source responds but carries no usable
// (positive) price.
var ErrNoPrice = errors.New("quote: no price data")

// Provider fetches a market quote for one ticker. Implementations may be
// slow and may fail transiently; callers must treat a non-positive price
// as a failure.
type Provider interface {
	Fetch(ctx context.Context, ticker string) (models.Quote, error)
}

// Func adapts a function to the Provider interface.
type Func func(ctx context.Context, ticker string) (models.Quote, error)

func (f Func) Fetch(ctx context.Context, ticker string) (models.Quote, error) {
	return f(ctx, ticker)
}
