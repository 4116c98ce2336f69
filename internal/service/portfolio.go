package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"moneyfolio/internal/allocation"
	"moneyfolio/internal/models"
	"moneyfolio/internal/valuation"
)

// AssetStore is the portfolio read side.
type AssetStore interface {
	ListPortfolio(ctx context.Context) ([]models.Asset, error)
}

// RateSource supplies the USD/JPY rate.
type RateSource interface {
	Rate(ctx context.Context) decimal.Decimal
}

// PortfolioView is the priced portfolio handed to callers: the assets
// plus the rate they were valued at.
type PortfolioView struct {
	Assets  []models.Asset    `json:"assets"`
	UsdJpy  decimal.Decimal   `json:"usdJpy"`
	Metrics valuation.Metrics `json:"metrics"`
}

// Portfolio reads the live portfolio with prices and derives
// allocations from it. Prices are durably persisted by the syncer
// before its refresh returns, so every read here observes them; no
// read-side cache exists to invalidate.
type Portfolio struct {
	store AssetStore
	rates RateSource
	log   *logrus.Logger
}

func NewPortfolio(store AssetStore, rates RateSource, log *logrus.Logger) *Portfolio {
	return &Portfolio{store: store, rates: rates, log: log}
}

// WithPrices returns the non-archived portfolio, the USD/JPY rate and
// the decimal totals computed from both.
func (s *Portfolio) WithPrices(ctx context.Context) (PortfolioView, error) {
	assets, usdJpy, err := s.PortfolioWithRate(ctx)
	if err != nil {
		return PortfolioView{}, err
	}
	return PortfolioView{
		Assets:  assets,
		UsdJpy:  usdJpy,
		Metrics: valuation.PortfolioMetrics(assets, usdJpy),
	}, nil
}

// PortfolioWithRate returns the raw assets and rate. It is the
// portfolio source behind the history recorder.
func (s *Portfolio) PortfolioWithRate(ctx context.Context) ([]models.Asset, decimal.Decimal, error) {
	assets, err := s.store.ListPortfolio(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return assets, s.rates.Rate(ctx), nil
}

// Allocation groups the priced portfolio along dim.
func (s *Portfolio) Allocation(ctx context.Context, dim allocation.Dimension) ([]models.AllocationItem, error) {
	assets, usdJpy, err := s.PortfolioWithRate(ctx)
	if err != nil {
		return nil, err
	}
	return allocation.Aggregate(assets, usdJpy, dim), nil
}
