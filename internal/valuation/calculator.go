package valuation

import (
	"github.com/shopspring/decimal"

	"moneyfolio/internal/models"
)

// trustUnitLot is the quote lot for Japanese mutual funds: prices are
// per 10,000 units, so quantities scale down by this factor.
var trustUnitLot = decimal.NewFromInt(10000)

// Valuation is one asset's worth in JPY.
type Valuation struct {
	AssetID  string          `json:"assetId"`
	Value    decimal.Decimal `json:"value"`
	Cost     decimal.Decimal `json:"cost"`
	GainLoss decimal.Decimal `json:"gainLoss"`
}

// Metrics are portfolio-level totals in JPY.
type Metrics struct {
	TotalValue decimal.Decimal `json:"totalValue"`
	TotalCost  decimal.Decimal `json:"totalCost"`
	TotalPL    decimal.Decimal `json:"totalPL"`
}

// Div divides a by b, returning zero when b is zero.
func Div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}

// EffectivePrice picks the per-unit price used for valuation:
// currentPrice, else manualPrice, else avgCost, else zero.
func EffectivePrice(a models.Asset) decimal.Decimal {
	if a.CurrentPrice.IsPositive() {
		return a.CurrentPrice
	}
	if a.ManualPrice.IsPositive() {
		return a.ManualPrice
	}
	if a.AvgCost.IsPositive() {
		return a.AvgCost
	}
	return decimal.Zero
}

// EffectiveQuantity is the quantity the per-unit price applies to:
// TRUST quantities are held in base units but quoted per 10,000.
func EffectiveQuantity(a models.Asset) decimal.Decimal {
	if a.Type == models.TypeTrust {
		return a.Quantity.Div(trustUnitLot)
	}
	return a.Quantity
}

// Valuate computes one asset's value, cost and gain/loss in JPY.
//
// Bank/cash assets are worth their balance and carry no gain: cost
// equals value. Everything else is price times quantity, with avgCost
// times quantity as the basis. USD amounts are converted once at usdJpy;
// a non-positive rate degrades USD conversions to zero so totals stay
// computable.
func Valuate(a models.Asset, usdJpy decimal.Decimal) Valuation {
	var value, cost decimal.Decimal

	if a.Type.IsCashLike() {
		value = a.Balance
		cost = value
	} else {
		qty := EffectiveQuantity(a)
		value = EffectivePrice(a).Mul(qty)
		cost = a.AvgCost.Mul(qty)
	}

	if a.Currency == models.USD {
		rate := usdJpy
		if rate.Sign() <= 0 {
			rate = decimal.Zero
		}
		value = value.Mul(rate)
		if a.Type.IsCashLike() {
			// balance already converted through value
			cost = value
		} else {
			cost = cost.Mul(rate)
		}
	}

	return Valuation{
		AssetID:  a.ID,
		Value:    value,
		Cost:     cost,
		GainLoss: value.Sub(cost),
	}
}

// PortfolioMetrics sums Valuate over assets in decimal, so repeated
// small positions never drift from the true total.
func PortfolioMetrics(assets []models.Asset, usdJpy decimal.Decimal) Metrics {
	totalValue := decimal.Zero
	totalCost := decimal.Zero
	for _, a := range assets {
		v := Valuate(a, usdJpy)
		totalValue = totalValue.Add(v.Value)
		totalCost = totalCost.Add(v.Cost)
	}
	return Metrics{
		TotalValue: totalValue,
		TotalCost:  totalCost,
		TotalPL:    totalValue.Sub(totalCost),
	}
}
