package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AssetType string

const (
	TypeJPStock AssetType = "JP_STOCK"
	TypeUSStock AssetType = "US_STOCK"
	TypeTrust   AssetType = "TRUST"
	TypeETF     AssetType = "ETF"
	TypeBank    AssetType = "bank"
	TypeCash    AssetType = "cash"
	TypeCredit  AssetType = "credit"
	TypeOther   AssetType = "other"
)

// IsCashLike reports whether the asset is valued by its balance rather
// than by quantity and price.
func (t AssetType) IsCashLike() bool {
	return t == TypeBank || t == TypeCash
}

type Currency string

const (
	JPY Currency = "JPY"
	USD Currency = "USD"
)

// Asset is one holding. Zero decimals mean "not set"; which fields are
// authoritative depends on Type: bank/cash assets carry a Balance, the
// rest carry Quantity and per-unit prices.
type Asset struct {
	ID               string          `db:"id" json:"id"`
	Ticker           string          `db:"ticker" json:"ticker,omitempty"`
	Name             string          `db:"name" json:"name"`
	Type             AssetType       `db:"type" json:"type"`
	Account          string          `db:"account" json:"account,omitempty"`
	Currency         Currency        `db:"currency" json:"currency"`
	Quantity         decimal.Decimal `db:"quantity" json:"quantity"`
	AvgCost          decimal.Decimal `db:"avg_cost" json:"avgCost"`
	CurrentPrice     decimal.Decimal `db:"current_price" json:"currentPrice"`
	ManualPrice      decimal.Decimal `db:"manual_price" json:"manualPrice"`
	Balance          decimal.Decimal `db:"balance" json:"balance"`
	DividendRate     decimal.Decimal `db:"dividend_rate" json:"dividendRate"`
	DividendYield    decimal.Decimal `db:"dividend_yield" json:"dividendYield"`
	NextDividendDate string          `db:"next_dividend_date" json:"nextDividendDate,omitempty"`
	IsArchived       bool            `db:"is_archived" json:"isArchived"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// Quote is a market quote for one ticker. Dividend fields are optional;
// a NullDecimal with Valid=false must not overwrite a stored value.
type Quote struct {
	Ticker           string              `json:"ticker"`
	Price            decimal.Decimal     `json:"price"`
	Currency         Currency            `json:"currency"`
	DividendRate     decimal.NullDecimal `json:"dividendRate"`
	DividendYield    decimal.NullDecimal `json:"dividendYield"`
	NextDividendDate string              `json:"nextDividendDate,omitempty"`
}

// PriceUpdate is the persisted outcome of a successful quote refresh.
type PriceUpdate struct {
	Price            decimal.Decimal
	DividendRate     decimal.NullDecimal
	DividendYield    decimal.NullDecimal
	NextDividendDate string
}

// HistoryEntry is one daily portfolio snapshot, keyed by calendar date
// (YYYY-MM-DD). ByType carries the per-asset-type value breakdown used
// by stacked history charts.
type HistoryEntry struct {
	Date       string                     `json:"date"`
	TotalValue decimal.Decimal            `json:"totalValue"`
	TotalCost  decimal.Decimal            `json:"totalCost"`
	TotalPL    decimal.Decimal            `json:"totalPL"`
	ByType     map[string]decimal.Decimal `json:"byType,omitempty"`
}

// AllocationItem is one group of an allocation breakdown. Value is
// rounded to whole yen, Percentage to one decimal place.
type AllocationItem struct {
	Name       string          `json:"name"`
	Value      decimal.Decimal `json:"value"`
	Percentage decimal.Decimal `json:"percentage"`
}
