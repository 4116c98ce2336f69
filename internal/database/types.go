package database

import "github.com/shopspring/decimal"

// historyRow mirrors the history_entries table; the breakdown stays
// serialized until entryFromRow decodes it.
type historyRow struct {
	Date       string          `db:"date"`
	TotalValue decimal.Decimal `db:"total_value"`
	TotalCost  decimal.Decimal `db:"total_cost"`
	TotalPL    decimal.Decimal `db:"total_pl"`
	Data       string          `db:"data"`
}
