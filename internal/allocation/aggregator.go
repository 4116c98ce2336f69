package allocation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"moneyfolio/internal/models"
	"moneyfolio/internal/valuation"
)

// Dimension selects how assets are grouped.
type Dimension string

const (
	ByType     Dimension = "type"
	ByCurrency Dimension = "currency"
	ByAccount  Dimension = "account"
)

// ParseDimension validates a caller-supplied dimension name.
func ParseDimension(s string) (Dimension, error) {
	switch Dimension(s) {
	case ByType, ByCurrency, ByAccount:
		return Dimension(s), nil
	}
	return "", fmt.Errorf("unknown allocation dimension %q", s)
}

var hundred = decimal.NewFromInt(100)

// Aggregate groups the portfolio's JPY values along dim and reports each
// group's rounded total and share of the whole. Groups are summed in
// decimal and sorted by descending value. When the portfolio is worth
// nothing every percentage is zero.
func Aggregate(assets []models.Asset, usdJpy decimal.Decimal, dim Dimension) []models.AllocationItem {
	groups := make(map[string]decimal.Decimal)
	total := decimal.Zero

	for _, a := range assets {
		v := valuation.Valuate(a, usdJpy).Value
		key := groupKey(a, dim)
		groups[key] = groups[key].Add(v)
		total = total.Add(v)
	}

	items := make([]models.AllocationItem, 0, len(groups))
	for name, value := range groups {
		items = append(items, models.AllocationItem{
			Name:       name,
			Value:      value.Round(0),
			Percentage: valuation.Div(value, total).Mul(hundred).Round(1),
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].Value.Equal(items[j].Value) {
			return items[i].Value.GreaterThan(items[j].Value)
		}
		return items[i].Name < items[j].Name
	})
	return items
}

func groupKey(a models.Asset, dim Dimension) string {
	switch dim {
	case ByCurrency:
		return string(a.Currency)
	case ByAccount:
		if a.Account == "" {
			// uncategorized cash surfaces under a stable label
			if a.Type.IsCashLike() {
				return "bank"
			}
			return "Unknown"
		}
		return a.Account
	default:
		return string(a.Type)
	}
}
