package history

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"moneyfolio/internal/allocation"
	"moneyfolio/internal/models"
	"moneyfolio/internal/valuation"
)

// DateFormat is the calendar-date key for snapshots.
const DateFormat = "2006-01-02"

// Store persists daily snapshots keyed by date.
type Store interface {
	GetHistoryEntry(ctx context.Context, date string) (models.HistoryEntry, bool, error)
	UpsertHistoryEntry(ctx context.Context, entry models.HistoryEntry) error
	ListRecentHistory(ctx context.Context, n int) ([]models.HistoryEntry, error)
}

// PortfolioSource supplies the non-archived portfolio and the USD/JPY
// rate to value it with.
type PortfolioSource interface {
	PortfolioWithRate(ctx context.Context) ([]models.Asset, decimal.Decimal, error)
}

// Recorder writes at most one valuation snapshot per calendar day.
type Recorder struct {
	store     Store
	portfolio PortfolioSource
	log       *logrus.Logger
	now       func() time.Time
}

func NewRecorder(store Store, portfolio PortfolioSource, log *logrus.Logger) *Recorder {
	return &Recorder{store: store, portfolio: portfolio, log: log, now: time.Now}
}

// Record persists today's snapshot. Without force it is a no-op when the
// date already has one, so repeated background triggers on the same day
// write a single entry. With force the entry is recomputed and
// overwritten.
func (r *Recorder) Record(ctx context.Context, force bool) error {
	date := r.now().Format(DateFormat)

	if !force {
		if _, exists, err := r.store.GetHistoryEntry(ctx, date); err != nil {
			return err
		} else if exists {
			r.log.Debugf("history for %s already recorded, skipping", date)
			return nil
		}
	}

	assets, usdJpy, err := r.portfolio.PortfolioWithRate(ctx)
	if err != nil {
		return err
	}

	metrics := valuation.PortfolioMetrics(assets, usdJpy)
	byType := make(map[string]decimal.Decimal)
	for _, item := range allocation.Aggregate(assets, usdJpy, allocation.ByType) {
		byType[item.Name] = item.Value
	}

	entry := models.HistoryEntry{
		Date:       date,
		TotalValue: metrics.TotalValue,
		TotalCost:  metrics.TotalCost,
		TotalPL:    metrics.TotalPL,
		ByType:     byType,
	}
	if err := r.store.UpsertHistoryEntry(ctx, entry); err != nil {
		return err
	}
	r.log.Infof("recorded history for %s: value=%s cost=%s", date, metrics.TotalValue, metrics.TotalCost)
	return nil
}

// History returns the most recent days snapshots in ascending date
// order. An empty store triggers one recording pass first so charts
// never render empty.
func (r *Recorder) History(ctx context.Context, days int) ([]models.HistoryEntry, error) {
	if days <= 0 {
		days = 30
	}
	entries, err := r.store.ListRecentHistory(ctx, days)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		return entries, nil
	}

	if err := r.Record(ctx, false); err != nil {
		return nil, err
	}
	return r.store.ListRecentHistory(ctx, days)
}
