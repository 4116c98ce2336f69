package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"moneyfolio/internal/models"
)

// ErrDuplicateAsset is returned when an asset id collides on create.
var ErrDuplicateAsset = fmt.Errorf("asset already exists")

type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

// assetColumns folds nullable columns to zero values so rows scan
// straight into models.Asset.
const assetColumns = `
	id, COALESCE(ticker,'') AS ticker, name, type, COALESCE(account,'') AS account, currency,
	COALESCE(quantity,0) AS quantity, COALESCE(avg_cost,0) AS avg_cost,
	COALESCE(current_price,0) AS current_price, COALESCE(manual_price,0) AS manual_price,
	COALESCE(balance,0) AS balance, COALESCE(dividend_rate,0) AS dividend_rate,
	COALESCE(dividend_yield,0) AS dividend_yield, COALESCE(next_dividend_date,'') AS next_dividend_date,
	is_archived, created_at, updated_at`

func (r *Repo) CreateAsset(ctx context.Context, a models.Asset) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Currency == "" {
		a.Currency = models.JPY
	}
	q := `INSERT INTO assets
		(id, ticker, name, type, account, currency, quantity, avg_cost, current_price, manual_price,
		 balance, dividend_rate, dividend_yield, next_dividend_date, is_archived, created_at, updated_at)
		VALUES ($1, NULLIF($2,''), $3, $4, NULLIF($5,''), $6, $7::numeric, $8::numeric, $9::numeric, $10::numeric,
		 $11::numeric, $12::numeric, $13::numeric, NULLIF($14,''), $15, now(), now())`
	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.Ticker, a.Name, a.Type, a.Account, a.Currency,
		a.Quantity.String(), a.AvgCost.String(), a.CurrentPrice.String(), a.ManualPrice.String(),
		a.Balance.String(), a.DividendRate.String(), a.DividendYield.String(), a.NextDividendDate,
		a.IsArchived)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return "", ErrDuplicateAsset
		}
		return "", err
	}
	return a.ID, nil
}

func (r *Repo) GetAsset(ctx context.Context, id string) (models.Asset, error) {
	var a models.Asset
	err := r.db.GetContext(ctx, &a, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id)
	return a, err
}

func (r *Repo) ListAssets(ctx context.Context, includeArchived bool) ([]models.Asset, error) {
	q := `SELECT ` + assetColumns + ` FROM assets`
	if !includeArchived {
		q += ` WHERE is_archived = FALSE`
	}
	q += ` ORDER BY created_at DESC`
	return r.queryAssets(ctx, q)
}

// ListPortfolio returns every non-archived asset.
func (r *Repo) ListPortfolio(ctx context.Context) ([]models.Asset, error) {
	return r.ListAssets(ctx, false)
}

// ListActiveWithTickers returns the refreshable slice of the portfolio:
// non-archived assets that carry a ticker.
func (r *Repo) ListActiveWithTickers(ctx context.Context) ([]models.Asset, error) {
	q := `SELECT ` + assetColumns + ` FROM assets
		WHERE ticker IS NOT NULL AND ticker <> '' AND is_archived = FALSE
		ORDER BY created_at DESC`
	return r.queryAssets(ctx, q)
}

func (r *Repo) queryAssets(ctx context.Context, q string, args ...interface{}) ([]models.Asset, error) {
	rows, err := r.db.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Asset{}
	for rows.Next() {
		var a models.Asset
		if err := rows.StructScan(&a); err != nil {
			r.log.Warnf("scan asset failed: %v", err)
			continue
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// UpdatePrice writes a refreshed price. Dividend fields only overwrite
// the stored value when the quote carried one.
func (r *Repo) UpdatePrice(ctx context.Context, id string, upd models.PriceUpdate) error {
	q := `UPDATE assets SET
		current_price = $2::numeric,
		dividend_rate = COALESCE($3::numeric, dividend_rate),
		dividend_yield = COALESCE($4::numeric, dividend_yield),
		next_dividend_date = COALESCE(NULLIF($5,''), next_dividend_date),
		updated_at = now()
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, upd.Price.String(),
		nullNumeric(upd.DividendRate), nullNumeric(upd.DividendYield), upd.NextDividendDate)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *Repo) setArchived(ctx context.Context, id string, archived bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE assets SET is_archived = $2, updated_at = now() WHERE id = $1`, id, archived)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ArchiveAsset hides an asset from the live portfolio without deleting
// it, so recorded history keeps its meaning.
func (r *Repo) ArchiveAsset(ctx context.Context, id string) error {
	return r.setArchived(ctx, id, true)
}

func (r *Repo) UnarchiveAsset(ctx context.Context, id string) error {
	return r.setArchived(ctx, id, false)
}

// historyData is the serialized breakdown column.
type historyData struct {
	ByType map[string]decimal.Decimal `json:"byType"`
}

func (r *Repo) GetHistoryEntry(ctx context.Context, date string) (models.HistoryEntry, bool, error) {
	var row historyRow
	err := r.db.GetContext(ctx, &row,
		`SELECT date, total_value, total_cost, total_pl, COALESCE(data,'') AS data FROM history_entries WHERE date = $1`, date)
	if err == sql.ErrNoRows {
		return models.HistoryEntry{}, false, nil
	}
	if err != nil {
		return models.HistoryEntry{}, false, err
	}
	return r.entryFromRow(row), true, nil
}

func (r *Repo) UpsertHistoryEntry(ctx context.Context, e models.HistoryEntry) error {
	data, err := json.Marshal(historyData{ByType: e.ByType})
	if err != nil {
		return err
	}
	q := `INSERT INTO history_entries (date, total_value, total_cost, total_pl, data, created_at, updated_at)
		VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5, now(), now())
		ON CONFLICT (date) DO UPDATE SET
			total_value = EXCLUDED.total_value,
			total_cost = EXCLUDED.total_cost,
			total_pl = EXCLUDED.total_pl,
			data = EXCLUDED.data,
			updated_at = now()`
	_, err = r.db.ExecContext(ctx, q, e.Date,
		e.TotalValue.String(), e.TotalCost.String(), e.TotalPL.String(), string(data))
	return err
}

// ListRecentHistory returns the newest n snapshots in ascending date
// order.
func (r *Repo) ListRecentHistory(ctx context.Context, n int) ([]models.HistoryEntry, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT date, total_value, total_cost, total_pl, COALESCE(data,'') AS data
		 FROM history_entries ORDER BY date DESC LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.HistoryEntry{}
	for rows.Next() {
		var row historyRow
		if err := rows.StructScan(&row); err != nil {
			r.log.Warnf("scan history entry failed: %v", err)
			continue
		}
		res = append(res, r.entryFromRow(row))
	}
	// newest-first from the query, flip to ascending for charting
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, rows.Err()
}

func (r *Repo) entryFromRow(row historyRow) models.HistoryEntry {
	e := models.HistoryEntry{
		Date:       row.Date,
		TotalValue: row.TotalValue,
		TotalCost:  row.TotalCost,
		TotalPL:    row.TotalPL,
	}
	if row.Data != "" {
		var d historyData
		if err := json.Unmarshal([]byte(row.Data), &d); err != nil {
			r.log.Warnf("parse history data for %s failed: %v", row.Date, err)
		} else {
			e.ByType = d.ByType
		}
	}
	return e
}

func nullNumeric(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}
