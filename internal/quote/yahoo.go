package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"moneyfolio/internal/models"
)

// trustCodePattern matches Japanese investment-trust fund codes, which
// are 8-character alphanumeric ISINs like "0331418A". Those are not
// listed on Yahoo Finance's global API and are scraped from Minkabu
// instead, with Yahoo Finance JP as fallback.
var trustCodePattern = regexp.MustCompile(`^[0-9A-Z]{8}$`)

// minkabuPricePatterns extract the fund NAV from Minkabu's fund page.
var minkabuPricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`>([0-9]{1,3}(?:,[0-9]{3})+)円?</span>`),
	regexp.MustCompile(`<span class="text-4xl font-bold">([0-9,]+)</span>`),
}

// yahooJPPricePattern extracts a yen amount near the 基準価額 label on
// Yahoo Finance JP fund pages.
var yahooJPPricePattern = regexp.MustCompile(`>([0-9]{1,3}(?:,[0-9]{3})*(?:\.[0-9]+)?)(?:\s*円)?<`)

// YahooProvider fetches quotes from public market-data endpoints.
type YahooProvider struct {
	client *http.Client
	log    *logrus.Logger

	// tickerMap rewrites known renamed fund codes before fetching.
	tickerMap map[string]string
}

func NewYahooProvider(log *logrus.Logger) *YahooProvider {
	return &YahooProvider{
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
		tickerMap: map[string]string{
			// PayPay US stock index fund was reissued under AM One
			"97311233": "4731B233",
		},
	}
}

func (p *YahooProvider) Fetch(ctx context.Context, ticker string) (models.Quote, error) {
	if ticker == "" {
		return models.Quote{}, fmt.Errorf("quote: ticker is required")
	}
	fetchTicker := ticker
	if mapped, ok := p.tickerMap[ticker]; ok {
		fetchTicker = mapped
	}

	if trustCodePattern.MatchString(fetchTicker) {
		return p.fetchTrust(ctx, ticker, fetchTicker)
	}
	return p.fetchYahoo(ctx, ticker, fetchTicker)
}

// yahooQuoteSummary is the subset of Yahoo Finance's quoteSummary
// response the provider reads. Numeric fields arrive as {raw, fmt}
// objects.
type yahooQuoteSummary struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				Symbol             string      `json:"symbol"`
				Currency           string      `json:"currency"`
				RegularMarketPrice yahooNumber `json:"regularMarketPrice"`
			} `json:"price"`
			SummaryDetail struct {
				TrailingAnnualDividendRate  yahooNumber `json:"trailingAnnualDividendRate"`
				TrailingAnnualDividendYield yahooNumber `json:"trailingAnnualDividendYield"`
				DividendRate                yahooNumber `json:"dividendRate"`
				DividendYield               yahooNumber `json:"dividendYield"`
			} `json:"summaryDetail"`
			CalendarEvents struct {
				ExDividendDate yahooNumber `json:"exDividendDate"`
			} `json:"calendarEvents"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

type yahooNumber struct {
	Raw   float64 `json:"raw"`
	Valid bool    `json:"-"`
}

func (n *yahooNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "{}" || s == `""` {
		return nil
	}
	var wrapped struct {
		Raw *float64 `json:"raw"`
	}
	if err := json.Unmarshal(b, &wrapped); err == nil && wrapped.Raw != nil {
		n.Raw = *wrapped.Raw
		n.Valid = true
		return nil
	}
	var raw float64
	if err := json.Unmarshal(b, &raw); err == nil {
		n.Raw = raw
		n.Valid = true
	}
	return nil
}

func (n yahooNumber) nullDecimal() decimal.NullDecimal {
	if !n.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(n.Raw), Valid: true}
}

func (p *YahooProvider) fetchYahoo(ctx context.Context, ticker, fetchTicker string) (models.Quote, error) {
	u := fmt.Sprintf("https://query1.finance.yahoo.com/v10/finance/quoteSummary/%s?modules=price,summaryDetail,calendarEvents",
		url.PathEscape(fetchTicker))
	body, err := p.get(ctx, u)
	if err != nil {
		return models.Quote{}, err
	}

	var summary yahooQuoteSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return models.Quote{}, fmt.Errorf("yahoo decode: %w", err)
	}
	if summary.QuoteSummary.Error != nil {
		return models.Quote{}, fmt.Errorf("yahoo api error: %s", summary.QuoteSummary.Error.Description)
	}
	if len(summary.QuoteSummary.Result) == 0 {
		return models.Quote{}, ErrNoPrice
	}

	res := summary.QuoteSummary.Result[0]
	if !res.Price.RegularMarketPrice.Valid || res.Price.RegularMarketPrice.Raw <= 0 {
		return models.Quote{}, ErrNoPrice
	}

	q := models.Quote{
		Ticker:   ticker,
		Price:    decimal.NewFromFloat(res.Price.RegularMarketPrice.Raw),
		Currency: models.Currency(res.Price.Currency),
	}
	if q.Currency == "" {
		q.Currency = models.JPY
	}

	sd := res.SummaryDetail
	if sd.TrailingAnnualDividendRate.Valid {
		q.DividendRate = sd.TrailingAnnualDividendRate.nullDecimal()
	} else {
		q.DividendRate = sd.DividendRate.nullDecimal()
	}
	if sd.TrailingAnnualDividendYield.Valid {
		q.DividendYield = sd.TrailingAnnualDividendYield.nullDecimal()
	} else {
		q.DividendYield = sd.DividendYield.nullDecimal()
	}
	if ev := res.CalendarEvents.ExDividendDate; ev.Valid {
		q.NextDividendDate = time.Unix(int64(ev.Raw), 0).UTC().Format("2006-01-02")
	}
	return q, nil
}

func (p *YahooProvider) fetchTrust(ctx context.Context, ticker, fetchTicker string) (models.Quote, error) {
	price, minkabuErr := p.fetchMinkabu(ctx, fetchTicker)
	if minkabuErr != nil {
		p.log.Warnf("minkabu fetch failed for %s, trying yahoo jp: %v", ticker, minkabuErr)
		var yahooErr error
		price, yahooErr = p.fetchYahooJP(ctx, fetchTicker)
		if yahooErr != nil {
			return models.Quote{}, fmt.Errorf("trust quote %s: minkabu: %v, yahoo jp: %w", ticker, minkabuErr, yahooErr)
		}
	}
	if price.Sign() <= 0 {
		return models.Quote{}, ErrNoPrice
	}
	// fund NAVs are always yen and carry no dividend data
	return models.Quote{Ticker: ticker, Price: price, Currency: models.JPY}, nil
}

func (p *YahooProvider) fetchMinkabu(ctx context.Context, code string) (decimal.Decimal, error) {
	body, err := p.get(ctx, "https://itf.minkabu.jp/fund/"+url.PathEscape(code))
	if err != nil {
		return decimal.Zero, err
	}
	for _, pattern := range minkabuPricePatterns {
		if m := pattern.FindSubmatch(body); m != nil {
			return parseYen(string(m[1]))
		}
	}
	return decimal.Zero, ErrNoPrice
}

func (p *YahooProvider) fetchYahooJP(ctx context.Context, code string) (decimal.Decimal, error) {
	body, err := p.get(ctx, "https://finance.yahoo.co.jp/quote/"+url.PathEscape(code))
	if err != nil {
		return decimal.Zero, err
	}
	// look for the figure next to the NAV label
	idx := strings.Index(string(body), "基準価額")
	if idx < 0 {
		return decimal.Zero, ErrNoPrice
	}
	snippet := body[idx:]
	if len(snippet) > 3000 {
		snippet = snippet[:3000]
	}
	if m := yahooJPPricePattern.FindSubmatch(snippet); m != nil {
		return parseYen(string(m[1]))
	}
	return decimal.Zero, ErrNoPrice
}

func (p *YahooProvider) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("quote read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote: status %d from %s", resp.StatusCode, u)
	}
	return body, nil
}

func parseYen(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", s, err)
	}
	return d, nil
}
