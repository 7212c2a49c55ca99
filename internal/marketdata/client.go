package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/vkulagin/stockscan/internal/model"
)

const dateLayout = "2006-01-02"

// Client talks to the quote service over HTTP with rate limiting and
// exponential-backoff retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetry   time.Duration
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a quote service client.
type ClientOptions struct {
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new quote service client with rate limiting.
func NewClient(opts ClientOptions) *Client {
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxRetryTimeout == 0 {
		opts.MaxRetryTimeout = 30 * time.Second
	}

	return &Client{
		baseURL: opts.BaseURL,
		httpClient: &http.Client{
			Timeout: opts.RequestTimeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.RequestsPerSec),
		maxRetry: opts.MaxRetryTimeout,
		logger:   log.With().Str("component", "marketdata_client").Logger(),
	}
}

type historyResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Date         string  `json:"date"`
		Open         float64 `json:"open"`
		High         float64 `json:"high"`
		Low          float64 `json:"low"`
		Close        float64 `json:"close"`
		Volume       int64   `json:"volume"`
		TurnoverRate float64 `json:"turnover_rate"`
		PctChange    float64 `json:"pct_change"`
	} `json:"rows"`
}

type universeResponse struct {
	Status  string `json:"status"`
	Symbols []struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"symbols"`
}

type disclosureResponse struct {
	Status string   `json:"status"`
	Seats  []string `json:"seats"`
}

// History fetches a symbol's daily bars for the trailing lookbackDays and
// validates them against the fixed schema before release.
func (c *Client) History(ctx context.Context, symbol string, lookbackDays int) ([]model.PricePoint, error) {
	endpoint := fmt.Sprintf("%s/api/v1/history?symbol=%s&days=%d",
		c.baseURL, url.QueryEscape(symbol), lookbackDays)

	c.logger.Debug().Str("symbol", symbol).Int("days", lookbackDays).Msg("Fetching history")

	var data historyResponse
	if err := c.getJSON(ctx, endpoint, &data); err != nil {
		return nil, err
	}
	if data.Status != "ok" {
		return nil, fmt.Errorf("%w: history status %q for %s", model.ErrDataUnavailable, data.Status, symbol)
	}
	if len(data.Rows) == 0 {
		return nil, fmt.Errorf("%w: no history rows for %s", model.ErrDataUnavailable, symbol)
	}

	points := make([]model.PricePoint, 0, len(data.Rows))
	for i, row := range data.Rows {
		date, err := time.Parse(dateLayout, row.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q at row %d for %s", model.ErrDataUnavailable, row.Date, i, symbol)
		}
		if row.Close <= 0 {
			return nil, fmt.Errorf("%w: non-positive close at row %d for %s", model.ErrDataUnavailable, i, symbol)
		}
		points = append(points, model.PricePoint{
			Date:         date,
			Open:         row.Open,
			High:         row.High,
			Low:          row.Low,
			Close:        row.Close,
			Volume:       row.Volume,
			TurnoverRate: row.TurnoverRate,
			PctChange:    row.PctChange,
		})
	}

	// Oldest first for sequential processing.
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	for i := 1; i < len(points); i++ {
		if !points[i].Date.After(points[i-1].Date) {
			return nil, fmt.Errorf("%w: duplicate date %s for %s", model.ErrDataUnavailable, points[i].Date.Format(dateLayout), symbol)
		}
	}

	c.logger.Debug().Str("symbol", symbol).Int("count", len(points)).Msg("Fetched history")
	return points, nil
}

// ListSymbols fetches the dragon-tiger candidates for a date, de-duplicated
// by code.
func (c *Client) ListSymbols(ctx context.Context, date time.Time) ([]model.SymbolInfo, error) {
	endpoint := fmt.Sprintf("%s/api/v1/dragon-tiger?date=%s", c.baseURL, date.Format(dateLayout))

	var data universeResponse
	if err := c.getJSON(ctx, endpoint, &data); err != nil {
		return nil, err
	}
	if data.Status != "ok" {
		return nil, fmt.Errorf("%w: universe status %q", model.ErrDataUnavailable, data.Status)
	}

	seen := make(map[string]bool, len(data.Symbols))
	symbols := make([]model.SymbolInfo, 0, len(data.Symbols))
	for _, s := range data.Symbols {
		if s.Code == "" || seen[s.Code] {
			continue
		}
		seen[s.Code] = true
		symbols = append(symbols, model.SymbolInfo{Code: s.Code, Name: s.Name})
	}

	c.logger.Debug().Int("count", len(symbols)).Str("date", date.Format(dateLayout)).Msg("Fetched universe")
	return symbols, nil
}

// Disclosures fetches a symbol's trade-seat names for a date. A symbol with
// no disclosure yields an empty list, not an error.
func (c *Client) Disclosures(ctx context.Context, symbol string, date time.Time) ([]string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/dragon-tiger/seats?symbol=%s&date=%s",
		c.baseURL, url.QueryEscape(symbol), date.Format(dateLayout))

	var data disclosureResponse
	if err := c.getJSON(ctx, endpoint, &data); err != nil {
		return nil, err
	}
	if data.Status != "ok" {
		return nil, fmt.Errorf("%w: disclosure status %q for %s", model.ErrDataUnavailable, data.Status, symbol)
	}

	return data.Seats, nil
}

// getJSON performs a rate-limited GET with exponential-backoff retries and
// decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", model.ErrDataUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	var body []byte
	operation := func() error {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("non-200 status code: %d", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}
		return nil
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = c.maxRetry

	if err := backoff.Retry(operation, backoff.WithContext(backoffStrategy, ctx)); err != nil {
		c.logger.Warn().Err(err).Str("url", endpoint).Msg("Request failed after retries")
		return fmt.Errorf("%w: %v", model.ErrDataUnavailable, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error().Err(err).Str("url", endpoint).Msg("Error parsing JSON")
		return fmt.Errorf("%w: parsing JSON: %v", model.ErrDataUnavailable, err)
	}

	return nil
}
