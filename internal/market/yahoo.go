package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"dontcare/internal/logger"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// YahooConfig configures the chart API client
type YahooConfig struct {
	BaseURL     string
	Timeout     time.Duration
	MinInterval time.Duration
	CallsPerMin int
}

// YahooClient fetches quotes from the Yahoo Finance chart API. Upstream
// calls are throttled twice: a minimum interval between consecutive
// requests and a calls-per-minute budget.
type YahooClient struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	minInterval time.Duration
	retryConfig *RetryConfig

	mu       sync.Mutex
	lastCall time.Time
}

// NewYahooClient creates a throttled chart API client
func NewYahooClient(cfg YahooConfig) *YahooClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MinInterval == 0 {
		cfg.MinInterval = 5 * time.Second
	}
	if cfg.CallsPerMin == 0 {
		cfg.CallsPerMin = 5
	}

	return &YahooClient{
		baseURL:     cfg.BaseURL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.CallsPerMin)), cfg.CallsPerMin),
		minInterval: cfg.MinInterval,
		retryConfig: DefaultRetryConfig(),
	}
}

// ChartBars holds the OHLCV series for one symbol
type ChartBars struct {
	Symbol     string
	Timestamps []int64
	Open       []float64
	High       []float64
	Low        []float64
	Close      []float64
	Volume     []int64
}

// Latest returns the index of the last bar with a close price
func (b *ChartBars) Latest() (int, bool) {
	for i := len(b.Close) - 1; i >= 0; i-- {
		if b.Close[i] != 0 {
			return i, true
		}
	}
	return 0, false
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"chartPreviousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchChart retrieves bars for a symbol over the given range and interval
// (e.g. "2d"/"1d" for a quote, "1y"/"1d" for the 52-week computation).
func (c *YahooClient) FetchChart(ctx context.Context, symbol, rng, interval string) (*ChartBars, error) {
	return RetryWithResult(ctx, func(ctx context.Context) (*ChartBars, error) {
		return c.fetchChartOnce(ctx, symbol, rng, interval)
	}, c.retryConfig)
}

func (c *YahooClient) fetchChartOnce(ctx context.Context, symbol, rng, interval string) (*ChartBars, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(rng), url.QueryEscape(interval))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build chart request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart request failed for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"status": resp.StatusCode,
		}).Warn("Yahoo chart request failed")
		return nil, &UpstreamError{Code: resp.StatusCode, Message: string(body)}
	}

	var parsed chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode chart response for %s: %w", symbol, err)
	}

	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("chart error for %s: %s", symbol, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart data for %s", symbol)
	}

	result := parsed.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote indicators for %s", symbol)
	}
	q := result.Indicators.Quote[0]

	return &ChartBars{
		Symbol:     symbol,
		Timestamps: result.Timestamp,
		Open:       q.Open,
		High:       q.High,
		Low:        q.Low,
		Close:      q.Close,
		Volume:     q.Volume,
	}, nil
}

// throttle blocks until both the per-minute budget and the minimum
// interval allow another call.
func (c *YahooClient) throttle(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	wait := time.Until(c.lastCall.Add(c.minInterval))
	if wait > 0 {
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		c.mu.Lock()
	}
	c.lastCall = time.Now()
	c.mu.Unlock()
	return nil
}
