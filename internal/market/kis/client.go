package kis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "dontcare/internal/errors"
	"dontcare/internal/logger"
)

// Domestic index codes
const (
	MarketCodeKospi  = "0001"
	MarketCodeKosdaq = "1001"
)

// Overseas exchange codes
const (
	ExchangeNasdaq = "NAS"
	ExchangeNYSE   = "NYS"
	ExchangeAmex   = "AMS"
)

// TR IDs for the quotation endpoints
const (
	trDomesticPrice = "FHKST01010100"
	trDomesticIndex = "FHPUP02100000"
	trOverseasPrice = "HHDFS00000300"
)

// fallbackSymbolsByExchange are representative symbols used when every
// index lookup combination fails.
var fallbackSymbolsByExchange = map[string][]string{
	ExchangeNasdaq: {
		"NDX", "QQQ", "ONEQ", "QQQM", "NDAQ",
		"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA",
		"ARKK", "VGT",
	},
}

// Response is the raw KIS quotation envelope. rt_cd "0" means success;
// output fields are all strings.
type Response struct {
	RtCd   string            `json:"rt_cd"`
	Msg1   string            `json:"msg1"`
	Output map[string]string `json:"output"`
}

// OK reports whether the upstream accepted the request
func (r *Response) OK() bool {
	return r.RtCd == "0"
}

// Field returns an output field, trimmed, or the default when empty
func (r *Response) Field(key, def string) string {
	v := strings.TrimSpace(r.Output[key])
	if v == "" {
		return def
	}
	return v
}

// StandardQuote is the normalized index snapshot returned to clients
type StandardQuote struct {
	Title      string `json:"title"`
	Market     string `json:"market"`
	Price      string `json:"price"`
	Change     string `json:"change"`
	ChangeRate string `json:"changeRate"`
	Sign       string `json:"sign"`
}

// Client calls the KIS quotation endpoints with a managed bearer token
type Client struct {
	baseURL    string
	appKey     string
	appSecret  string
	httpClient *http.Client
	tokens     *TokenManager
}

// NewClient creates a KIS API client
func NewClient(baseURL, appKey, appSecret string, tokens *TokenManager, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		appKey:     appKey,
		appSecret:  appSecret,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
	}
}

// TokenInfo exposes the token manager state for diagnostics
func (c *Client) TokenInfo(ctx context.Context) TokenInfo {
	return c.tokens.Info(ctx)
}

func (c *Client) doRequest(ctx context.Context, endpoint, trID string, params url.Values) (*Response, error) {
	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authorization", "Bearer "+token)
	req.Header.Set("appkey", c.appKey)
	req.Header.Set("appsecret", c.appSecret)
	req.Header.Set("tr_id", trID)
	req.Header.Set("custtype", "P")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, apperrors.NewAppError(apperrors.ErrCodeTimeout,
				fmt.Sprintf("KIS request timeout: %s", endpoint), err)
		}
		return nil, apperrors.NewAppError(apperrors.ErrCodeKISAPI,
			fmt.Sprintf("KIS request failed: %s", endpoint), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		// stale or revoked token; drop it so the next call reissues
		logger.Warn("KIS authentication failed, invalidating cached token")
		c.tokens.Invalidate(ctx)
		return nil, apperrors.NewAppError(apperrors.ErrCodeKISUnauthorized,
			fmt.Sprintf("KIS authorization error: %s", endpoint), nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.NewAppError(apperrors.ErrCodeKISRateLimit,
			fmt.Sprintf("KIS rate limit exceeded: %s", endpoint), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, apperrors.NewAppError(apperrors.ErrCodeKISAPI,
			fmt.Sprintf("KIS request returned status %d: %s", resp.StatusCode, endpoint), nil)
	}

	var parsed Response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrCodeKISAPI, "Failed to decode KIS response", err)
	}

	return &parsed, nil
}

// GetDomesticStockPrice fetches the current price of a KRX listing.
// marketCode J covers stocks, ETFs, and ETNs.
func (c *Client) GetDomesticStockPrice(ctx context.Context, stockCode, marketCode string) (*Response, error) {
	if marketCode == "" {
		marketCode = "J"
	}
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", marketCode)
	params.Set("FID_INPUT_ISCD", stockCode)

	return c.doRequest(ctx, "/uapi/domestic-stock/v1/quotations/inquire-price", trDomesticPrice, params)
}

// GetMarketIndex fetches a domestic market index (kospi 0001, kosdaq 1001)
func (c *Client) GetMarketIndex(ctx context.Context, marketCode string) (*Response, error) {
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", "U")
	params.Set("FID_INPUT_ISCD", marketCode)

	return c.doRequest(ctx, "/uapi/domestic-stock/v1/quotations/inquire-index-price", trDomesticIndex, params)
}

// GetOverseasStockPrice fetches the current price of an overseas listing
func (c *Client) GetOverseasStockPrice(ctx context.Context, symbol, exchangeCode string) (*Response, error) {
	if exchangeCode == "" {
		exchangeCode = ExchangeNasdaq
	}
	params := url.Values{}
	params.Set("AUTH", "")
	params.Set("EXCD", exchangeCode)
	params.Set("SYMB", symbol)

	return c.doRequest(ctx, "/uapi/overseas-price/v1/quotations/price", trOverseasPrice, params)
}

// GetOverseasIndexPrice looks up an overseas index by trying an ordered
// list of TR_ID and parameter combinations, then representative symbols.
// Index symbols are unreliable on retail keys, hence the ladder.
func (c *Client) GetOverseasIndexPrice(ctx context.Context, indexCode, exchangeCode string) (*Response, error) {
	currentDate := time.Now().Format("20060102")

	attempts := []struct {
		trID   string
		params url.Values
	}{
		{trOverseasPrice, url.Values{"AUTH": {""}, "EXCD": {exchangeCode}, "SYMB": {indexCode}}},
		{"HHDFS76240000", url.Values{"AUTH": {""}, "EXCD": {exchangeCode}, "SYMB": {indexCode}}},
		{"HHDFS76200000", url.Values{"AUTH": {""}, "EXCD": {exchangeCode}, "SYMB": {indexCode}, "GUBN": {"0"}}},
		{trOverseasPrice, url.Values{"AUTH": {""}, "EXCD": {exchangeCode}, "SYMB": {indexCode}, "BYMD": {currentDate}}},
	}

	for _, attempt := range attempts {
		resp, err := c.doRequest(ctx, "/uapi/overseas-price/v1/quotations/price", attempt.trID, attempt.params)
		if err != nil {
			logger.WithError(err).WithFields(map[string]interface{}{
				"index": indexCode,
				"tr_id": attempt.trID,
			}).Warn("Overseas index lookup failed")
			continue
		}

		if resp.OK() && resp.Field("last", "") != "" {
			return resp, nil
		}
		logger.WithFields(map[string]interface{}{
			"index": indexCode,
			"tr_id": attempt.trID,
			"rt_cd": resp.RtCd,
		}).Warn("Overseas index lookup returned no price")
	}

	logger.WithField("index", indexCode).Warn("All index lookups failed, trying representative symbols")
	return c.fallbackIndexData(ctx, exchangeCode)
}

// fallbackIndexData walks the representative-symbol list for an exchange
func (c *Client) fallbackIndexData(ctx context.Context, exchangeCode string) (*Response, error) {
	symbols, ok := fallbackSymbolsByExchange[exchangeCode]
	if !ok {
		symbols = []string{"QQQ"}
	}

	for _, symbol := range symbols {
		resp, err := c.GetOverseasStockPrice(ctx, symbol, exchangeCode)
		if err != nil {
			logger.WithError(err).WithField("symbol", symbol).Warn("Fallback symbol failed")
			continue
		}
		if resp.OK() && resp.Field("last", "") != "" {
			logger.WithField("symbol", symbol).Info("Index fallback succeeded")
			return resp, nil
		}
	}

	return &Response{RtCd: "1", Msg1: "All attempts failed", Output: map[string]string{}}, nil
}
