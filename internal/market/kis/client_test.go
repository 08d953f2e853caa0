package kis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"dontcare/internal/cache"
	apperrors "dontcare/internal/errors"
)

// kisHandler is a fake KIS upstream: it always issues tokens and routes
// quotation requests through a configurable quote function.
type kisHandler struct {
	mu    sync.Mutex
	trIDs []string
	quote func(trID string, query map[string]string) (int, *Response)
}

func (h *kisHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/oauth2/tokenP" {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-test",
			"expires_in":   86400,
		})
		return
	}

	trID := r.Header.Get("tr_id")
	h.mu.Lock()
	h.trIDs = append(h.trIDs, trID)
	h.mu.Unlock()

	query := make(map[string]string)
	for key, vals := range r.URL.Query() {
		query[key] = vals[0]
	}

	status, resp := h.quote(trID, query)
	w.WriteHeader(status)
	if resp != nil {
		json.NewEncoder(w).Encode(resp)
	}
}

func (h *kisHandler) seenTRIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.trIDs...)
}

func newTestClient(t *testing.T, h *kisHandler) (*Client, cache.Cacher) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	_, c := newTestCache(t)
	tokens := NewTokenManager(c, srv.URL, "test-key", "test-secret", 0)
	return NewClient(srv.URL, "test-key", "test-secret", tokens, 0), c
}

func TestGetDomesticStockPrice(t *testing.T) {
	h := &kisHandler{
		quote: func(trID string, query map[string]string) (int, *Response) {
			if trID != "FHKST01010100" {
				t.Errorf("tr_id = %q", trID)
			}
			if query["FID_COND_MRKT_DIV_CODE"] != "J" || query["FID_INPUT_ISCD"] != "005930" {
				t.Errorf("unexpected query %v", query)
			}
			return http.StatusOK, &Response{
				RtCd:   "0",
				Output: map[string]string{"stck_prpr": "75000"},
			}
		},
	}
	client, _ := newTestClient(t, h)

	resp, err := client.GetDomesticStockPrice(context.Background(), "005930", "")
	if err != nil {
		t.Fatalf("GetDomesticStockPrice failed: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("rt_cd = %s", resp.RtCd)
	}
	if got := resp.Field("stck_prpr", ""); got != "75000" {
		t.Errorf("price = %q, want 75000", got)
	}
}

func TestGetMarketIndex(t *testing.T) {
	h := &kisHandler{
		quote: func(trID string, query map[string]string) (int, *Response) {
			if trID != "FHPUP02100000" {
				t.Errorf("tr_id = %q", trID)
			}
			if query["FID_COND_MRKT_DIV_CODE"] != "U" || query["FID_INPUT_ISCD"] != "0001" {
				t.Errorf("unexpected query %v", query)
			}
			return http.StatusOK, &Response{
				RtCd: "0",
				Output: map[string]string{
					"bstp_nmix_prpr":      "2654.12",
					"bstp_nmix_prdy_vrss": "12.45",
					"bstp_nmix_prdy_ctrt": "0.47",
					"prdy_vrss_sign":      "2",
				},
			}
		},
	}
	client, _ := newTestClient(t, h)

	resp, err := client.GetMarketIndex(context.Background(), MarketCodeKospi)
	if err != nil {
		t.Fatalf("GetMarketIndex failed: %v", err)
	}
	if got := resp.Field("bstp_nmix_prpr", ""); got != "2654.12" {
		t.Errorf("index price = %q", got)
	}
}

func TestOverseasIndexTRChain(t *testing.T) {
	// every index lookup fails; the first representative symbol succeeds
	h := &kisHandler{
		quote: func(trID string, query map[string]string) (int, *Response) {
			if query["SYMB"] == "NDX" {
				return http.StatusOK, &Response{
					RtCd:   "0",
					Output: map[string]string{"last": "19345.50", "diff": "120.30", "rate": "0.63"},
				}
			}
			return http.StatusOK, &Response{RtCd: "1", Msg1: "no data", Output: map[string]string{}}
		},
	}
	client, _ := newTestClient(t, h)

	resp, err := client.GetOverseasIndexPrice(context.Background(), "COMP", ExchangeNasdaq)
	if err != nil {
		t.Fatalf("GetOverseasIndexPrice failed: %v", err)
	}
	if got := resp.Field("last", ""); got != "19345.50" {
		t.Errorf("last = %q, want fallback symbol price", got)
	}

	trIDs := h.seenTRIDs()
	want := []string{"HHDFS00000300", "HHDFS76240000", "HHDFS76200000", "HHDFS00000300"}
	if len(trIDs) < len(want)+1 {
		t.Fatalf("saw %d requests, want the full TR chain plus a fallback", len(trIDs))
	}
	for i, trID := range want {
		if trIDs[i] != trID {
			t.Errorf("attempt %d tr_id = %q, want %q", i, trIDs[i], trID)
		}
	}
}

func TestOverseasIndexEmptyPriceRejected(t *testing.T) {
	// rt_cd 0 with an empty last must be treated as a failure
	h := &kisHandler{
		quote: func(trID string, query map[string]string) (int, *Response) {
			if query["SYMB"] == "QQQ" {
				return http.StatusOK, &Response{
					RtCd:   "0",
					Output: map[string]string{"last": "480.10", "diff": "1.20", "rate": "0.25"},
				}
			}
			return http.StatusOK, &Response{RtCd: "0", Output: map[string]string{"last": ""}}
		},
	}
	client, _ := newTestClient(t, h)

	resp, err := client.GetOverseasIndexPrice(context.Background(), "COMP", ExchangeNasdaq)
	if err != nil {
		t.Fatalf("GetOverseasIndexPrice failed: %v", err)
	}
	if got := resp.Field("last", ""); got != "480.10" {
		t.Errorf("last = %q, want the QQQ fallback price", got)
	}
}

func TestForbiddenInvalidatesToken(t *testing.T) {
	h := &kisHandler{
		quote: func(trID string, query map[string]string) (int, *Response) {
			return http.StatusForbidden, nil
		},
	}
	client, c := newTestClient(t, h)
	ctx := context.Background()

	_, err := client.GetDomesticStockPrice(ctx, "005930", "")
	if err == nil {
		t.Fatal("expected error")
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.ErrCodeKISUnauthorized {
		t.Fatalf("expected KIS auth error, got %v", err)
	}

	// the cached token must be gone
	var token string
	if err := c.Get(ctx, "kis_api_token", &token); err != cache.ErrCacheMiss {
		t.Errorf("expected token to be invalidated, got %q err=%v", token, err)
	}
}

func TestRateLimitError(t *testing.T) {
	h := &kisHandler{
		quote: func(trID string, query map[string]string) (int, *Response) {
			return http.StatusTooManyRequests, nil
		},
	}
	client, _ := newTestClient(t, h)

	_, err := client.GetDomesticStockPrice(context.Background(), "005930", "")
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.ErrCodeKISRateLimit {
		t.Fatalf("expected KIS rate limit error, got %v", err)
	}
}

func TestMarketSnapshot(t *testing.T) {
	h := &kisHandler{
		quote: func(trID string, query map[string]string) (int, *Response) {
			switch {
			case query["FID_INPUT_ISCD"] == "0001":
				return http.StatusOK, &Response{RtCd: "0", Output: map[string]string{
					"bstp_nmix_prpr":      "2654.12",
					"bstp_nmix_prdy_vrss": "-12.45",
					"bstp_nmix_prdy_ctrt": "-0.47",
					"prdy_vrss_sign":      "5",
				}}
			case query["FID_INPUT_ISCD"] == "1001":
				return http.StatusOK, &Response{RtCd: "0", Output: map[string]string{
					"bstp_nmix_prpr":      "812.34",
					"bstp_nmix_prdy_vrss": "3.21",
					"bstp_nmix_prdy_ctrt": "0.40",
					"prdy_vrss_sign":      "2",
				}}
			case query["SYMB"] == "COMP":
				return http.StatusOK, &Response{RtCd: "0", Output: map[string]string{
					"last": "19345.50", "diff": "120.30", "rate": "0.63",
				}}
			}
			return http.StatusOK, &Response{RtCd: "1", Output: map[string]string{}}
		},
	}
	client, _ := newTestClient(t, h)

	quotes := client.MarketSnapshot(context.Background())
	if len(quotes) != 3 {
		t.Fatalf("got %d quotes, want 3", len(quotes))
	}

	kospi := quotes[0]
	if kospi.Market != "KOSPI" || kospi.Title != "코스피" {
		t.Errorf("unexpected kospi identity %+v", kospi)
	}
	if kospi.Price != "2654.12" || kospi.Sign != "-" {
		t.Errorf("kospi = %+v", kospi)
	}

	kosdaq := quotes[1]
	if kosdaq.Price != "812.34" || kosdaq.Sign != "+" {
		t.Errorf("kosdaq = %+v", kosdaq)
	}

	nasdaq := quotes[2]
	if nasdaq.Price != "19345.50" || nasdaq.ChangeRate != "0.63" || nasdaq.Sign != "+" {
		t.Errorf("nasdaq = %+v", nasdaq)
	}
}

func TestMarketSnapshotDefaults(t *testing.T) {
	h := &kisHandler{
		quote: func(trID string, query map[string]string) (int, *Response) {
			return http.StatusInternalServerError, nil
		},
	}
	client, _ := newTestClient(t, h)

	quotes := client.MarketSnapshot(context.Background())
	if len(quotes) != 3 {
		t.Fatalf("got %d quotes, want 3", len(quotes))
	}
	if quotes[0].Price != "2500.00" || quotes[1].Price != "800.00" || quotes[2].Price != "18000.00" {
		t.Errorf("expected default prices, got %+v", quotes)
	}
	if quotes[2].Market != "QQQ (NASDAQ ETF)" {
		t.Errorf("nasdaq market = %q", quotes[2].Market)
	}
}
