package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"dontcare/internal/cache"
)

// fakeUpstream serves per-symbol chart responses and can be flipped to
// fail every request.
type fakeUpstream struct {
	mu     sync.Mutex
	closes map[string][]float64
	down   bool
}

func (f *fakeUpstream) setCloses(symbol string, closes []float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes[symbol] = closes
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	down := f.down
	symbol := strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/")
	closes, ok := f.closes[symbol]
	f.mu.Unlock()

	if down {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if !ok {
		closes = []float64{100, 101}
	}

	timestamps := make([]int64, len(closes))
	for i := range closes {
		timestamps[i] = 1700000000 + int64(i)*86400
	}
	json.NewEncoder(w).Encode(chartJSON(symbol, timestamps, closes))
}

func newTestService(t *testing.T) (*Service, *fakeUpstream) {
	t.Helper()
	upstream := &fakeUpstream{closes: make(map[string][]float64)}
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	return NewService(fastClient(srv.URL), cache.NewMemoryCache(), 4), upstream
}

func TestGetQuote(t *testing.T) {
	svc, upstream := newTestService(t)
	upstream.setCloses("AAPL", []float64{228.4, 231.5})
	ctx := context.Background()

	quote, err := svc.GetQuote(ctx, AssetUSStock, "AAPL")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if quote.Price != 231.5 {
		t.Errorf("price = %v, want 231.5", quote.Price)
	}
	if quote.PreviousClose != 228.4 {
		t.Errorf("previous close = %v, want 228.4", quote.PreviousClose)
	}
	if quote.Change != 3.1 {
		t.Errorf("change = %v, want 3.1", quote.Change)
	}
	if quote.DataSource != SourceUpstream {
		t.Errorf("data source = %q, want %q", quote.DataSource, SourceUpstream)
	}
	if quote.Name != "Apple Inc" {
		t.Errorf("name = %q", quote.Name)
	}

	// second call comes from the cache
	cached, err := svc.GetQuote(ctx, AssetUSStock, "AAPL")
	if err != nil {
		t.Fatalf("cached GetQuote failed: %v", err)
	}
	if cached.DataSource != SourceCache {
		t.Errorf("data source = %q, want %q", cached.DataSource, SourceCache)
	}
	if cached.Price != 231.5 {
		t.Errorf("cached price = %v", cached.Price)
	}
}

func TestGetQuoteUnknownSymbol(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.GetQuote(context.Background(), AssetUSStock, "WAT"); err == nil {
		t.Error("expected error for symbol outside the catalog")
	}
}

func TestGetQuoteFallbackWhenUpstreamDown(t *testing.T) {
	svc, upstream := newTestService(t)
	upstream.down = true
	ctx := context.Background()

	quote, err := svc.GetQuote(ctx, AssetUSStock, "AAPL")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if quote.DataSource != SourceFallback {
		t.Errorf("data source = %q, want %q", quote.DataSource, SourceFallback)
	}
	if quote.Price != 220.00 {
		t.Errorf("fallback price = %v, want 220.00", quote.Price)
	}

	// the fallback is cached so the dead upstream is not hammered
	upstream.down = false
	cached, err := svc.GetQuote(ctx, AssetUSStock, "AAPL")
	if err != nil {
		t.Fatalf("cached GetQuote failed: %v", err)
	}
	if cached.DataSource != SourceCache || cached.Price != 220.00 {
		t.Errorf("cached fallback = %+v", cached)
	}
}

func TestForceRefresh(t *testing.T) {
	svc, upstream := newTestService(t)
	upstream.setCloses("QQQ", []float64{478.0, 480.1})
	ctx := context.Background()

	if _, err := svc.GetQuote(ctx, AssetETF, "QQQ"); err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}

	upstream.setCloses("QQQ", []float64{480.1, 485.7})
	quote, err := svc.ForceRefresh(ctx, AssetETF, "QQQ")
	if err != nil {
		t.Fatalf("ForceRefresh failed: %v", err)
	}
	if quote.Price != 485.7 {
		t.Errorf("price = %v, want refetched 485.7", quote.Price)
	}
	if quote.DataSource != SourceUpstream {
		t.Errorf("data source = %q", quote.DataSource)
	}
}

func TestGetEnhancedQuote(t *testing.T) {
	svc, upstream := newTestService(t)
	// chartJSON derives high = close+2 and low = close-2
	upstream.setCloses("MSFT", []float64{400, 390, 430})
	ctx := context.Background()

	enhanced, err := svc.GetEnhancedQuote(ctx, AssetUSStock, "MSFT")
	if err != nil {
		t.Fatalf("GetEnhancedQuote failed: %v", err)
	}
	if !enhanced.Enhanced {
		t.Error("expected enhanced flag")
	}
	if enhanced.FiftyTwoWeekHigh != 432 {
		t.Errorf("52w high = %v, want 432", enhanced.FiftyTwoWeekHigh)
	}
	if enhanced.FiftyTwoWeekLow != 388 {
		t.Errorf("52w low = %v, want 388", enhanced.FiftyTwoWeekLow)
	}

	cached, err := svc.GetEnhancedQuote(ctx, AssetUSStock, "MSFT")
	if err != nil {
		t.Fatalf("cached GetEnhancedQuote failed: %v", err)
	}
	if cached.DataSource != SourceCache {
		t.Errorf("data source = %q", cached.DataSource)
	}
}

func TestGetCatalogQuotes(t *testing.T) {
	svc, _ := newTestService(t)

	quotes, err := svc.GetCatalogQuotes(context.Background(), AssetCommodity)
	if err != nil {
		t.Fatalf("GetCatalogQuotes failed: %v", err)
	}
	if len(quotes) != len(Catalog(AssetCommodity)) {
		t.Errorf("got %d quotes, want %d", len(quotes), len(Catalog(AssetCommodity)))
	}
	for _, q := range quotes {
		if q == nil || q.Price == 0 {
			t.Errorf("incomplete quote %+v", q)
		}
	}
}

func TestGetCatalogQuotesUnknownClass(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.GetCatalogQuotes(context.Background(), AssetClass("bonds")); err == nil {
		t.Error("expected error for unknown asset class")
	}
}

func TestGetDashboard(t *testing.T) {
	svc, _ := newTestService(t)

	dashboard, err := svc.GetDashboard(context.Background())
	if err != nil {
		t.Fatalf("GetDashboard failed: %v", err)
	}
	if len(dashboard.USIndexes) == 0 || len(dashboard.KRStocks) == 0 || len(dashboard.Currencies) == 0 {
		t.Errorf("dashboard has empty sections: %+v", dashboard)
	}
	if dashboard.LastUpdated == "" {
		t.Error("missing last_updated")
	}
	if dashboard.CacheStatus["total_symbols"] == 0 {
		t.Error("missing cache status")
	}
}

func TestCacheStatus(t *testing.T) {
	svc, upstream := newTestService(t)
	upstream.setCloses("AAPL", []float64{228.4, 231.5})
	ctx := context.Background()

	before := svc.CacheStatus(ctx)
	if before["cached_symbols"].(int) != 0 {
		t.Errorf("expected empty cache, got %v", before["cached_symbols"])
	}

	if _, err := svc.GetQuote(ctx, AssetUSStock, "AAPL"); err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}

	after := svc.CacheStatus(ctx)
	if after["cached_symbols"].(int) != 1 {
		t.Errorf("cached_symbols = %v, want 1", after["cached_symbols"])
	}
}
