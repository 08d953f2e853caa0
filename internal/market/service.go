package market

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"dontcare/internal/cache"
	"dontcare/internal/logger"
	"dontcare/internal/monitoring"
)

// Cache TTLs per data kind
const (
	quoteTTL     = 15 * time.Minute
	enhancedTTL  = 30 * time.Minute
	commodityTTL = 10 * time.Minute
)

// Service aggregates catalog quotes behind a per-symbol TTL cache
type Service struct {
	client      *YahooClient
	cache       cache.Cacher
	maxParallel int
}

// NewService creates the market data service
func NewService(client *YahooClient, c cache.Cacher, maxParallel int) *Service {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Service{client: client, cache: c, maxParallel: maxParallel}
}

func quoteKey(symbol string) string    { return "market:quote:" + symbol }
func enhancedKey(symbol string) string { return "market:enhanced:" + symbol }

func ttlFor(class AssetClass) time.Duration {
	if class == AssetCommodity {
		return commodityTTL
	}
	return quoteTTL
}

// GetQuote returns the quote for one catalog symbol. Cache first; on a
// miss it fetches two daily bars upstream. When the upstream fails the
// static fallback is returned and cached so the upstream is not hammered
// while it is down.
func (s *Service) GetQuote(ctx context.Context, class AssetClass, symbol string) (*Quote, error) {
	if _, ok := LookupSymbol(class, symbol); !ok {
		return nil, fmt.Errorf("unknown symbol %s for %s", symbol, class)
	}

	var cached Quote
	if err := s.cache.Get(ctx, quoteKey(symbol), &cached); err == nil {
		monitoring.RecordCacheHit("market_quote")
		cached.DataSource = SourceCache
		return &cached, nil
	}
	monitoring.RecordCacheMiss("market_quote")

	bars, err := s.client.FetchChart(ctx, symbol, "2d", "1d")
	if err != nil {
		monitoring.RecordUpstreamRequest("yahoo", "error")
		logger.WithError(err).WithField("symbol", symbol).Warn("Quote fetch failed, serving fallback")
		fallback := FallbackQuote(class, symbol)
		if cacheErr := s.cache.Set(ctx, quoteKey(symbol), fallback, ttlFor(class)); cacheErr != nil {
			logger.WithError(cacheErr).Warn("Failed to cache fallback quote")
		}
		return fallback, nil
	}
	monitoring.RecordUpstreamRequest("yahoo", "success")

	quote, err := s.buildQuote(class, symbol, bars)
	if err != nil {
		fallback := FallbackQuote(class, symbol)
		_ = s.cache.Set(ctx, quoteKey(symbol), fallback, ttlFor(class))
		return fallback, nil
	}

	if err := s.cache.Set(ctx, quoteKey(symbol), quote, ttlFor(class)); err != nil {
		logger.WithError(err).Warn("Failed to cache quote")
	}

	return quote, nil
}

// GetEnhancedQuote adds the 52-week high/low computed from 1y of history
func (s *Service) GetEnhancedQuote(ctx context.Context, class AssetClass, symbol string) (*EnhancedQuote, error) {
	var cached EnhancedQuote
	if err := s.cache.Get(ctx, enhancedKey(symbol), &cached); err == nil {
		monitoring.RecordCacheHit("market_enhanced")
		cached.DataSource = SourceCache
		return &cached, nil
	}
	monitoring.RecordCacheMiss("market_enhanced")

	quote, err := s.GetQuote(ctx, class, symbol)
	if err != nil {
		return nil, err
	}

	enhanced := &EnhancedQuote{Quote: *quote}

	bars, err := s.client.FetchChart(ctx, symbol, "1y", "1d")
	if err != nil {
		// 52-week range degrades to the current price
		enhanced.FiftyTwoWeekHigh = quote.Price
		enhanced.FiftyTwoWeekLow = quote.Price
	} else {
		high, low := yearRange(bars)
		enhanced.FiftyTwoWeekHigh = high
		enhanced.FiftyTwoWeekLow = low
		enhanced.Enhanced = true
	}

	if err := s.cache.Set(ctx, enhancedKey(symbol), enhanced, enhancedTTL); err != nil {
		logger.WithError(err).Warn("Failed to cache enhanced quote")
	}

	return enhanced, nil
}

// GetCatalogQuotes fetches every symbol of an asset class with bounded
// parallelism. Per-symbol failures degrade to fallbacks, never abort the
// batch.
func (s *Service) GetCatalogQuotes(ctx context.Context, class AssetClass) ([]*Quote, error) {
	catalog := Catalog(class)
	if catalog == nil {
		return nil, fmt.Errorf("unknown asset class %s", class)
	}

	symbols := make([]string, 0, len(catalog))
	for symbol := range catalog {
		symbols = append(symbols, symbol)
	}

	quotes := make([]*Quote, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)

	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			quote, err := s.GetQuote(gctx, class, symbol)
			if err != nil {
				quote = FallbackQuote(class, symbol)
			}
			quotes[i] = quote
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return quotes, nil
}

// GetDashboard assembles the home-screen snapshot across all classes
func (s *Service) GetDashboard(ctx context.Context) (*Dashboard, error) {
	dashboard := &Dashboard{}

	g, gctx := errgroup.WithContext(ctx)
	fetch := func(class AssetClass, dest *[]*Quote) {
		g.Go(func() error {
			quotes, err := s.GetCatalogQuotes(gctx, class)
			if err != nil {
				return err
			}
			*dest = quotes
			return nil
		})
	}

	fetch(AssetUSIndex, &dashboard.USIndexes)
	fetch(AssetKRIndex, &dashboard.KRIndexes)
	fetch(AssetUSStock, &dashboard.USStocks)
	fetch(AssetKRStock, &dashboard.KRStocks)
	fetch(AssetETF, &dashboard.ETFs)
	fetch(AssetCommodity, &dashboard.Commodities)
	fetch(AssetCurrency, &dashboard.Currencies)

	if err := g.Wait(); err != nil {
		return nil, err
	}

	dashboard.LastUpdated = time.Now().Format("2006-01-02 15:04:05")
	dashboard.CacheStatus = s.CacheStatus(ctx)
	return dashboard, nil
}

// ForceRefresh busts the cached quote and refetches
func (s *Service) ForceRefresh(ctx context.Context, class AssetClass, symbol string) (*Quote, error) {
	if err := s.cache.Delete(ctx, quoteKey(symbol), enhancedKey(symbol)); err != nil {
		logger.WithError(err).Warn("Failed to bust quote cache")
	}
	return s.GetQuote(ctx, class, symbol)
}

// CacheStatus reports which catalog symbols are currently cached
func (s *Service) CacheStatus(ctx context.Context) map[string]interface{} {
	status := make(map[string]interface{})
	cachedCount := 0
	total := 0

	for class, catalog := range catalogByClass {
		classCached := 0
		for symbol := range catalog {
			total++
			ok, err := s.cache.Exists(ctx, quoteKey(symbol))
			if err == nil && ok {
				classCached++
				cachedCount++
			}
		}
		status[string(class)] = map[string]interface{}{
			"cached": classCached,
			"total":  len(catalog),
		}
	}

	status["cached_symbols"] = cachedCount
	status["total_symbols"] = total
	return status
}

// buildQuote computes the quote fields from the last two daily bars
func (s *Service) buildQuote(class AssetClass, symbol string, bars *ChartBars) (*Quote, error) {
	i, ok := bars.Latest()
	if !ok {
		return nil, fmt.Errorf("no usable bars for %s", symbol)
	}

	info, _ := LookupSymbol(class, symbol)

	previousClose := bars.Close[i]
	if i > 0 && bars.Close[i-1] != 0 {
		previousClose = bars.Close[i-1]
	}

	price := bars.Close[i]
	change := price - previousClose
	changePercent := 0.0
	if previousClose != 0 {
		changePercent = change / previousClose * 100
	}

	date := "N/A"
	if i < len(bars.Timestamps) {
		date = time.Unix(bars.Timestamps[i], 0).UTC().Format("2006-01-02")
	}

	var volume int64
	if i < len(bars.Volume) {
		volume = bars.Volume[i]
	}
	var open, high, low float64
	if i < len(bars.Open) {
		open = bars.Open[i]
	}
	if i < len(bars.High) {
		high = bars.High[i]
	}
	if i < len(bars.Low) {
		low = bars.Low[i]
	}

	return &Quote{
		Symbol:        symbol,
		Name:          info.Name,
		Sector:        info.Sector,
		Market:        info.Market,
		Type:          info.Type,
		Price:         round2(price),
		Open:          round2(open),
		High:          round2(high),
		Low:           round2(low),
		Volume:        volume,
		PreviousClose: round2(previousClose),
		Change:        round2(change),
		ChangePercent: round2(changePercent),
		Date:          date,
		DataSource:    SourceUpstream,
	}, nil
}

func yearRange(bars *ChartBars) (high, low float64) {
	for _, h := range bars.High {
		if h > high {
			high = h
		}
	}
	for _, l := range bars.Low {
		if l > 0 && (low == 0 || l < low) {
			low = l
		}
	}
	return round2(high), round2(low)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
