package market

import "fmt"

// AssetClass categorizes a symbol for caching and fallback behavior
type AssetClass string

const (
	AssetUSStock   AssetClass = "us_stock"
	AssetKRStock   AssetClass = "kr_stock"
	AssetUSIndex   AssetClass = "us_index"
	AssetKRIndex   AssetClass = "kr_index"
	AssetETF       AssetClass = "etf"
	AssetSectorETF AssetClass = "sector_etf"
	AssetCommodity AssetClass = "commodity"
	AssetCurrency  AssetClass = "currency"
)

// SymbolInfo is the static metadata for a catalog entry
type SymbolInfo struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Sector   string  `json:"sector,omitempty"`
	Market   string  `json:"market,omitempty"`
	Type     string  `json:"type,omitempty"`
	Category string  `json:"category,omitempty"`
	Tracks   string  `json:"tracks,omitempty"`
	Fallback float64 `json:"-"`
}

// Quote is the normalized market quote returned by the service
type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Sector        string  `json:"sector,omitempty"`
	Market        string  `json:"market,omitempty"`
	Type          string  `json:"type,omitempty"`
	Price         float64 `json:"price"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        int64   `json:"volume"`
	PreviousClose float64 `json:"previous_close"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Date          string  `json:"date"`
	DataSource    string  `json:"data_source"`
}

// EnhancedQuote extends Quote with the 52-week range from 1y history
type EnhancedQuote struct {
	Quote
	FiftyTwoWeekHigh float64 `json:"fifty_two_week_high"`
	FiftyTwoWeekLow  float64 `json:"fifty_two_week_low"`
	Enhanced         bool    `json:"enhanced"`
}

// Data source tags
const (
	SourceUpstream = "yahoo"
	SourceCache    = "cache"
	SourceFallback = "default"
)

// UpstreamError is an HTTP-level failure from the quote upstream
type UpstreamError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.Code, e.Message)
}

// Dashboard bundles the snapshot the frontend home screen needs
type Dashboard struct {
	USIndexes   []*Quote               `json:"us_indexes"`
	KRIndexes   []*Quote               `json:"kr_indexes"`
	USStocks    []*Quote               `json:"us_stocks"`
	KRStocks    []*Quote               `json:"kr_stocks"`
	ETFs        []*Quote               `json:"etfs"`
	Commodities []*Quote               `json:"commodities"`
	Currencies  []*Quote               `json:"currencies"`
	LastUpdated string                 `json:"last_updated"`
	CacheStatus map[string]interface{} `json:"cache_status"`
}
