package market

// Symbol catalogs served by the market endpoints. Fallback prices are
// used when the upstream is unreachable so the frontend always renders.

// USStocks are the tracked US large caps
var USStocks = map[string]SymbolInfo{
	"AAPL":  {Symbol: "AAPL", Name: "Apple Inc", Sector: "Technology", Fallback: 220.00},
	"MSFT":  {Symbol: "MSFT", Name: "Microsoft Corporation", Sector: "Technology", Fallback: 430.00},
	"GOOGL": {Symbol: "GOOGL", Name: "Alphabet Inc", Sector: "Technology", Fallback: 160.00},
	"TSLA":  {Symbol: "TSLA", Name: "Tesla Inc", Sector: "Consumer Cyclical", Fallback: 240.00},
	"AMZN":  {Symbol: "AMZN", Name: "Amazon.com Inc", Sector: "Consumer Cyclical", Fallback: 170.00},
	"NVDA":  {Symbol: "NVDA", Name: "NVIDIA Corporation", Sector: "Technology", Fallback: 450.00},
}

// KRStocks are the tracked KRX listings (.KS suffix for Yahoo)
var KRStocks = map[string]SymbolInfo{
	"005930.KS": {Symbol: "005930.KS", Name: "삼성전자", Sector: "Technology", Market: "KOSPI", Fallback: 75000},
	"000660.KS": {Symbol: "000660.KS", Name: "SK하이닉스", Sector: "Technology", Market: "KOSPI", Fallback: 128000},
	"035420.KS": {Symbol: "035420.KS", Name: "NAVER", Sector: "Communication Services", Market: "KOSPI", Fallback: 180000},
	"035720.KS": {Symbol: "035720.KS", Name: "카카오", Sector: "Communication Services", Market: "KOSPI", Fallback: 45000},
	"005380.KS": {Symbol: "005380.KS", Name: "현대차", Sector: "Consumer Cyclical", Market: "KOSPI", Fallback: 190000},
	"105560.KS": {Symbol: "105560.KS", Name: "KB금융", Sector: "Financials", Market: "KOSPI", Fallback: 0},
}

// USIndexes are the tracked US indexes
var USIndexes = map[string]SymbolInfo{
	"^IXIC": {Symbol: "^IXIC", Name: "NASDAQ Composite", Type: "Index", Market: "NASDAQ", Fallback: 17000.00},
	"^GSPC": {Symbol: "^GSPC", Name: "S&P 500", Type: "Index", Market: "NYSE", Fallback: 5500.00},
}

// KRIndexes are the tracked Korean indexes
var KRIndexes = map[string]SymbolInfo{
	"^KS11": {Symbol: "^KS11", Name: "KOSPI", Type: "Index", Market: "KRX", Fallback: 2600.00},
	"^KQ11": {Symbol: "^KQ11", Name: "KOSDAQ", Type: "Index", Market: "KRX", Fallback: 800.00},
}

// ETFs are the tracked broad-market ETFs
var ETFs = map[string]SymbolInfo{
	"QQQ": {Symbol: "QQQ", Name: "Invesco QQQ Trust", Type: "ETF", Tracks: "NASDAQ-100", Fallback: 480.00},
	"SPY": {Symbol: "SPY", Name: "SPDR S&P 500 ETF Trust", Type: "ETF", Tracks: "S&P 500", Fallback: 550.00},
	"IVV": {Symbol: "IVV", Name: "iShares Core S&P 500 ETF", Type: "ETF", Tracks: "S&P 500", Fallback: 550.00},
	"VTI": {Symbol: "VTI", Name: "Vanguard Total Stock Market ETF", Type: "ETF", Tracks: "Total Stock Market", Fallback: 280.00},
	"VEA": {Symbol: "VEA", Name: "Vanguard FTSE Developed Markets ETF", Type: "ETF", Tracks: "International Developed Markets"},
	"VWO": {Symbol: "VWO", Name: "Vanguard FTSE Emerging Markets ETF", Type: "ETF", Tracks: "Emerging Markets"},
}

// SectorETFs are the SPDR sector funds
var SectorETFs = map[string]SymbolInfo{
	"XLK":  {Symbol: "XLK", Name: "Technology Select Sector SPDR Fund", Type: "ETF", Sector: "Technology"},
	"XLV":  {Symbol: "XLV", Name: "Health Care Select Sector SPDR Fund", Type: "ETF", Sector: "Health Care"},
	"XLE":  {Symbol: "XLE", Name: "Energy Select Sector SPDR Fund", Type: "ETF", Sector: "Energy"},
	"XLF":  {Symbol: "XLF", Name: "Financial Select Sector SPDR Fund", Type: "ETF", Sector: "Financials"},
	"XLI":  {Symbol: "XLI", Name: "Industrial Select Sector SPDR Fund", Type: "ETF", Sector: "Industrials"},
	"XLP":  {Symbol: "XLP", Name: "Consumer Staples Select Sector SPDR Fund", Type: "ETF", Sector: "Consumer Staples"},
	"XLY":  {Symbol: "XLY", Name: "Consumer Discretionary Select Sector SPDR Fund", Type: "ETF", Sector: "Consumer Discretionary"},
	"XLU":  {Symbol: "XLU", Name: "Utilities Select Sector SPDR Fund", Type: "ETF", Sector: "Utilities"},
	"XLB":  {Symbol: "XLB", Name: "Materials Select Sector SPDR Fund", Type: "ETF", Sector: "Materials"},
	"XLRE": {Symbol: "XLRE", Name: "Real Estate Select Sector SPDR Fund", Type: "ETF", Sector: "Real Estate"},
}

// Commodities are futures plus two metal trust ETFs
var Commodities = map[string]SymbolInfo{
	"GC=F": {Symbol: "GC=F", Name: "Gold Futures", Type: "Commodity", Category: "Precious Metal", Fallback: 2420.35},
	"SI=F": {Symbol: "SI=F", Name: "Silver Futures", Type: "Commodity", Category: "Precious Metal", Fallback: 30.12},
	"CL=F": {Symbol: "CL=F", Name: "WTI Crude Oil Futures", Type: "Commodity", Category: "Energy", Fallback: 64.84},
	"BZ=F": {Symbol: "BZ=F", Name: "Brent Crude Oil Futures", Type: "Commodity", Category: "Energy"},
	"NG=F": {Symbol: "NG=F", Name: "Natural Gas Futures", Type: "Commodity", Category: "Energy"},
	"GOLD": {Symbol: "GOLD", Name: "SPDR Gold Trust", Type: "ETF", Category: "Precious Metal", Fallback: 242.00},
	"SLV":  {Symbol: "SLV", Name: "iShares Silver Trust", Type: "ETF", Category: "Precious Metal", Fallback: 28.50},
}

// Currencies are the tracked FX pairs
var Currencies = map[string]SymbolInfo{
	"USDKRW=X": {Symbol: "USDKRW=X", Name: "USD/KRW", Type: "Currency", Fallback: 1376.20},
	"EURUSD=X": {Symbol: "EURUSD=X", Name: "EUR/USD", Type: "Currency", Fallback: 1.0850},
	"GBPUSD=X": {Symbol: "GBPUSD=X", Name: "GBP/USD", Type: "Currency", Fallback: 1.2650},
	"JPYUSD=X": {Symbol: "JPYUSD=X", Name: "JPY/USD", Type: "Currency"},
	"USDJPY=X": {Symbol: "USDJPY=X", Name: "USD/JPY", Type: "Currency", Fallback: 149.50},
	"AUDUSD=X": {Symbol: "AUDUSD=X", Name: "AUD/USD", Type: "Currency"},
}

var catalogByClass = map[AssetClass]map[string]SymbolInfo{
	AssetUSStock:   USStocks,
	AssetKRStock:   KRStocks,
	AssetUSIndex:   USIndexes,
	AssetKRIndex:   KRIndexes,
	AssetETF:       ETFs,
	AssetSectorETF: SectorETFs,
	AssetCommodity: Commodities,
	AssetCurrency:  Currencies,
}

// Catalog returns the symbol map for an asset class
func Catalog(class AssetClass) map[string]SymbolInfo {
	return catalogByClass[class]
}

// LookupSymbol finds a symbol within an asset class catalog
func LookupSymbol(class AssetClass, symbol string) (SymbolInfo, bool) {
	info, ok := catalogByClass[class][symbol]
	return info, ok
}

// FallbackQuote builds the static quote used when the upstream is down
func FallbackQuote(class AssetClass, symbol string) *Quote {
	info, ok := LookupSymbol(class, symbol)
	if !ok {
		info = SymbolInfo{Symbol: symbol, Name: "Unknown"}
	}

	return &Quote{
		Symbol:        symbol,
		Name:          info.Name,
		Sector:        info.Sector,
		Market:        info.Market,
		Type:          info.Type,
		Price:         info.Fallback,
		Open:          info.Fallback,
		High:          info.Fallback,
		Low:           info.Fallback,
		Volume:        0,
		PreviousClose: info.Fallback,
		Change:        0,
		ChangePercent: 0,
		Date:          "N/A",
		DataSource:    SourceFallback,
	}
}
