package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dontcare/internal/errors"
	"dontcare/internal/market"
	"dontcare/internal/market/kis"
	"dontcare/internal/middleware"
)

// MarketHandler serves catalog quotes and the KIS index snapshot
type MarketHandler struct {
	market *market.Service
	kis    *kis.Client
}

// NewMarketHandler creates the market data handler
func NewMarketHandler(svc *market.Service, kisClient *kis.Client) *MarketHandler {
	return &MarketHandler{market: svc, kis: kisClient}
}

// assetClassFromParam validates the :class path segment
func assetClassFromParam(c *gin.Context) (market.AssetClass, bool) {
	class := market.AssetClass(c.Param("class"))
	if market.Catalog(class) == nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeNotFound,
			"Unknown asset class: "+c.Param("class"), nil))
		return "", false
	}
	return class, true
}

// CatalogQuotes returns every quote of one asset class
func (h *MarketHandler) CatalogQuotes(c *gin.Context) {
	class, ok := assetClassFromParam(c)
	if !ok {
		return
	}

	quotes, err := h.market.GetCatalogQuotes(c.Request.Context(), class)
	if err != nil {
		middleware.AbortWithError(c, errors.WrapError(err, errors.ErrCodeMarketDataUnavailable, "Failed to fetch quotes"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "class": class, "count": len(quotes), "quotes": quotes})
}

// Quote returns one symbol's quote
func (h *MarketHandler) Quote(c *gin.Context) {
	class, ok := assetClassFromParam(c)
	if !ok {
		return
	}
	symbol := c.Param("symbol")
	if _, ok := market.LookupSymbol(class, symbol); !ok {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeSymbolNotFound,
			"Unknown symbol: "+symbol, nil))
		return
	}

	quote, err := h.market.GetQuote(c.Request.Context(), class, symbol)
	if err != nil {
		middleware.AbortWithError(c, errors.WrapError(err, errors.ErrCodeMarketDataUnavailable, "Failed to fetch quote"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "quote": quote})
}

// EnhancedQuote returns the quote with its 52-week range
func (h *MarketHandler) EnhancedQuote(c *gin.Context) {
	class, ok := assetClassFromParam(c)
	if !ok {
		return
	}
	symbol := c.Param("symbol")
	if _, ok := market.LookupSymbol(class, symbol); !ok {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeSymbolNotFound,
			"Unknown symbol: "+symbol, nil))
		return
	}

	quote, err := h.market.GetEnhancedQuote(c.Request.Context(), class, symbol)
	if err != nil {
		middleware.AbortWithError(c, errors.WrapError(err, errors.ErrCodeMarketDataUnavailable, "Failed to fetch enhanced quote"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "quote": quote})
}

// ForceRefresh busts the cache and refetches a symbol
func (h *MarketHandler) ForceRefresh(c *gin.Context) {
	class, ok := assetClassFromParam(c)
	if !ok {
		return
	}
	symbol := c.Param("symbol")
	if _, ok := market.LookupSymbol(class, symbol); !ok {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeSymbolNotFound,
			"Unknown symbol: "+symbol, nil))
		return
	}

	quote, err := h.market.ForceRefresh(c.Request.Context(), class, symbol)
	if err != nil {
		middleware.AbortWithError(c, errors.WrapError(err, errors.ErrCodeMarketDataUnavailable, "Failed to refresh quote"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "quote": quote})
}

// Dashboard returns the home-screen snapshot across all asset classes
func (h *MarketHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.market.GetDashboard(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, errors.WrapError(err, errors.ErrCodeMarketDataUnavailable, "Failed to assemble dashboard"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "dashboard": dashboard})
}

// CacheStatus reports which symbols are currently cached
func (h *MarketHandler) CacheStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "cache_status": h.market.CacheStatus(c.Request.Context())})
}

// KISMarkets returns the kospi/kosdaq/nasdaq index snapshot
func (h *MarketHandler) KISMarkets(c *gin.Context) {
	if h.kis == nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeMarketDataUnavailable,
			"KIS integration is not configured", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "markets": h.kis.MarketSnapshot(c.Request.Context())})
}

// KISTokenInfo reports the KIS token state for diagnostics
func (h *MarketHandler) KISTokenInfo(c *gin.Context) {
	if h.kis == nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeMarketDataUnavailable,
			"KIS integration is not configured", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "token": h.kis.TokenInfo(c.Request.Context())})
}
