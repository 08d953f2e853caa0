package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"dontcare/internal/errors"
	"dontcare/internal/logger"
	"dontcare/internal/market"
	"dontcare/internal/middleware"
	"dontcare/internal/monitoring"
)

// streamInterval is how often a market stream pushes the current quote
const streamInterval = 15 * time.Second

// WebSocketHandler streams quotes to connected clients
type WebSocketHandler struct {
	market   *market.Service
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the streaming handler
func NewWebSocketHandler(svc *market.Service, upgrader websocket.Upgrader) *WebSocketHandler {
	return &WebSocketHandler{market: svc, upgrader: upgrader}
}

// MarketStream pushes the quote for one symbol on a fixed interval.
// Quotes come through the service cache, so many clients watching the
// same symbol share one upstream fetch.
func (h *WebSocketHandler) MarketStream(c *gin.Context) {
	class := market.AssetClass(c.Param("class"))
	symbol := c.Param("symbol")
	if _, ok := market.LookupSymbol(class, symbol); !ok {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeSymbolNotFound,
			"Unknown symbol: "+symbol, nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	monitoring.WebsocketOpened()
	defer monitoring.WebsocketClosed()

	logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"ip":     c.ClientIP(),
	}).Info("Market stream opened")

	// reader goroutine: surfaces client disconnects
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	send := func() bool {
		quote, err := h.market.GetQuote(ctx, class, symbol)
		if err != nil {
			logger.WithError(err).WithField("symbol", symbol).Warn("Stream quote fetch failed")
			return true
		}
		if err := conn.WriteJSON(quote); err != nil {
			return false
		}
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}
