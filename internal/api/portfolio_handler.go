package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dontcare/internal/database"
	"dontcare/internal/errors"
	"dontcare/internal/middleware"
)

// PortfolioHandler implements the holdings CRUD endpoints
type PortfolioHandler struct {
	db *database.DB
}

// NewPortfolioHandler creates the portfolio handler
func NewPortfolioHandler(db *database.DB) *PortfolioHandler {
	return &PortfolioHandler{db: db}
}

type portfolioCreateRequest struct {
	StockName     string `json:"stock_name" binding:"required,min=1,max=100"`
	StockCode     string `json:"stock_code" binding:"required,min=1,max=20"`
	Quantity      int64  `json:"quantity" binding:"required,gt=0"`
	PurchasePrice string `json:"purchase_price" binding:"required"`
	CashBalance   string `json:"cash_balance"`
}

type portfolioUpdateRequest struct {
	Quantity      int64  `json:"quantity" binding:"required,gt=0"`
	PurchasePrice string `json:"purchase_price" binding:"required"`
	CashBalance   string `json:"cash_balance"`
}

// List returns the user's holdings, newest first
func (h *PortfolioHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	items, err := h.db.ListPortfolios(c.Request.Context(), userID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if items == nil {
		items = []*database.Portfolio{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(items), "portfolios": items})
}

// Create adds a holding; one row per stock code per user
func (h *PortfolioHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req portfolioCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidInput, "Invalid portfolio request", err))
		return
	}
	if req.CashBalance == "" {
		req.CashBalance = "0"
	}

	item, err := h.db.CreatePortfolio(c.Request.Context(), userID,
		req.StockName, req.StockCode, req.Quantity, req.PurchasePrice, req.CashBalance)
	if err == database.ErrDuplicateStock {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeConflict, "Stock already exists in portfolio", nil))
		return
	}
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "portfolio": item})
}

// Get returns one holding owned by the user
func (h *PortfolioHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	portfolioID, ok := portfolioIDFromParam(c)
	if !ok {
		return
	}

	item, err := h.db.GetPortfolio(c.Request.Context(), userID, portfolioID)
	if err == database.ErrPortfolioNotFound {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeNotFound, "Portfolio item not found", nil))
		return
	}
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "portfolio": item})
}

// Update changes quantity, purchase price, and cash balance
func (h *PortfolioHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	portfolioID, ok := portfolioIDFromParam(c)
	if !ok {
		return
	}

	var req portfolioUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidInput, "Invalid portfolio update", err))
		return
	}
	if req.CashBalance == "" {
		req.CashBalance = "0"
	}

	item, err := h.db.UpdatePortfolio(c.Request.Context(), userID, portfolioID,
		req.Quantity, req.PurchasePrice, req.CashBalance)
	if err == database.ErrPortfolioNotFound {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeNotFound, "Portfolio item not found", nil))
		return
	}
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "portfolio": item})
}

// Delete removes a holding owned by the user
func (h *PortfolioHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	portfolioID, ok := portfolioIDFromParam(c)
	if !ok {
		return
	}

	err := h.db.DeletePortfolio(c.Request.Context(), userID, portfolioID)
	if err == database.ErrPortfolioNotFound {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeNotFound, "Portfolio item not found", nil))
		return
	}
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Stats aggregates the user's holdings
func (h *PortfolioHandler) Stats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	stats, err := h.db.GetPortfolioStats(c.Request.Context(), userID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

func portfolioIDFromParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidInput, "Invalid portfolio ID", err))
		return uuid.UUID{}, false
	}
	return id, true
}
