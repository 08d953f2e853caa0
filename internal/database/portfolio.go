package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrPortfolioNotFound is returned when a holding does not exist or does
// not belong to the requesting user.
var ErrPortfolioNotFound = fmt.Errorf("portfolio item not found")

// ErrDuplicateStock is returned when the user already holds the stock code.
var ErrDuplicateStock = fmt.Errorf("stock already exists in portfolio")

// Portfolio represents one holding in a user's portfolio. Monetary values
// travel as strings through the API and are stored as NUMERIC.
type Portfolio struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	StockName     string    `json:"stock_name" db:"stock_name"`
	StockCode     string    `json:"stock_code" db:"stock_code"`
	Quantity      int64     `json:"quantity" db:"quantity"`
	PurchasePrice string    `json:"purchase_price" db:"purchase_price"`
	CashBalance   string    `json:"cash_balance" db:"cash_balance"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// PortfolioStats aggregates a user's holdings
type PortfolioStats struct {
	TotalStocks         int             `json:"total_stocks"`
	TotalPurchaseAmount string          `json:"total_purchase_amount"`
	TotalCashBalance    string          `json:"total_cash_balance"`
	Holdings            []StockHolding  `json:"holdings"`
}

// StockHolding is the per-stock line in portfolio stats
type StockHolding struct {
	StockName      string `json:"stock_name"`
	StockCode      string `json:"stock_code"`
	Quantity       int64  `json:"quantity"`
	PurchasePrice  string `json:"purchase_price"`
	PurchaseAmount string `json:"purchase_amount"`
}

// CreatePortfolio inserts a holding; a second row for the same user and
// stock code is rejected.
func (db *DB) CreatePortfolio(ctx context.Context, userID uuid.UUID, stockName, stockCode string, quantity int64, purchasePrice, cashBalance string) (*Portfolio, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM portfolios WHERE user_id = $1 AND stock_code = $2`,
		userID.String(), stockCode).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to check duplicate stock: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicateStock
	}

	p := &Portfolio{
		ID:            uuid.New(),
		UserID:        userID,
		StockName:     stockName,
		StockCode:     stockCode,
		Quantity:      quantity,
		PurchasePrice: purchasePrice,
		CashBalance:   cashBalance,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	query := `
		INSERT INTO portfolios (id, user_id, stock_name, stock_code, quantity, purchase_price, cash_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = db.ExecContext(ctx, query,
		p.ID.String(), p.UserID.String(), p.StockName, p.StockCode,
		p.Quantity, p.PurchasePrice, p.CashBalance, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create portfolio item: %w", err)
	}

	return p, nil
}

// ListPortfolios returns a user's holdings, newest first
func (db *DB) ListPortfolios(ctx context.Context, userID uuid.UUID) ([]*Portfolio, error) {
	query := `
		SELECT id, user_id, stock_name, stock_code, quantity, purchase_price, cash_balance, created_at, updated_at
		FROM portfolios WHERE user_id = $1 ORDER BY created_at DESC
	`

	rows, err := db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	var items []*Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate portfolios: %w", err)
	}

	return items, nil
}

// GetPortfolio returns one holding owned by the user
func (db *DB) GetPortfolio(ctx context.Context, userID, portfolioID uuid.UUID) (*Portfolio, error) {
	query := `
		SELECT id, user_id, stock_name, stock_code, quantity, purchase_price, cash_balance, created_at, updated_at
		FROM portfolios WHERE id = $1 AND user_id = $2
	`

	row := db.QueryRowContext(ctx, query, portfolioID.String(), userID.String())
	p, err := scanPortfolioRow(row)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdatePortfolio changes the mutable fields of a holding
func (db *DB) UpdatePortfolio(ctx context.Context, userID, portfolioID uuid.UUID, quantity int64, purchasePrice, cashBalance string) (*Portfolio, error) {
	query := `
		UPDATE portfolios SET quantity = $1, purchase_price = $2, cash_balance = $3, updated_at = $4
		WHERE id = $5 AND user_id = $6
	`

	result, err := db.ExecContext(ctx, query,
		quantity, purchasePrice, cashBalance, time.Now(),
		portfolioID.String(), userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to update portfolio item: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, ErrPortfolioNotFound
	}

	return db.GetPortfolio(ctx, userID, portfolioID)
}

// DeletePortfolio removes a holding owned by the user
func (db *DB) DeletePortfolio(ctx context.Context, userID, portfolioID uuid.UUID) error {
	query := `DELETE FROM portfolios WHERE id = $1 AND user_id = $2`

	result, err := db.ExecContext(ctx, query, portfolioID.String(), userID.String())
	if err != nil {
		return fmt.Errorf("failed to delete portfolio item: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrPortfolioNotFound
	}

	return nil
}

// GetPortfolioStats aggregates holdings count, purchase totals, and cash
func (db *DB) GetPortfolioStats(ctx context.Context, userID uuid.UUID) (*PortfolioStats, error) {
	query := `
		SELECT stock_name, stock_code, quantity, purchase_price,
		       (quantity * purchase_price) AS purchase_amount
		FROM portfolios WHERE user_id = $1 ORDER BY created_at DESC
	`

	rows, err := db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio stats: %w", err)
	}
	defer rows.Close()

	stats := &PortfolioStats{Holdings: []StockHolding{}}
	for rows.Next() {
		var h StockHolding
		if err := rows.Scan(&h.StockName, &h.StockCode, &h.Quantity, &h.PurchasePrice, &h.PurchaseAmount); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		stats.Holdings = append(stats.Holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holdings: %w", err)
	}
	stats.TotalStocks = len(stats.Holdings)

	totals := `
		SELECT COALESCE(SUM(quantity * purchase_price), 0)::text,
		       COALESCE(SUM(cash_balance), 0)::text
		FROM portfolios WHERE user_id = $1
	`
	err = db.QueryRowContext(ctx, totals, userID.String()).Scan(
		&stats.TotalPurchaseAmount, &stats.TotalCashBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate portfolio totals: %w", err)
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPortfolio(rows *sql.Rows) (*Portfolio, error) {
	return scanPortfolioFields(rows)
}

func scanPortfolioRow(row *sql.Row) (*Portfolio, error) {
	p, err := scanPortfolioFields(row)
	if err == sql.ErrNoRows {
		return nil, ErrPortfolioNotFound
	}
	return p, err
}

func scanPortfolioFields(s rowScanner) (*Portfolio, error) {
	var idStr, userIDStr string
	p := &Portfolio{}
	err := s.Scan(&idStr, &userIDStr, &p.StockName, &p.StockCode,
		&p.Quantity, &p.PurchasePrice, &p.CashBalance, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan portfolio item: %w", err)
	}

	p.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse portfolio ID: %w", err)
	}
	p.UserID, err = uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse user ID: %w", err)
	}

	return p, nil
}
