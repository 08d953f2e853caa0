package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Crawl log statuses
const (
	CrawlStatusSuccess = "SUCCESS"
	CrawlStatusPartial = "PARTIAL"
	CrawlStatusFailed  = "FAILED"
)

// NewsArticle represents one stored news article. ContentHash is
// sha256(title+link) and deduplicates repeat crawls.
type NewsArticle struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Link        string    `json:"link" db:"link"`
	Publisher   string    `json:"publisher" db:"publisher"`
	PublishedAt time.Time `json:"published_at" db:"published_at"`
	ImageURLs   []string  `json:"image_urls" db:"image_urls"`
	ContentHash string    `json:"-" db:"content_hash"`
	Query       string    `json:"query" db:"query"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// NewsCrawlLog records the outcome of one crawl run
type NewsCrawlLog struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Query        string    `json:"query" db:"query"`
	FoundCount   int       `json:"found_count" db:"found_count"`
	CrawledCount int       `json:"crawled_count" db:"crawled_count"`
	SavedCount   int       `json:"saved_count" db:"saved_count"`
	Status       string    `json:"status" db:"status"`
	ErrorMessage string    `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// SaveNewsArticle inserts an article unless its content hash already
// exists. Returns true when a new row was written.
func (db *DB) SaveNewsArticle(ctx context.Context, article *NewsArticle) (bool, error) {
	if article.ID == (uuid.UUID{}) {
		article.ID = uuid.New()
	}
	article.CreatedAt = time.Now()

	query := `
		INSERT INTO news_articles (id, title, description, link, publisher, published_at, image_urls, content_hash, query, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (content_hash) DO NOTHING
	`

	result, err := db.ExecContext(ctx, query,
		article.ID.String(), article.Title, article.Description, article.Link,
		article.Publisher, article.PublishedAt, pq.Array(article.ImageURLs),
		article.ContentHash, article.Query, article.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to save news article: %w", err)
	}

	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ListNewsArticles returns stored articles, newest first, optionally
// filtered by publisher.
func (db *DB) ListNewsArticles(ctx context.Context, publisher string, limit, offset int) ([]*NewsArticle, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	countQuery := `SELECT COUNT(*) FROM news_articles WHERE ($1 = '' OR publisher = $1)`
	var total int
	if err := db.QueryRowContext(ctx, countQuery, publisher).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count news articles: %w", err)
	}

	query := `
		SELECT id, title, description, link, publisher, published_at, image_urls, content_hash, query, created_at
		FROM news_articles
		WHERE ($1 = '' OR publisher = $1)
		ORDER BY published_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := db.QueryContext(ctx, query, publisher, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list news articles: %w", err)
	}
	defer rows.Close()

	var articles []*NewsArticle
	for rows.Next() {
		var idStr string
		a := &NewsArticle{}
		err := rows.Scan(&idStr, &a.Title, &a.Description, &a.Link, &a.Publisher,
			&a.PublishedAt, pq.Array(&a.ImageURLs), &a.ContentHash, &a.Query, &a.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan news article: %w", err)
		}
		a.ID, err = uuid.Parse(idStr)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to parse article ID: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate news articles: %w", err)
	}

	return articles, total, nil
}

// SaveNewsCrawlLog records one crawl run
func (db *DB) SaveNewsCrawlLog(ctx context.Context, log *NewsCrawlLog) error {
	if log.ID == (uuid.UUID{}) {
		log.ID = uuid.New()
	}
	log.CreatedAt = time.Now()

	query := `
		INSERT INTO news_crawl_logs (id, query, found_count, crawled_count, saved_count, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := db.ExecContext(ctx, query,
		log.ID.String(), log.Query, log.FoundCount, log.CrawledCount,
		log.SavedCount, log.Status, log.ErrorMessage, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save crawl log: %w", err)
	}

	return nil
}
