package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dontcare/internal/database"
	"dontcare/internal/errors"
	"dontcare/internal/middleware"
	"dontcare/internal/news"
)

// NewsHandler serves the crawl trigger and stored article listings
type NewsHandler struct {
	news *news.Service
	db   *database.DB
}

// NewNewsHandler creates the news handler
func NewNewsHandler(svc *news.Service, db *database.DB) *NewsHandler {
	return &NewsHandler{news: svc, db: db}
}

// Crawl runs one crawl of the news search API. GET and POST accept the
// same parameters; POST also accepts them as a JSON body.
func (h *NewsHandler) Crawl(c *gin.Context) {
	opts := news.CrawlOptions{
		Query:         c.Query("query"),
		Sort:          c.DefaultQuery("sort", news.SortByDate),
		ExtractImages: c.DefaultQuery("extract_images", "true") == "true",
	}
	opts.Display, _ = strconv.Atoi(c.DefaultQuery("display", "10"))
	opts.Start, _ = strconv.Atoi(c.DefaultQuery("start", "1"))

	if c.Request.Method == http.MethodPost && c.Request.ContentLength > 0 {
		var body struct {
			Query         string `json:"query"`
			Display       int    `json:"display"`
			Start         int    `json:"start"`
			Sort          string `json:"sort"`
			ExtractImages *bool  `json:"extract_images"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidInput, "Invalid crawl request", err))
			return
		}
		if body.Query != "" {
			opts.Query = body.Query
		}
		if body.Display > 0 {
			opts.Display = body.Display
		}
		if body.Start > 0 {
			opts.Start = body.Start
		}
		if body.Sort != "" {
			opts.Sort = body.Sort
		}
		if body.ExtractImages != nil {
			opts.ExtractImages = *body.ExtractImages
		}
	}

	if opts.Sort != news.SortByDate && opts.Sort != news.SortBySimilarity {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeInvalidInput, "sort must be 'sim' or 'date'", nil))
		return
	}

	result, err := h.news.Crawl(c.Request.Context(), opts)
	if err != nil {
		middleware.AbortWithError(c, errors.WrapError(err, errors.ErrCodeNewsCrawl, "News crawl failed"))
		return
	}
	if len(result.Items) == 0 {
		middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeNotFound, "No articles found for the query", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"query":       result.Query,
		"total_count": result.TotalCount,
		"saved_count": result.SavedCount,
		"items":       result.Items,
	})
}

// List returns stored articles, optionally filtered by publisher
func (h *NewsHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	publisher := c.Query("publisher")

	articles, total, err := h.db.ListNewsArticles(c.Request.Context(), publisher, limit, offset)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if articles == nil {
		articles = []*database.NewsArticle{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"total":    total,
		"count":    len(articles),
		"articles": articles,
	})
}
