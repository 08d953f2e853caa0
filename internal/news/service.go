package news

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"dontcare/internal/database"
	"dontcare/internal/logger"
	"dontcare/internal/monitoring"
)

// DefaultQuery is the stock market digest crawled on a schedule
const DefaultQuery = "오늘의 증시"

// naverPubDateLayout is the RFC1123-style format of the pubDate field
const naverPubDateLayout = "Mon, 02 Jan 2006 15:04:05 -0700"

// CrawlOptions control one crawl run
type CrawlOptions struct {
	Query         string
	Display       int
	Start         int
	Sort          string
	ExtractImages bool
}

// CrawledArticle is one article as returned to API clients
type CrawledArticle struct {
	Title           string `json:"title"`
	OriginalLink    string `json:"original_link"`
	Link            string `json:"link"`
	Description     string `json:"description"`
	PublicationDate string `json:"publication_date"`
	Publisher       string `json:"publisher"`
	ImageURL        string `json:"image_url"`
}

// CrawlResult summarizes one crawl run
type CrawlResult struct {
	Query      string           `json:"query"`
	TotalCount int              `json:"total_count"`
	SavedCount int              `json:"saved_count"`
	Items      []CrawledArticle `json:"items"`
}

// Service crawls Naver news and persists deduplicated articles
type Service struct {
	naver       *NaverClient
	images      *ImageExtractor
	db          *database.DB
	maxParallel int
}

// NewService creates the news service
func NewService(naver *NaverClient, images *ImageExtractor, db *database.DB, maxParallel int) *Service {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Service{naver: naver, images: images, db: db, maxParallel: maxParallel}
}

// Crawl searches the news API, cleans each item, optionally extracts
// images, stores deduplicated articles, and records a crawl log. The
// crawl log status is FAILED when nothing was fetched, PARTIAL when
// some articles could not be stored, SUCCESS otherwise.
func (s *Service) Crawl(ctx context.Context, opts CrawlOptions) (*CrawlResult, error) {
	if opts.Query == "" {
		opts.Query = DefaultQuery
	}
	if opts.Display <= 0 || opts.Display > 100 {
		opts.Display = 10
	}
	if opts.Start <= 0 {
		opts.Start = 1
	}
	if opts.Sort != SortBySimilarity {
		opts.Sort = SortByDate
	}

	result, err := s.naver.Search(ctx, opts.Query, opts.Display, opts.Start, opts.Sort)
	if err != nil {
		s.writeCrawlLog(ctx, &database.NewsCrawlLog{
			Query:        opts.Query,
			Status:       database.CrawlStatusFailed,
			ErrorMessage: err.Error(),
		})
		return nil, err
	}

	articles := make([]CrawledArticle, len(result.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for i, item := range result.Items {
		i, item := i, item
		g.Go(func() error {
			articles[i] = s.buildArticle(gctx, item, opts.ExtractImages)
			return nil
		})
	}
	g.Wait()

	saved, storeErrs := s.store(ctx, opts.Query, articles)

	status := database.CrawlStatusSuccess
	errMsg := ""
	if storeErrs > 0 {
		status = database.CrawlStatusPartial
		errMsg = "some articles could not be stored"
	}
	s.writeCrawlLog(ctx, &database.NewsCrawlLog{
		Query:        opts.Query,
		FoundCount:   result.Total,
		CrawledCount: len(articles),
		SavedCount:   saved,
		Status:       status,
		ErrorMessage: errMsg,
	})

	return &CrawlResult{
		Query:      opts.Query,
		TotalCount: len(articles),
		SavedCount: saved,
		Items:      articles,
	}, nil
}

func (s *Service) buildArticle(ctx context.Context, item SearchItem, extractImages bool) CrawledArticle {
	article := CrawledArticle{
		Title:           StripTags(item.Title),
		OriginalLink:    item.OriginalLink,
		Link:            item.Link,
		Description:     StripTags(item.Description),
		PublicationDate: item.PubDate,
		Publisher:       Publisher(item),
	}

	if extractImages && s.images != nil && item.OriginalLink != "" {
		if urls := s.images.ExtractFromURL(ctx, item.OriginalLink); len(urls) > 0 {
			article.ImageURL = urls[0]
		}
	}

	return article
}

// store writes the articles, counting new rows and failures
func (s *Service) store(ctx context.Context, query string, articles []CrawledArticle) (saved, failures int) {
	if s.db == nil {
		return 0, 0
	}

	for _, a := range articles {
		publishedAt, err := time.Parse(naverPubDateLayout, a.PublicationDate)
		if err != nil {
			publishedAt = time.Now()
		}

		var imageURLs []string
		if a.ImageURL != "" {
			imageURLs = []string{a.ImageURL}
		}

		ok, err := s.db.SaveNewsArticle(ctx, &database.NewsArticle{
			Title:       a.Title,
			Description: a.Description,
			Link:        a.Link,
			Publisher:   a.Publisher,
			PublishedAt: publishedAt,
			ImageURLs:   imageURLs,
			ContentHash: ContentHash(a.Title, a.Link),
			Query:       query,
		})
		if err != nil {
			logger.WithError(err).WithField("title", a.Title).Warn("Failed to store article")
			failures++
			continue
		}
		if ok {
			saved++
			monitoring.RecordNewsArticleSaved()
		}
	}
	return saved, failures
}

func (s *Service) writeCrawlLog(ctx context.Context, log *database.NewsCrawlLog) {
	if s.db == nil {
		return
	}
	if err := s.db.SaveNewsCrawlLog(ctx, log); err != nil {
		logger.WithError(err).Warn("Failed to write crawl log")
	}
}
