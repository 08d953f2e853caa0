package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "dontcare/internal/errors"
)

// Sort orders accepted by the search API
const (
	SortByDate       = "date"
	SortBySimilarity = "sim"
)

// SearchItem is one raw article from the Naver news search API. Title
// and Description may contain HTML tags and entities.
type SearchItem struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

// SearchResult is the search API envelope
type SearchResult struct {
	Total   int          `json:"total"`
	Start   int          `json:"start"`
	Display int          `json:"display"`
	Items   []SearchItem `json:"items"`
}

// NaverClient calls the Naver news search API
type NaverClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// NewNaverClient creates a search API client
func NewNaverClient(baseURL, clientID, clientSecret string, timeout time.Duration) *NaverClient {
	if baseURL == "" {
		baseURL = "https://openapi.naver.com"
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &NaverClient{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Search runs one news search page
func (c *NaverClient) Search(ctx context.Context, query string, display, start int, sort string) (*SearchResult, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return nil, apperrors.NewAppError(apperrors.ErrCodeNewsUpstream, "Naver API credentials not configured", nil)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("display", strconv.Itoa(display))
	params.Set("start", strconv.Itoa(start))
	params.Set("sort", sort)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/search/news.json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", c.clientID)
	req.Header.Set("X-Naver-Client-Secret", c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrCodeNewsUpstream, "Naver news request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, apperrors.NewAppError(apperrors.ErrCodeUnauthorized, "Naver API authentication failed, check API keys", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.NewAppError(apperrors.ErrCodeRateLimit, "Naver API request quota exceeded", nil)
	case resp.StatusCode != http.StatusOK:
		return nil, apperrors.NewAppError(apperrors.ErrCodeNewsUpstream,
			fmt.Sprintf("Naver news request returned status %d", resp.StatusCode), nil)
	}

	var result SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrCodeNewsUpstream, "Failed to decode Naver news response", err)
	}

	return &result, nil
}
