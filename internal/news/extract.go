package news

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	xhtml "golang.org/x/net/html"

	"dontcare/internal/logger"
)

const extractorUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

var tagPattern = regexp.MustCompile(`<.*?>`)

// StripTags removes HTML tags and unescapes entities in API snippets
func StripTags(s string) string {
	return strings.TrimSpace(xhtml.UnescapeString(tagPattern.ReplaceAllString(s, "")))
}

// ContentHash builds the dedup key for an article
func ContentHash(title, link string) string {
	sum := sha256.Sum256([]byte(title + link))
	return hex.EncodeToString(sum[:])
}

// ImageExtractor pulls image URLs out of article pages without storing
// the images themselves.
type ImageExtractor struct {
	httpClient *http.Client
	maxImages  int
}

// NewImageExtractor creates an extractor capped at maxImages per article
func NewImageExtractor(timeout time.Duration, maxImages int) *ImageExtractor {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if maxImages <= 0 {
		maxImages = 3
	}
	return &ImageExtractor{
		httpClient: &http.Client{Timeout: timeout},
		maxImages:  maxImages,
	}
}

// ExtractFromURL fetches an article page and returns up to maxImages
// image URLs: the og:image first, then images inside article content,
// then any sufficiently large image. Failures return an empty list.
func (e *ImageExtractor) ExtractFromURL(ctx context.Context, articleURL string) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", extractorUserAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		logger.WithError(err).WithField("url", articleURL).Debug("Image extraction fetch failed")
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	doc, err := xhtml.Parse(resp.Body)
	if err != nil {
		return nil
	}

	return e.extract(doc, articleURL)
}

func (e *ImageExtractor) extract(doc *xhtml.Node, articleURL string) []string {
	base, err := url.Parse(articleURL)
	if err != nil {
		return nil
	}

	var (
		urls []string
		seen = make(map[string]bool)
	)
	add := func(raw string) {
		resolved := resolveImageURL(base, raw)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		urls = append(urls, resolved)
	}

	if og := findOGImage(doc); og != "" {
		add(og)
	}
	for _, src := range findArticleImages(doc) {
		add(src)
	}
	for _, src := range findLargeImages(doc) {
		add(src)
	}

	if len(urls) > e.maxImages {
		urls = urls[:e.maxImages]
	}
	return urls
}

func findOGImage(doc *xhtml.Node) string {
	var og string
	walk(doc, func(n *xhtml.Node) {
		if og != "" || n.Type != xhtml.ElementNode || n.Data != "meta" {
			return
		}
		if attr(n, "property") == "og:image" {
			og = attr(n, "content")
		}
	})
	return og
}

// findArticleImages collects img sources inside article content
// containers (article tags or article/news-content/content classes).
func findArticleImages(doc *xhtml.Node) []string {
	var srcs []string
	var inArticle func(n *xhtml.Node, inside bool)
	inArticle = func(n *xhtml.Node, inside bool) {
		if n.Type == xhtml.ElementNode {
			if n.Data == "article" || isContentContainer(n) {
				inside = true
			}
			if inside && n.Data == "img" {
				if src := imgSrc(n); src != "" {
					srcs = append(srcs, src)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			inArticle(c, inside)
		}
	}
	inArticle(doc, false)
	return srcs
}

// findLargeImages collects any img that declares a large enough size
// or declares no size at all.
func findLargeImages(doc *xhtml.Node) []string {
	var srcs []string
	walk(doc, func(n *xhtml.Node) {
		if n.Type != xhtml.ElementNode || n.Data != "img" {
			return
		}
		src := imgSrc(n)
		if src == "" {
			return
		}
		width := attrNumber(n, "width")
		height := attrNumber(n, "height")
		if (width >= 200 && height >= 150) || (width == 0 && height == 0) {
			srcs = append(srcs, src)
		}
	})
	return srcs
}

func isContentContainer(n *xhtml.Node) bool {
	classes := attr(n, "class")
	for _, class := range strings.Fields(classes) {
		switch class {
		case "article", "news-content", "content":
			return true
		}
	}
	return false
}

func imgSrc(n *xhtml.Node) string {
	for _, key := range []string{"src", "data-src", "data-original"} {
		if v := attr(n, key); v != "" {
			return v
		}
	}
	return ""
}

func attr(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

var numberPattern = regexp.MustCompile(`\d+`)

func attrNumber(n *xhtml.Node, key string) int {
	m := numberPattern.FindString(attr(n, key))
	if m == "" {
		return 0
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return v
}

func walk(n *xhtml.Node, fn func(*xhtml.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// resolveImageURL makes the source absolute and rejects unusable URLs
func resolveImageURL(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme == "" || resolved.Host == "" {
		return ""
	}
	return resolved.String()
}
