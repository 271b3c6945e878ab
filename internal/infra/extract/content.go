package extract

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	domain "github.com/bryanwahyu/newslens/internal/domain/news"
)

const (
	fetchTimeout    = 10 * time.Second
	maxContentChars = 5000
	userAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Extractor pulls readable text out of an article page. Best effort: the
// caller keeps the provider snippet when extraction fails.
type Extractor struct {
	httpClient *http.Client
}

var _ domain.ContentExtractor = (*Extractor)(nil)

func New() *Extractor {
	return &Extractor{
		httpClient: &http.Client{Timeout: fetchTimeout},
	}
}

// Extract fetches the page and concatenates paragraph text, preferring the
// <article> element when one exists.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch article page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("fetch article page: %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse article page: %w", err)
	}

	// strip elements that only add noise to the text
	doc.Find("script, style, nav, header, footer, aside").Remove()

	scope := doc.Find("article")
	if scope.Length() == 0 {
		scope = doc.Find("body")
	}

	var parts []string
	total := 0
	scope.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return true
		}
		parts = append(parts, text)
		total += len(text)
		return total < maxContentChars
	})

	content := strings.Join(parts, "\n\n")
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}
	if content == "" {
		return "", fmt.Errorf("no paragraph text found at %s", pageURL)
	}
	return content, nil
}
