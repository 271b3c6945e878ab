package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domain "github.com/bryanwahyu/newslens/internal/domain/news"
)

const defaultTimeout = 30 * time.Second

// Client talks to the NewsAPI.org v2 endpoints. Only top-headlines and
// everything are used; the provider's response shape and rate limits are
// taken as given.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ domain.Provider = (*Client)(nil)

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// wire format of a NewsAPI article item
type apiArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

type apiResponse struct {
	Status       string       `json:"status"`
	Code         string       `json:"code"`
	Message      string       `json:"message"`
	TotalResults int          `json:"totalResults"`
	Articles     []apiArticle `json:"articles"`
}

// TopHeadlines queries /top-headlines for one country, optionally narrowed
// to a category.
func (c *Client) TopHeadlines(ctx context.Context, category, country string, pageSize int) (*domain.ProviderResponse, error) {
	params := url.Values{}
	params.Set("country", country)
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("page", "1")
	if category != "" {
		params.Set("category", category)
	}
	return c.get(ctx, "top-headlines", params)
}

// Everything queries /everything with a free-text query.
func (c *Client) Everything(ctx context.Context, query string, from time.Time, sortBy string, pageSize int) (*domain.ProviderResponse, error) {
	if sortBy == "" {
		sortBy = "publishedAt"
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("sortBy", sortBy)
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("page", "1")
	params.Set("language", "en")
	if !from.IsZero() {
		params.Set("from", from.Format(time.RFC3339))
	}
	return c.get(ctx, "everything", params)
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (*domain.ProviderResponse, error) {
	if c.apiKey == "" {
		return nil, domain.ErrMissingAPIKey
	}

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	// key goes in the header, not the query string, so it stays out of logs
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read newsapi response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, domain.ErrInvalidKey
	case http.StatusTooManyRequests:
		return nil, domain.ErrRateLimited
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("newsapi %s: %s: %s", endpoint, resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode newsapi response: %w", err)
	}
	if parsed.Status != "ok" {
		// the provider also reports errors inside a 200 body
		if parsed.Code == "apiKeyInvalid" || parsed.Code == "apiKeyDisabled" {
			return nil, domain.ErrInvalidKey
		}
		if parsed.Code == "rateLimited" {
			return nil, domain.ErrRateLimited
		}
		return nil, fmt.Errorf("newsapi %s: %s", endpoint, parsed.Message)
	}

	out := &domain.ProviderResponse{
		TotalResults: parsed.TotalResults,
		Raw:          body,
	}
	for _, a := range parsed.Articles {
		out.Articles = append(out.Articles, domain.ProviderArticle{
			SourceName:  a.Source.Name,
			Author:      a.Author,
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			URLToImage:  a.URLToImage,
			PublishedAt: a.PublishedAt,
			Content:     a.Content,
		})
	}
	return out, nil
}
