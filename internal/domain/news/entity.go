package news

import (
	"time"
)

// ArticleID tipe untuk Article
type ArticleID string

// Source is a news outlet, created lazily the first time the provider
// reports it.
type Source struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	URL          string    `json:"url,omitempty"`
	ArticleCount int64     `json:"article_count,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Category is one of the fixed set seeded at startup.
type Category struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Description  string `json:"description,omitempty"`
	ArticleCount int64  `json:"article_count"`
}

// Aggregate Root: Article
//
// Articles are write-once: ingestion inserts them and nothing mutates them
// afterwards. URL is the dedup key and is unique in storage.
type Article struct {
	ID           ArticleID  `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Content      string     `json:"content,omitempty"`
	URL          string     `json:"url"`
	URLToImage   string     `json:"url_to_image,omitempty"`
	Author       string     `json:"author,omitempty"`
	SourceID     int64      `json:"-"`
	SourceName   string     `json:"source"`
	CategoryID   int64      `json:"-"`
	CategorySlug string     `json:"category,omitempty"`
	PublishedAt  time.Time  `json:"published_at"`
	Language     string     `json:"language"`
	CreatedAt    time.Time  `json:"created_at"`

	// HasAnalysis is derived per requesting user; zero value when the
	// request is anonymous.
	HasAnalysis bool `json:"has_analysis"`
}

// ReadArticle tracks which articles a user has opened.
type ReadArticle struct {
	UserID    string    `json:"-"`
	ArticleID ArticleID `json:"article_id"`
	Title     string    `json:"title"`
	ReadAt    time.Time `json:"read_at"`
}

// ListFilter narrows article listing. Zero values mean "no filter".
type ListFilter struct {
	CategorySlug string
	Source       string
	Search       string
	FromDate     time.Time
	ToDate       time.Time
	SortBy       string // published_at | -published_at | title | -created_at
}

// ProviderArticle is one item as returned by the external news provider.
type ProviderArticle struct {
	SourceName  string `json:"source_name"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"url_to_image"`
	PublishedAt string `json:"published_at"` // RFC3339 from the provider
	Content     string `json:"content"`
}

// ProviderResponse is the normalized provider payload plus the raw body
// kept for the audit archive.
type ProviderResponse struct {
	TotalResults int
	Articles     []ProviderArticle
	Raw          []byte
}
