package middleware

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Input validation and sanitization utilities

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidateCategorySlug checks the category query parameter shape.
func ValidateCategorySlug(slug string) error {
	if slug == "" {
		return nil // Optional field
	}
	if len(slug) > 50 || !slugPattern.MatchString(strings.ToLower(slug)) {
		return fmt.Errorf("invalid category: %s", slug)
	}
	return nil
}

// ValidateSort checks the sort query parameter against the allowed keys.
func ValidateSort(sort string) error {
	if sort == "" {
		return nil // Optional field
	}
	allowed := map[string]bool{
		"published_at":  true,
		"-published_at": true,
		"title":         true,
		"-created_at":   true,
	}
	if !allowed[sort] {
		return fmt.Errorf("invalid sort: %s (allowed: published_at, -published_at, title, -created_at)", sort)
	}
	return nil
}

// ValidateURL validates article URLs before fetching their content
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (allowed: http, https)", u.Scheme)
	}

	// Check for localhost/internal IPs (SSRF protection)
	host := strings.ToLower(u.Hostname())
	blocked := []string{"localhost", "127.0.0.1", "0.0.0.0", "[::]", "::1"}
	for _, b := range blocked {
		if strings.Contains(host, b) {
			return fmt.Errorf("localhost/internal IPs are not allowed")
		}
	}

	// Block private IP ranges (basic check)
	if strings.HasPrefix(host, "10.") ||
		strings.HasPrefix(host, "192.168.") ||
		strings.HasPrefix(host, "172.16.") ||
		strings.HasPrefix(host, "172.31.") {
		return fmt.Errorf("private IP ranges are not allowed")
	}

	return nil
}

// ParseDate accepts YYYY-MM-DD or RFC3339 query values.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", value)
	}
	return t, nil
}

// SanitizeString strips control characters and trims whitespace
func SanitizeString(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\t' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
