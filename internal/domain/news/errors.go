package news

import "errors"

// ErrNotFound indicates the requested article does not exist.
var ErrNotFound = errors.New("article not found")

// ErrMissingAPIKey indicates no provider API key is configured.
var ErrMissingAPIKey = errors.New("news provider api key not configured")

// ErrInvalidKey indicates the provider rejected the configured API key.
var ErrInvalidKey = errors.New("news provider rejected api key")

// ErrRateLimited indicates the provider's rate limit was exceeded (HTTP 429).
var ErrRateLimited = errors.New("news provider rate limit exceeded")

// ErrDuplicateURL indicates an article with the same canonical URL is
// already stored; ingestion treats it as "someone else won".
var ErrDuplicateURL = errors.New("article url already stored")
