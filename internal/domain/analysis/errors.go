package analysis

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrMalformedResponse indicates the AI response did not match the
// required schema; the call fails, nothing is persisted.
var ErrMalformedResponse = errors.New("malformed ai response")

// ErrNotFound indicates the requested analysis does not exist.
var ErrNotFound = errors.New("analysis not found")

// ErrForbidden indicates the analysis belongs to a different user.
var ErrForbidden = errors.New("analysis belongs to another user")

// ErrDuplicateAnalysis indicates a (user, article) row already exists; the
// unique key is the backstop for concurrent identical requests.
var ErrDuplicateAnalysis = errors.New("analysis already exists for user and article")
