package audit

import "time"

// ExternalError represents a persisted external-dependency failure entry
type ExternalError struct {
	ID          int64     `json:"id"`
	Component   string    `json:"component"` // newsapi | openai
	Operation   string    `json:"operation"` // top-headlines | everything | analyze
	Subject     string    `json:"subject,omitempty"` // article id, category, query
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
