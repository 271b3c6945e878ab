package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// AnalysisID identifier type
type AnalysisID string

// Bias enum: 8-point ordered political scale plus neutral.
type Bias string

const (
	BiasFarLeft     Bias = "far_left"
	BiasLeft        Bias = "left"
	BiasCenterLeft  Bias = "center_left"
	BiasCenter      Bias = "center"
	BiasCenterRight Bias = "center_right"
	BiasRight       Bias = "right"
	BiasFarRight    Bias = "far_right"
	BiasNeutral     Bias = "neutral"
)

var biasScores = map[Bias]float64{
	BiasFarLeft:     -1.0,
	BiasLeft:        -0.66,
	BiasCenterLeft:  -0.33,
	BiasCenter:      0.0,
	BiasNeutral:     0.0,
	BiasCenterRight: 0.33,
	BiasRight:       0.66,
	BiasFarRight:    1.0,
}

// Valid reports whether b is one of the known classifications.
func (b Bias) Valid() bool {
	_, ok := biasScores[b]
	return ok
}

// Score maps the classification to a numeric position for charting
// (-1 = far left, 1 = far right).
func (b Bias) Score() float64 {
	return biasScores[b]
}

// Result is the fixed-shape payload the LLM must return for one article.
type Result struct {
	Bias             Bias               `json:"political_bias"`
	BiasConfidence   float64            `json:"bias_confidence_score"`
	BiasReasoning    string             `json:"bias_reasoning"`
	Positive         float64            `json:"positive_sentiment"`
	Negative         float64            `json:"negative_sentiment"`
	Neutral          float64            `json:"neutral_sentiment"`
	OverallSentiment float64            `json:"overall_sentiment_score"`
	EmotionalTone    string             `json:"emotional_tone"`
	PrimaryTopics    []string           `json:"primary_topics"`
	TopicWeights     map[string]float64 `json:"topic_distribution"`
	KeyThemes        []string           `json:"key_themes"`
	Controversy      float64            `json:"controversy_level"`
}

// SentimentSumTolerance is the rounding slack allowed on the sentiment
// triple; the sum-to-1.0 contract itself is the provider's.
const SentimentSumTolerance = 0.05

// Validate enforces the provider contract. Any violation is a hard failure
// for the call that produced the result.
func (r *Result) Validate() error {
	if !r.Bias.Valid() {
		return fmt.Errorf("%w: unknown bias classification %q", ErrMalformedResponse, r.Bias)
	}
	for name, v := range map[string]float64{
		"bias_confidence_score": r.BiasConfidence,
		"positive_sentiment":    r.Positive,
		"negative_sentiment":    r.Negative,
		"neutral_sentiment":     r.Neutral,
		"controversy_level":     r.Controversy,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s=%v outside [0,1]", ErrMalformedResponse, name, v)
		}
	}
	if r.OverallSentiment < -1 || r.OverallSentiment > 1 {
		return fmt.Errorf("%w: overall_sentiment_score=%v outside [-1,1]", ErrMalformedResponse, r.OverallSentiment)
	}
	sum := r.Positive + r.Negative + r.Neutral
	if math.Abs(sum-1.0) > SentimentSumTolerance {
		return fmt.Errorf("%w: sentiment percentages sum to %.3f, want 1.0", ErrMalformedResponse, sum)
	}
	return nil
}

// Aggregate Root: Analysis
//
// One row per (user, article) pair, write-once. The same article analyzed by
// two users yields two independent rows.
type Analysis struct {
	ID        AnalysisID `json:"id"`
	UserID    string     `json:"user_id"`
	ArticleID string     `json:"article_id"`

	Bias           Bias    `json:"political_bias"`
	BiasScore      float64 `json:"bias_score_normalized"`
	BiasConfidence float64 `json:"bias_confidence_score"`
	BiasReasoning  string  `json:"bias_reasoning"`

	Positive         float64 `json:"positive_sentiment"`
	Negative         float64 `json:"negative_sentiment"`
	Neutral          float64 `json:"neutral_sentiment"`
	OverallSentiment float64 `json:"overall_sentiment_score"`
	EmotionalTone    string  `json:"emotional_tone"`

	PrimaryTopics []string           `json:"primary_topics"`
	TopicWeights  map[string]float64 `json:"topic_distribution"`
	KeyThemes     []string           `json:"key_themes"`
	Controversy   float64            `json:"controversy_level"`

	Version        string          `json:"analysis_version"`
	ProcessingSecs float64         `json:"processing_time_seconds"`
	RawResponse    json.RawMessage `json:"raw_ai_response,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`

	// Denormalized for list rendering.
	ArticleTitle    string `json:"article_title,omitempty"`
	ArticleCategory string `json:"article_category,omitempty"`
}

// ListFilter narrows analysis listing for one user.
type ListFilter struct {
	Bias           Bias
	CategorySlug   string
	MinControversy float64
	FromDate       time.Time
	ToDate         time.Time
}

// PaginatedResult is a page of analyses with metadata.
type PaginatedResult struct {
	Data       []*Analysis `json:"data"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	Total      int64       `json:"totalItems"`
	TotalPages int         `json:"totalPages"`
}
