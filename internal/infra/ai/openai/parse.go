package openai

import (
	"encoding/json"
	"fmt"

	domain "github.com/bryanwahyu/newslens/internal/domain/analysis"
)

// wire shape of the model's JSON answer, nested the way the prompt asks
type rawResult struct {
	PoliticalBias struct {
		Classification  string  `json:"classification"`
		ConfidenceScore float64 `json:"confidence_score"`
		Reasoning       string  `json:"reasoning"`
	} `json:"political_bias"`
	SentimentAnalysis struct {
		Positive      float64 `json:"positive_sentiment"`
		Negative      float64 `json:"negative_sentiment"`
		Neutral       float64 `json:"neutral_sentiment"`
		Overall       float64 `json:"overall_sentiment_score"`
		EmotionalTone string  `json:"emotional_tone"`
	} `json:"sentiment_analysis"`
	TopicAnalysis struct {
		PrimaryTopics     []string           `json:"primary_topics"`
		TopicDistribution map[string]float64 `json:"topic_distribution"`
	} `json:"topic_analysis"`
	KeyInsights struct {
		MainThemes       []string `json:"main_themes"`
		ControversyLevel float64  `json:"controversy_level"`
	} `json:"key_insights"`
}

// ParseResult decodes and validates one model response.
func ParseResult(raw []byte) (*domain.Result, error) {
	var parsed rawResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	result := &domain.Result{
		Bias:             domain.Bias(parsed.PoliticalBias.Classification),
		BiasConfidence:   parsed.PoliticalBias.ConfidenceScore,
		BiasReasoning:    parsed.PoliticalBias.Reasoning,
		Positive:         parsed.SentimentAnalysis.Positive,
		Negative:         parsed.SentimentAnalysis.Negative,
		Neutral:          parsed.SentimentAnalysis.Neutral,
		OverallSentiment: parsed.SentimentAnalysis.Overall,
		EmotionalTone:    parsed.SentimentAnalysis.EmotionalTone,
		PrimaryTopics:    parsed.TopicAnalysis.PrimaryTopics,
		TopicWeights:     parsed.TopicAnalysis.TopicDistribution,
		KeyThemes:        parsed.KeyInsights.MainThemes,
		Controversy:      parsed.KeyInsights.ControversyLevel,
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}
