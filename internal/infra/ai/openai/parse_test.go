package openai

import (
	"errors"
	"testing"

	domain "github.com/bryanwahyu/newslens/internal/domain/analysis"
)

const sampleResponse = `{
  "political_bias": {
    "classification": "center_right",
    "confidence_score": 0.72,
    "reasoning": "framing favors deregulation"
  },
  "sentiment_analysis": {
    "positive_sentiment": 0.35,
    "negative_sentiment": 0.25,
    "neutral_sentiment": 0.40,
    "overall_sentiment_score": 0.1,
    "emotional_tone": "measured",
    "dominant_emotions": ["calm"]
  },
  "topic_analysis": {
    "primary_topics": ["economy", "regulation"],
    "topic_distribution": {"economy": 0.6, "regulation": 0.4}
  },
  "key_insights": {
    "main_themes": ["tax policy"],
    "controversy_level": 0.3,
    "factual_vs_opinion_ratio": 0.8
  }
}`

func TestParseResult(t *testing.T) {
	t.Parallel()

	r, err := ParseResult([]byte(sampleResponse))
	if err != nil {
		t.Fatalf("ParseResult error: %v", err)
	}

	if r.Bias != domain.BiasCenterRight {
		t.Fatalf("bias = %s", r.Bias)
	}
	if r.BiasConfidence != 0.72 {
		t.Fatalf("confidence = %v", r.BiasConfidence)
	}
	if r.Positive != 0.35 || r.Negative != 0.25 || r.Neutral != 0.40 {
		t.Fatalf("sentiment triple = %v/%v/%v", r.Positive, r.Negative, r.Neutral)
	}
	if len(r.PrimaryTopics) != 2 || r.PrimaryTopics[0] != "economy" {
		t.Fatalf("topics = %v", r.PrimaryTopics)
	}
	if r.TopicWeights["regulation"] != 0.4 {
		t.Fatalf("weights = %v", r.TopicWeights)
	}
	if r.Controversy != 0.3 {
		t.Fatalf("controversy = %v", r.Controversy)
	}
}

func TestParseResultRejectsGarbage(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":     `analysis: the article leans left`,
		"unknown bias": `{"political_bias":{"classification":"populist","confidence_score":0.9},"sentiment_analysis":{"positive_sentiment":0.3,"negative_sentiment":0.3,"neutral_sentiment":0.4,"overall_sentiment_score":0},"topic_analysis":{"primary_topics":[],"topic_distribution":{}},"key_insights":{"main_themes":[],"controversy_level":0}}`,
		"bad sum":      `{"political_bias":{"classification":"center","confidence_score":0.9},"sentiment_analysis":{"positive_sentiment":0.8,"negative_sentiment":0.8,"neutral_sentiment":0.1,"overall_sentiment_score":0},"topic_analysis":{"primary_topics":[],"topic_distribution":{}},"key_insights":{"main_themes":[],"controversy_level":0}}`,
	}
	for name, body := range cases {
		if _, err := ParseResult([]byte(body)); !errors.Is(err, domain.ErrMalformedResponse) {
			t.Fatalf("%s: got %v, want ErrMalformedResponse", name, err)
		}
	}
}
