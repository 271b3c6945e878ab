package prompt

import "fmt"

// maxContentChars caps how much article body is embedded in the prompt.
const maxContentChars = 3000

// GetSystemPrompt provides the analyst persona and the valid-JSON directive.
func GetSystemPrompt() string {
	return `You are an expert political analyst and sentiment analysis specialist. Provide objective, thorough analysis of news content focusing on political bias, sentiment, and topical categorization. Always respond with valid JSON.`
}

// GetUserPrompt embeds one article and the required schema.
func GetUserPrompt(title, description, content string) string {
	if content == "" {
		content = description
	}
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}

	return fmt.Sprintf(`Please analyze the following news article for political bias, sentiment, and topical content:

Title: %s
Description: %s
Content: %s

Provide a comprehensive analysis in the following JSON format:

{
  "political_bias": {
    "classification": "far_left|left|center_left|center|center_right|right|far_right|neutral",
    "confidence_score": 0.85,
    "reasoning": "Detailed explanation of why this classification was chosen"
  },
  "sentiment_analysis": {
    "positive_sentiment": 0.25,
    "negative_sentiment": 0.15,
    "neutral_sentiment": 0.60,
    "overall_sentiment_score": 0.10,
    "emotional_tone": "cautious|optimistic|pessimistic|angry|neutral|concerned"
  },
  "topic_analysis": {
    "primary_topics": ["economy", "healthcare", "foreign_policy", "immigration", "climate"],
    "topic_distribution": {
      "economy": 0.40,
      "healthcare": 0.30,
      "immigration": 0.20,
      "foreign_policy": 0.10
    }
  },
  "key_insights": {
    "main_themes": ["economic recovery", "policy implications", "public reaction"],
    "controversy_level": 0.65
  }
}

Rules:
1. Be objective and analytical
2. All numeric values should be between 0 and 1
3. Sentiment percentages should sum to 1.0
4. Classification must be one of the specified options
5. Provide specific evidence for bias classification
6. Focus on political and social implications`, title, description, content)
}
