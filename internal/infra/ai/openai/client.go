package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	domain "github.com/bryanwahyu/newslens/internal/domain/analysis"
	"github.com/bryanwahyu/newslens/internal/infra/ai/prompt"
)

const maxTokens = 2000

type Client struct {
	*openai.Client
	Model string
}

var _ domain.Client = (*Client)(nil)

func NewClient(apiKey, model string) *Client {
	return &Client{Client: openai.NewClient(apiKey), Model: model}
}

// AnalyzeArticle runs one structured-completion call and parses the result.
// A response that violates the schema is a hard failure for this call only.
func (c *Client) AnalyzeArticle(ctx context.Context, title, description, content string) (*domain.Result, []byte, error) {
	model := c.Model
	if model == "" {
		model = "gpt-5-mini"
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(title, description, content)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return nil, nil, domain.ErrQuotaExceeded
		}
		return nil, nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, nil, fmt.Errorf("%w: no choices returned", domain.ErrMalformedResponse)
	}

	raw := []byte(resp.Choices[0].Message.Content)
	result, err := ParseResult(raw)
	if err != nil {
		return nil, raw, err
	}
	return result, raw, nil
}
