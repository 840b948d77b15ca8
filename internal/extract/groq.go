// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// groqBaseURL is Groq's OpenAI-compatible endpoint. Package-level var for
// test substitution.
var groqBaseURL = "https://api.groq.com/openai/v1"

// groqTemperature stands in for zero. go-openai omits a zero temperature
// from the request, and Groq then applies its default of 1.
const groqTemperature = 0.0001

// GroqProvider calls a Groq-hosted chat model through the OpenAI client,
// asking for a JSON-object response at temperature zero.
type GroqProvider struct {
	client *openai.Client
	model  string
}

// NewGroq returns a provider for cfg. cfg.BaseURL overrides the endpoint.
func NewGroq(cfg types.ProviderConfig, httpClient *http.Client) *GroqProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = groqBaseURL
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		config.HTTPClient = httpClient
	}
	return &GroqProvider{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
	}
}

// Generate sends prompt as a single user message.
func (g *GroqProvider) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: groqTemperature,
	}
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyGroqError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("groq: no response choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

var (
	groqRetryAfterPattern = regexp.MustCompile(`(?i)retry.after[^\d]*(\d+)`)
	groqTryAgainPattern   = regexp.MustCompile(`(?i)try again in ((?:\d+(?:\.\d+)?(?:ms|h|m|s))+)`)
)

// classifyGroqError maps a 429 to ErrQuotaExhausted for daily limits and to
// RateLimitError otherwise. Other errors pass through wrapped.
func classifyGroqError(err error) error {
	status, msg := 0, err.Error()

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		msg = apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("groq: %w: %v", ErrUnavailable, err)
	}
	if status != http.StatusTooManyRequests {
		return fmt.Errorf("groq: %w", err)
	}

	lower := strings.ToLower(msg)
	if strings.Contains(lower, "per_day") || strings.Contains(lower, "per day") || strings.Contains(lower, "daily") {
		return fmt.Errorf("groq: %w: %s", ErrQuotaExhausted, msg)
	}
	return &RateLimitError{RetryAfter: groqRetryDelay(msg), Err: err}
}

// groqRetryDelay reads the delay from a rate-limit message, or returns zero.
func groqRetryDelay(msg string) time.Duration {
	if m := groqRetryAfterPattern.FindStringSubmatch(msg); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	if m := groqTryAgainPattern.FindStringSubmatch(msg); m != nil {
		if d, err := time.ParseDuration(m[1]); err == nil {
			return d
		}
	}
	return 0
}
