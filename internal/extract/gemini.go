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

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// GeminiProvider calls a Gemini model with a JSON response MIME type.
type GeminiProvider struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini connects a Gemini client for cfg. Close releases it.
func NewGemini(ctx context.Context, cfg types.ProviderConfig) (*GeminiProvider, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	model := client.GenerativeModel(cfg.Model)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0)
	return &GeminiProvider{client: client, model: model}, nil
}

// Generate sends prompt and returns the concatenated text parts of the first
// candidate.
func (g *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifyGeminiError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: no response candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini: no text content in response")
	}
	return strings.TrimSpace(sb.String()), nil
}

// Close releases the underlying client.
func (g *GeminiProvider) Close() error {
	return g.client.Close()
}

var geminiRetryDelayPattern = regexp.MustCompile(`retry_delay\s*\{\s*seconds:\s*(\d+)`)

// classifyGeminiError maps daily quota failures to ErrQuotaExhausted,
// rejected credentials to ErrUnavailable and per-minute limits to
// RateLimitError. Other errors pass through wrapped. The client speaks
// gRPC, so most failures arrive as status errors; googleapi.Error covers
// the REST transport.
func classifyGeminiError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "PerDay") {
		return fmt.Errorf("gemini: %w: %v", ErrQuotaExhausted, err)
	}

	var delay time.Duration
	if m := geminiRetryDelayPattern.FindStringSubmatch(msg); m != nil {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			delay = time.Duration(n) * time.Second
		}
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unauthenticated, codes.PermissionDenied:
			return fmt.Errorf("gemini: %w: %v", ErrUnavailable, err)
		case codes.ResourceExhausted:
			return &RateLimitError{RetryAfter: delay, Err: err}
		}
	}
	if strings.Contains(msg, "API key not valid") || strings.Contains(msg, "API_KEY_INVALID") {
		return fmt.Errorf("gemini: %w: %v", ErrUnavailable, err)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("gemini: %w: %v", ErrUnavailable, err)
		case http.StatusTooManyRequests:
			return &RateLimitError{RetryAfter: delay, Err: err}
		}
	}
	if delay > 0 || strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "ResourceExhausted") {
		return &RateLimitError{RetryAfter: delay, Err: err}
	}
	return fmt.Errorf("gemini: %w", err)
}
