// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pdiddy/anything-but-metric/pkg/types"
)

func groqServer(t *testing.T, code int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGroqProvider_Generate(t *testing.T) {
	var seen map[string]any
	srv := groqServer(t, http.StatusOK, `{
		"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "llama",
		"choices": [{"index": 0, "finish_reason": "stop",
			"message": {"role": "assistant", "content": "  {\"comparisons\": []}\n"}}]
	}`, &seen)

	p := NewGroq(types.ProviderConfig{Model: "llama-3.3-70b-versatile", APIKey: "test-key", BaseURL: srv.URL}, srv.Client())
	out, err := p.Generate(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, `{"comparisons": []}`, out)
	assert.Equal(t, "llama-3.3-70b-versatile", seen["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, seen["response_format"])
	assert.InDelta(t, groqTemperature, seen["temperature"], 1e-6)
}

func TestGroqProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "daily quota",
			status: http.StatusTooManyRequests,
			body:   `{"error": {"message": "Rate limit reached for model on tokens per day (TPD): Limit 100000", "type": "tokens", "code": "rate_limit_exceeded"}}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrQuotaExhausted)
			},
		},
		{
			name:   "per minute limit",
			status: http.StatusTooManyRequests,
			body:   `{"error": {"message": "Rate limit reached on requests per minute (RPM). Please try again in 2.5s.", "type": "requests", "code": "rate_limit_exceeded"}}`,
			check: func(t *testing.T, err error) {
				var rle *RateLimitError
				require.ErrorAs(t, err, &rle)
				assert.Equal(t, 2500*time.Millisecond, rle.RetryAfter)
			},
		},
		{
			name:   "bad key",
			status: http.StatusUnauthorized,
			body:   `{"error": {"message": "Invalid API Key", "type": "invalid_request_error", "code": "invalid_api_key"}}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrUnavailable)
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"error": {"message": "internal", "type": "server_error"}}`,
			check: func(t *testing.T, err error) {
				assert.False(t, errors.Is(err, ErrQuotaExhausted))
				var rle *RateLimitError
				assert.False(t, errors.As(err, &rle))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := groqServer(t, tt.status, tt.body, nil)
			p := NewGroq(types.ProviderConfig{Model: "m", APIKey: "test-key", BaseURL: srv.URL}, srv.Client())
			_, err := p.Generate(context.Background(), "hello")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestGroqRetryDelay(t *testing.T) {
	tests := []struct {
		msg  string
		want time.Duration
	}{
		{"Please retry after 12 seconds", 12 * time.Second},
		{"retry-after: 30", 30 * time.Second},
		{"Please try again in 1m3.5s.", time.Minute + 3500*time.Millisecond},
		{"Please try again in 450ms.", 450 * time.Millisecond},
		{"slow down", 0},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, groqRetryDelay(tt.msg))
		})
	}
}

func TestClassifyGeminiError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantQuota bool
		wantLimit bool
		wantDelay time.Duration
		wantUnav  bool
	}{
		{
			name:      "daily quota",
			err:       errors.New(`rpc error: code = ResourceExhausted desc = quota_id: "GenerateRequestsPerDayPerProjectPerModel-FreeTier"`),
			wantQuota: true,
		},
		{
			name:      "retry delay",
			err:       errors.New(`rpc error: code = ResourceExhausted desc = quota exceeded retry_delay { seconds: 41 }`),
			wantLimit: true,
			wantDelay: 41 * time.Second,
		},
		{
			name:      "http 429",
			err:       &googleapi.Error{Code: http.StatusTooManyRequests, Message: "Resource has been exhausted"},
			wantLimit: true,
		},
		{
			name:     "forbidden",
			err:      &googleapi.Error{Code: http.StatusForbidden, Message: "API key not valid"},
			wantUnav: true,
		},
		{
			name:     "grpc unauthenticated",
			err:      status.Error(codes.Unauthenticated, "request had invalid authentication credentials"),
			wantUnav: true,
		},
		{
			name:     "grpc permission denied",
			err:      status.Error(codes.PermissionDenied, "caller does not have permission"),
			wantUnav: true,
		},
		{
			name:     "grpc invalid argument for bad key",
			err:      status.Error(codes.InvalidArgument, "API key not valid. Please pass a valid API key."),
			wantUnav: true,
		},
		{
			name:      "grpc resource exhausted",
			err:       status.Error(codes.ResourceExhausted, "quota exceeded for GenerateRequestsPerMinute"),
			wantLimit: true,
		},
		{
			name: "grpc internal",
			err:  status.Error(codes.Internal, "backend error"),
		},
		{
			name: "other",
			err:  errors.New("unexpected EOF"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyGeminiError(tt.err)
			assert.Equal(t, tt.wantQuota, errors.Is(got, ErrQuotaExhausted))
			assert.Equal(t, tt.wantUnav, errors.Is(got, ErrUnavailable))

			var rle *RateLimitError
			assert.Equal(t, tt.wantLimit, errors.As(got, &rle))
			if tt.wantLimit {
				assert.Equal(t, tt.wantDelay, rle.RetryAfter)
			}
		})
	}
}

func TestLoadPromptFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "prompt.toml")
	require.NoError(t, os.WriteFile(good, []byte(`[extraction]
prompt = """
Units: {{.Units}}
Text: {{.Article}}
"""
`), 0o644))

	tmpl, err := LoadPromptFile(good)
	require.NoError(t, err)

	out, err := renderPrompt(tmpl, "The whale weighs as much as 30 buses.", []types.Unit{{ID: "bus", Label: "Bus"}}, 0)
	require.NoError(t, err)
	assert.Equal(t, "Units: [{\"id\":\"bus\",\"label\":\"Bus\",\"aliases\":[]}]\nText: The whale weighs as much as 30 buses.\n", out)

	empty := filepath.Join(dir, "empty.toml")
	require.NoError(t, os.WriteFile(empty, []byte("[extraction]\n"), 0o644))
	_, err = LoadPromptFile(empty)
	assert.Error(t, err)

	_, err = LoadPromptFile(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestFromConfig_WithoutKeys(t *testing.T) {
	cfg := types.DefaultScraperConfig().Extraction
	e, closer, err := FromConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer closer.Close()

	assert.True(t, e.AllExhausted())
	assert.Equal(t, []string{"groq", "gemini"}, e.Exhausted())
	assert.Equal(t, types.DefaultMaxArticleChars, e.maxChars)
}

func TestFromConfig_UnknownProvider(t *testing.T) {
	cfg := types.DefaultScraperConfig().Extraction
	cfg.Primary.Name = "mystery"
	cfg.Primary.APIKey = "k"
	_, _, err := FromConfig(context.Background(), cfg, nil)
	assert.Error(t, err)
}
