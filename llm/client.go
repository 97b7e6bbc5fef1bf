// Package llm talks to model providers: an OpenAI-compatible HTTP client,
// a rate-limited retrying wrapper, and token counting. Retry here is
// exponential with jitter; the engine's fixed-delay step retry is a
// separate, outer layer.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rasad8686/BotBuilder-Platform-sub005/config"
	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

// Request is one completion request.
type Request struct {
	Model        string
	SystemPrompt string
	Input        string
}

// Completion is the provider's answer with its reported token usage.
// TokensUsed may be zero when the provider omits usage; callers fall back
// to counting.
type Completion struct {
	Output     string
	TokensUsed int64
}

// ModelClient completes prompts against a provider.
type ModelClient interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// chat wire types, OpenAI-compatible.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int64 `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// HTTPClient is an OpenAI-compatible chat completion client.
type HTTPClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient creates a provider client from configuration.
func NewHTTPClient(cfg config.LLMConfig, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(zap.String("component", "llm_client")),
	}
}

// Complete implements ModelClient against POST {baseURL}/chat/completions.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	var messages []chatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Input})

	body, err := json.Marshal(chatRequest{Model: model, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, types.NewErrorf(types.ErrProviderError, "provider request failed: %v", err).
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, types.NewError(types.ErrRateLimited, "provider rate limit exceeded").WithRetryable(true)
	case resp.StatusCode >= 500:
		return nil, types.NewErrorf(types.ErrProviderError, "provider returned %d", resp.StatusCode).WithRetryable(true)
	case resp.StatusCode != http.StatusOK:
		return nil, types.NewErrorf(types.ErrProviderError, "provider returned %d: %s", resp.StatusCode, data)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	if parsed.Error != nil {
		return nil, types.NewErrorf(types.ErrProviderError, "provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, types.NewError(types.ErrProviderError, "provider returned no choices")
	}

	return &Completion{
		Output:     parsed.Choices[0].Message.Content,
		TokensUsed: parsed.Usage.TotalTokens,
	}, nil
}

// RateLimitedClient wraps a ModelClient with a token-bucket rate limiter
// and exponential jittered backoff on retryable errors. Non-retryable
// provider errors surface immediately.
type RateLimitedClient struct {
	inner      ModelClient
	limiter    *rate.Limiter
	backoff    Backoff
	maxRetries int
	logger     *zap.Logger
}

// NewRateLimitedClient wraps inner per cfg. Zero rate settings mean
// unlimited; zero MaxRetries means no provider-level retry.
func NewRateLimitedClient(inner ModelClient, cfg config.LLMConfig, logger *zap.Logger) *RateLimitedClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	burst := 1
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
		burst = cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
	}
	return &RateLimitedClient{
		inner:      inner,
		limiter:    rate.NewLimiter(limit, burst),
		backoff:    DefaultBackoff(),
		maxRetries: cfg.MaxRetries,
		logger:     logger.With(zap.String("component", "llm_ratelimit")),
	}
}

// Complete implements ModelClient.
func (c *RateLimitedClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff.Delay(attempt)
			c.logger.Debug("provider retry",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("provider retry canceled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		completion, err := c.inner.Complete(ctx, req)
		if err == nil {
			return completion, nil
		}
		lastErr = err
		if !types.IsRetryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("provider failed after %d retries: %w", c.maxRetries, lastErr)
}
