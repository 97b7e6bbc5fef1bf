package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rasad8686/BotBuilder-Platform-sub005/config"
	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

type stubClient struct {
	calls   atomic.Int32
	results []func() (*Completion, error)
}

func (s *stubClient) Complete(_ context.Context, _ Request) (*Completion, error) {
	i := int(s.calls.Add(1)) - 1
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i]()
}

func TestHTTPClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello there"}}],"usage":{"total_tokens":12}}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(config.LLMConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "gpt-4o"}, nil)

	completion, err := client.Complete(context.Background(), Request{
		SystemPrompt: "You are terse.",
		Input:        "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", completion.Output)
	assert.Equal(t, int64(12), completion.TokensUsed)
}

func TestHTTPClientRateLimitedIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewHTTPClient(config.LLMConfig{BaseURL: srv.URL}, nil)

	_, err := client.Complete(context.Background(), Request{Input: "hi"})
	require.Error(t, err)
	assert.True(t, types.IsRetryable(err))
	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))
}

func TestHTTPClientBadRequestIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewHTTPClient(config.LLMConfig{BaseURL: srv.URL}, nil)

	_, err := client.Complete(context.Background(), Request{Input: "hi"})
	require.Error(t, err)
	assert.False(t, types.IsRetryable(err))
}

func TestRateLimitedClientRetriesRetryableErrors(t *testing.T) {
	stub := &stubClient{results: []func() (*Completion, error){
		func() (*Completion, error) {
			return nil, types.NewError(types.ErrRateLimited, "slow down").WithRetryable(true)
		},
		func() (*Completion, error) {
			return &Completion{Output: "ok", TokensUsed: 3}, nil
		},
	}}

	client := NewRateLimitedClient(stub, config.LLMConfig{MaxRetries: 2}, nil)
	client.backoff = Backoff{Initial: time.Millisecond, Max: time.Millisecond}

	completion, err := client.Complete(context.Background(), Request{Input: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", completion.Output)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestRateLimitedClientStopsOnNonRetryable(t *testing.T) {
	stub := &stubClient{results: []func() (*Completion, error){
		func() (*Completion, error) {
			return nil, types.NewError(types.ErrProviderError, "invalid model")
		},
	}}

	client := NewRateLimitedClient(stub, config.LLMConfig{MaxRetries: 5}, nil)
	client.backoff = Backoff{Initial: time.Millisecond, Max: time.Millisecond}

	_, err := client.Complete(context.Background(), Request{Input: "hi"})
	require.Error(t, err)
	assert.Equal(t, int32(1), stub.calls.Load(), "non-retryable errors surface immediately")
}

func TestBackoffDelayBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := Backoff{
			Initial:    time.Duration(rapid.Int64Range(1, int64(time.Second)).Draw(t, "initial")),
			Max:        30 * time.Second,
			Multiplier: rapid.Float64Range(1.0, 4.0).Draw(t, "multiplier"),
			Jitter:     rapid.Bool().Draw(t, "jitter"),
		}
		attempt := rapid.IntRange(1, 20).Draw(t, "attempt")

		delay := b.Delay(attempt)
		assert.GreaterOrEqual(t, delay, b.Initial)
		// Jitter adds at most 25% above the cap.
		assert.LessOrEqual(t, delay, b.Max+b.Max/4)
	})
}

func TestEstimatorCounter(t *testing.T) {
	counter := EstimatorCounter{}

	n, err := counter.Count("")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = counter.Count("hello world, this is a plain ascii sentence")
	require.NoError(t, err)
	assert.Greater(t, n, int64(5))
	assert.Less(t, n, int64(20))

	n, err = counter.Count("工作流执行引擎的并行拓扑")
	require.NoError(t, err)
	assert.Greater(t, n, int64(0))
}

func TestNewCounterFallsBack(t *testing.T) {
	// Unknown models still get a working counter.
	counter := NewCounter("totally-unknown-model")
	n, err := counter.Count("some text to count")
	require.NoError(t, err)
	assert.Greater(t, n, int64(0))
}
