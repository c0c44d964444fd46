package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenepipe/scenepipe/pkg/config"
)

func testConfig(endpoint string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.LLMEndpoint = endpoint
	cfg.LLMAPIKeys = []string{"key-a", "key-b"}
	cfg.LLMRetryMax = 3
	cfg.LLMRetryBaseSeconds = 0 // keep tests fast; Sleep(0) still exercises the path
	cfg.LLMRequestTimeoutSeconds = 5
	return cfg
}

func TestCompleteReturnsTextOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{Choices: []chatChoice{{Message: chatMessage{Content: "hello there"}}}})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	text, err := c.Complete(context.Background(), "prompt", 0.7, 256)
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
}

func TestCompleteRetriesOn429ThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse{Choices: []chatChoice{{Message: chatMessage{Content: "eventually"}}}})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	text, err := c.Complete(context.Background(), "prompt", 0.5, 100)
	require.NoError(t, err)
	assert.Equal(t, "eventually", text)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

func TestCompleteReturnsEmptyOnTerminal4xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	text, err := c.Complete(context.Background(), "prompt", 0.5, 100)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestCompleteReturnsEmptyWhenRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.LLMRetryMax = 2
	c := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	text, err := c.Complete(ctx, "prompt", 0.5, 100)
	require.NoError(t, err)
	assert.Empty(t, text)
}

type recordingObserver struct {
	calls   []string
	retries int
}

func (o *recordingObserver) ObserveCall(outcome string) { o.calls = append(o.calls, outcome) }
func (o *recordingObserver) ObserveRetry()              { o.retries++ }

func TestCompleteReportsOutcomeAndRetriesToObserver(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse{Choices: []chatChoice{{Message: chatMessage{Content: "eventually"}}}})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	obs := &recordingObserver{}
	c.Observer = obs

	text, err := c.Complete(context.Background(), "prompt", 0.5, 100)
	require.NoError(t, err)
	assert.Equal(t, "eventually", text)
	assert.Equal(t, []string{"success"}, obs.calls)
	assert.Equal(t, 2, obs.retries)
}

func TestCompleteReportsTerminalFailureToObserver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	obs := &recordingObserver{}
	c.Observer = obs

	_, err := c.Complete(context.Background(), "prompt", 0.5, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"terminal_failure"}, obs.calls)
	assert.Equal(t, 0, obs.retries)
}

func TestNextAPIKeyRoundRobins(t *testing.T) {
	c := New(testConfig("http://example.test"))
	first := c.nextAPIKey()
	second := c.nextAPIKey()
	third := c.nextAPIKey()
	assert.NotEqual(t, first, second)
	assert.Equal(t, first, third)
}
