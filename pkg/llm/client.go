// Package llm provides a single request/response primitive over a chat
// completion HTTP endpoint, with retry, backoff, and circuit breaking
// (spec.md §4.1).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"github.com/scenepipe/scenepipe/pkg/config"
)

// ErrExhausted names the retry-budget-exhausted condition. Complete does
// not return it: an exhausted budget comes back as an empty string and a
// nil error, and is reported to the Observer as the "exhausted" outcome.
var ErrExhausted = errors.New("llm: retry budget exhausted")

// CallObserver receives per-call outcome and retry counts; the metrics
// package provides the production implementation backed by Prometheus
// counters.
type CallObserver interface {
	ObserveCall(outcome string)
	ObserveRetry()
}

// noopObserver discards every observation; used when the caller passes
// nil.
type noopObserver struct{}

func (noopObserver) ObserveCall(string) {}
func (noopObserver) ObserveRetry()      {}

// Client is the Go-side chat completion primitive. The state it shares
// across requests is its API keys, the key-rotation cursor and the
// circuit breaker; it is safe to call concurrently up to the caller's
// configured fan-out.
type Client struct {
	httpClient *http.Client
	endpoint   string
	model      string
	apiKeys    []string
	keyCursor  uint64
	retryMax   int
	retryBase  time.Duration
	breaker    *gobreaker.CircuitBreaker[string]
	logger     *slog.Logger
	Observer   CallObserver
}

// New builds a Client from a resolved config.Config.
func New(cfg *config.Config) *Client {
	breakerSettings := gobreaker.Settings{
		Name:        "llm-endpoint",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 8
		},
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout()},
		endpoint:   cfg.LLMEndpoint,
		model:      cfg.LLMModel,
		apiKeys:    cfg.LLMAPIKeys,
		retryMax:   cfg.LLMRetryMax,
		retryBase:  cfg.RetryBase(),
		breaker:    gobreaker.NewCircuitBreaker[string](breakerSettings),
		logger:     slog.With("component", "llm_client"),
		Observer:   noopObserver{},
	}
}

// chatMessage is one entry of the chat-completion endpoint's messages
// array (spec.md §6 "LLM endpoint").
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

// chatResponse mirrors the endpoint's {choices:[{message:{content}}]}
// shape; the client depends on no other fields (spec.md §6).
type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// nextAPIKey round-robins across the configured keys, one rotation per
// retry attempt (SPEC_FULL.md §C.4).
func (c *Client) nextAPIKey() string {
	if len(c.apiKeys) == 0 {
		return ""
	}
	n := atomic.AddUint64(&c.keyCursor, 1)
	return c.apiKeys[(n-1)%uint64(len(c.apiKeys))]
}

// Complete sends a single prompt and returns the assistant's text body,
// or ("", nil) if every retry attempt failed terminally or the retry
// budget was exhausted (spec.md §4.1's "None" contract).
func (c *Client) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	var result string
	attempt := 0

	operation := func() (string, error) {
		attempt++
		if attempt > 1 {
			c.Observer.ObserveRetry()
		}
		text, err := c.doRequest(ctx, prompt, temperature, maxTokens)
		if err == nil {
			return text, nil
		}
		if isTerminal(err) {
			return "", backoff.Permanent(err)
		}
		c.logger.Warn("llm request failed, retrying", "attempt", attempt, "error", err)
		return "", err
	}

	bo := c.retryPolicy(ctx)
	text, err := backoff.RetryWithData(operation, bo)
	result = text

	if err != nil {
		var terminal *TerminalError
		if errors.As(err, &terminal) {
			c.Observer.ObserveCall("terminal_failure")
			return "", nil
		}
		if ctx.Err() != nil {
			c.Observer.ObserveCall("context_canceled")
			return "", ctx.Err()
		}
		c.logger.Error("llm retry budget exhausted", "attempts", attempt, "error", err)
		c.Observer.ObserveCall("exhausted")
		return "", nil
	}
	c.Observer.ObserveCall("success")
	return result, nil
}

// retryPolicy builds the exponential backoff schedule demanded by
// spec.md §4.1: base=3s, doubling per attempt, capped at ~96s, 15
// attempts total.
func (c *Client) retryPolicy(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryBase
	eb.Multiplier = 2
	eb.MaxInterval = 32 * c.retryBase
	eb.MaxElapsedTime = 0 // bounded by WithMaxRetries below, not elapsed time

	withMax := backoff.WithMaxRetries(eb, uint64(c.retryMax-1))
	return backoff.WithContext(withMax, ctx)
}

func (c *Client) doRequest(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	text, err := c.breaker.Execute(func() (string, error) {
		return c.rawRequest(ctx, prompt, temperature, maxTokens)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &RetryableError{Err: err}
		}
		return "", err
	}
	return text, nil
}

func isTerminal(err error) bool {
	var t *TerminalError
	return errors.As(err, &t)
}

func (c *Client) rawRequest(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", &TerminalError{Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &TerminalError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if key := c.nextAPIKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", &RetryableError{Err: err}
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", &RetryableError{Err: err}
		}
		return "", &RetryableError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RetryableError{Err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &RetryableError{Err: fmt.Errorf("rate limited: %s", respBody)}
	case resp.StatusCode >= 500:
		return "", &RetryableError{Err: fmt.Errorf("server error %d: %s", resp.StatusCode, respBody)}
	case resp.StatusCode >= 400:
		return "", &TerminalError{Err: fmt.Errorf("client error %d: %s", resp.StatusCode, respBody)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &TerminalError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &TerminalError{Err: errors.New("response has no choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}
