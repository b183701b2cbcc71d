package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/consent-recorder/internal/config"
	"github.com/lexiqai/consent-recorder/internal/observability"
	"github.com/lexiqai/consent-recorder/internal/resilience"
)

// Options configures a Client
type Options struct {
	Endpoint    string
	APIKey      string // sent as x-api-key when set
	MaxAttempts int
	BaseDelay   time.Duration // wait after attempt n is BaseDelay*n
	Timeout     time.Duration // per attempt
}

// OptionsFromConfig maps service configuration to client options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Endpoint:    cfg.SentimentEndpoint,
		APIKey:      cfg.SentimentAPIKey,
		MaxAttempts: cfg.SentimentMaxAttempts,
		BaseDelay:   cfg.SentimentRetryDelay(),
		Timeout:     cfg.SentimentRequestTimeout(),
	}
}

// Client submits transcripts for sentiment analysis and keeps the latest
// result, user-facing error and in-flight flag
type Client struct {
	opts       Options
	httpClient *http.Client
	logger     zerolog.Logger
	sleep      resilience.Sleeper

	mu        sync.Mutex
	result    *AnalysisResult
	errMsg    string
	inFlight  bool
	listeners []func(State)
}

// NewClient creates a sentiment client
func NewClient(opts Options, logger zerolog.Logger) *Client {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Client{
		opts:       opts,
		httpClient: &http.Client{},
		logger:     logger.With().Str("component", "sentiment").Logger(),
		sleep:      resilience.SleepContext,
	}
}

// OnChange registers a listener called with a snapshot after every state change
func (c *Client) OnChange(fn func(State)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Analyze posts the transcript, retrying every failure with linear backoff.
// On exhaustion the user-facing error is set and the last error returned.
func (c *Client) Analyze(ctx context.Context, transcript string) (*AnalysisResult, error) {
	startedAt := time.Now()
	c.update(func() {
		c.inFlight = true
		c.errMsg = ""
	})

	retry := resilience.LinearRetryConfig(c.opts.MaxAttempts, c.opts.BaseDelay)
	retry.Sleep = c.sleep
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		c.logger.Warn().
			Err(err).
			Str("failure", failureKind(err)).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("Sentiment analysis attempt failed")
	}

	var result *AnalysisResult
	err := resilience.Retry(ctx, func(attempt int) error {
		r, err := c.post(ctx, transcript)
		if err != nil {
			return err
		}
		result = r
		return nil
	}, retry, nil)

	if err != nil {
		c.logger.Error().
			Err(err).
			Str("failure", failureKind(err)).
			Int("max_attempts", c.opts.MaxAttempts).
			Msg("Sentiment analysis failed")
		observability.RecordSentimentResult(false, startedAt)
		c.update(func() {
			c.inFlight = false
			c.errMsg = ErrMessageFailed
		})
		return nil, err
	}

	observability.RecordSentimentResult(true, startedAt)
	c.update(func() {
		c.inFlight = false
		c.result = result
	})
	return result, nil
}

// post performs one attempt
func (c *Client) post(ctx context.Context, transcript string) (*AnalysisResult, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	b, err := json.Marshal(analyzeRequest{Transcript: transcript})
	if err != nil {
		return nil, fmt.Errorf("sentiment marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("x-api-key", c.opts.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordSentimentAttempt("network_error")
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		observability.RecordSentimentAttempt("http_error")
		return nil, NewHTTPError(resp.StatusCode, body)
	}

	var out AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		observability.RecordSentimentAttempt("decode_error")
		return nil, fmt.Errorf("sentiment decode: %w", err)
	}
	observability.RecordSentimentAttempt("success")
	return &out, nil
}

// Clear drops the result and error; an in-flight analysis is unaffected
func (c *Client) Clear() {
	c.update(func() {
		c.result = nil
		c.errMsg = ""
	})
}

// Result returns the latest successful analysis, or nil
func (c *Client) Result() *AnalysisResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Err returns the user-facing error message, or ""
func (c *Client) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// InFlight reports whether an analysis is running
func (c *Client) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Snapshot returns the current state
func (c *Client) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Client) snapshotLocked() State {
	return State{Result: c.result, Err: c.errMsg, InFlight: c.inFlight}
}

// update applies fn under the lock, then notifies listeners outside it
func (c *Client) update(fn func()) {
	c.mu.Lock()
	fn()
	state := c.snapshotLocked()
	listeners := append([]func(State){}, c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		l(state)
	}
}

// IsNetworkError reports whether err came from the transport
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// failureKind labels an attempt error for logs
func failureKind(err error) string {
	var he *HTTPError
	switch {
	case IsNetworkError(err):
		return "network"
	case errors.As(err, &he):
		return "http"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "decode"
	}
}
