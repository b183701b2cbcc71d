package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const positiveBody = `{
	"sentiment": {"overall": "POSITIVE", "scores": {"positive": 0.9, "negative": 0.05, "neutral": 0.05}},
	"keyPhrases": [{"text": "great service"}],
	"entities": [{"text": "Acme", "type": "ORGANIZATION"}]
}`

// newTestClient returns a client whose waits are recorded instead of slept
func newTestClient(endpoint string, waits *[]time.Duration) *Client {
	c := NewClient(Options{
		Endpoint:    endpoint,
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Timeout:     5 * time.Second,
	}, zerolog.Nop())

	var mu sync.Mutex
	c.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		*waits = append(*waits, d)
		mu.Unlock()
		return ctx.Err()
	}
	return c
}

func TestAnalyze_Positive(t *testing.T) {
	var got analyzeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(positiveBody))
	}))
	defer server.Close()

	var waits []time.Duration
	c := newTestClient(server.URL, &waits)

	result, err := c.Analyze(context.Background(), "I love this")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if got.Transcript != "I love this" {
		t.Errorf("Expected transcript 'I love this', got '%s'", got.Transcript)
	}
	if result.Sentiment.Overall != Positive {
		t.Errorf("Expected overall POSITIVE, got %s", result.Sentiment.Overall)
	}
	if result.Sentiment.Scores["positive"] != 0.9 {
		t.Errorf("Expected positive score 0.9, got %v", result.Sentiment.Scores["positive"])
	}
	if len(result.KeyPhrases) != 1 || result.KeyPhrases[0].Text != "great service" {
		t.Errorf("Expected key phrase 'great service', got %v", result.KeyPhrases)
	}
	if len(result.Entities) != 1 || result.Entities[0].Type != "ORGANIZATION" {
		t.Errorf("Expected ORGANIZATION entity, got %v", result.Entities)
	}

	if c.Result() != result {
		t.Error("Expected stored result to be the returned result")
	}
	if c.Err() != "" {
		t.Errorf("Expected no error, got '%s'", c.Err())
	}
	if c.InFlight() {
		t.Error("Expected InFlight false after completion")
	}
	if len(waits) != 0 {
		t.Errorf("Expected no waits, got %v", waits)
	}
}

func TestAnalyze_ExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var waits []time.Duration
	c := newTestClient(server.URL, &waits)

	result, err := c.Analyze(context.Background(), "hello")
	if result != nil {
		t.Errorf("Expected nil result, got %v", result)
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected *HTTPError, got %T: %v", err, err)
	}
	if httpErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", httpErr.StatusCode)
	}

	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("Expected exactly 3 attempts, got %d", n)
	}
	expected := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(waits) != 2 || waits[0] != expected[0] || waits[1] != expected[1] {
		t.Errorf("Expected waits %v, got %v", expected, waits)
	}

	if c.Err() != ErrMessageFailed {
		t.Errorf("Expected error '%s', got '%s'", ErrMessageFailed, c.Err())
	}
	if c.InFlight() {
		t.Error("Expected InFlight false after exhaustion")
	}
}

func TestAnalyze_SucceedsOnSecondAttempt(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(positiveBody))
	}))
	defer server.Close()

	var waits []time.Duration
	c := newTestClient(server.URL, &waits)

	result, err := c.Analyze(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Expected success on retry, got %v", err)
	}
	if c.Result() != result || result.Sentiment.Overall != Positive {
		t.Errorf("Expected stored POSITIVE result, got %+v", c.Result())
	}
	if c.Err() != "" {
		t.Errorf("Expected no error, got '%s'", c.Err())
	}
	if len(waits) != 1 || waits[0] != time.Second {
		t.Errorf("Expected one 1s wait, got %v", waits)
	}
}

func TestAnalyze_SendsAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "secret" {
			t.Errorf("Expected x-api-key 'secret', got '%s'", got)
		}
		_, _ = w.Write([]byte(positiveBody))
	}))
	defer server.Close()

	c := NewClient(Options{Endpoint: server.URL, APIKey: "secret", MaxAttempts: 1}, zerolog.Nop())
	if _, err := c.Analyze(context.Background(), "hi"); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
}

func TestAnalyze_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	var waits []time.Duration
	c := newTestClient(url, &waits)

	_, err := c.Analyze(context.Background(), "hello")
	if !IsNetworkError(err) {
		t.Errorf("Expected *NetworkError, got %T: %v", err, err)
	}
	if len(waits) != 2 {
		t.Errorf("Expected network errors to be retried, got waits %v", waits)
	}
}

func TestAnalyze_InvalidJSONIsRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	var waits []time.Duration
	c := newTestClient(server.URL, &waits)

	if _, err := c.Analyze(context.Background(), "hello"); err == nil {
		t.Fatal("Expected decode error")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("Expected 3 attempts, got %d", n)
	}
}

func TestAnalyze_StateTransitions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(positiveBody))
	}))
	defer server.Close()

	var waits []time.Duration
	c := newTestClient(server.URL, &waits)
	c.errMsg = "stale"

	var states []State
	c.OnChange(func(s State) { states = append(states, s) })

	if _, err := c.Analyze(context.Background(), "hello"); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(states) != 2 {
		t.Fatalf("Expected 2 state changes, got %d", len(states))
	}
	if !states[0].InFlight || states[0].Err != "" {
		t.Errorf("Expected first state in flight with cleared error, got %+v", states[0])
	}
	if states[1].InFlight || states[1].Result == nil {
		t.Errorf("Expected final state with result, got %+v", states[1])
	}

	c.Clear()
	if c.Result() != nil || c.Err() != "" {
		t.Error("Expected Clear to reset result and error")
	}
	if len(states) != 3 || states[2].Result != nil {
		t.Errorf("Expected Clear to publish an empty state, got %v", states)
	}
}

func TestAnalyze_CancelledDuringWait(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(Options{Endpoint: server.URL, MaxAttempts: 3, BaseDelay: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(context.Context, time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := c.Analyze(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if c.InFlight() {
		t.Error("Expected InFlight false after cancellation")
	}
}

func TestNewHTTPError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{"empty body", 500, "", "HTTP error! status: 500"},
		{"lowercase message", 403, `{"message":"Forbidden"}`, "HTTP error! status: 403 - Forbidden"},
		{"uppercase Message", 400, `{"Message":"Bad input"}`, "HTTP error! status: 400 - Bad input"},
		{"json without message", 429, `{"code":1}`, `HTTP error! status: 429 - {"code":1}`},
		{"plain text", 502, "upstream down\n", "HTTP error! status: 502 - upstream down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewHTTPError(tt.status, []byte(tt.body))
			if err.Error() != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, err.Error())
			}
			if err.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, err.StatusCode)
			}
		})
	}
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"network", &NetworkError{Err: errors.New("connection refused")}, "network"},
		{"wrapped network", fmt.Errorf("attempt: %w", &NetworkError{Err: errors.New("eof")}), "network"},
		{"http", NewHTTPError(503, nil), "http"},
		{"cancelled", context.Canceled, "cancelled"},
		{"decode", errors.New("sentiment decode: unexpected EOF"), "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := failureKind(tt.err); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
