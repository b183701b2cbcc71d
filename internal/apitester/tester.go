package apitester

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/consent-recorder/internal/sentiment"
)

// Defaults used when a request leaves fields empty
const (
	DefaultPath    = "/analyze"
	DefaultMessage = "This is a test message to analyze sentiment."
)

// ErrNotConfigured is returned when no base URL is available
var ErrNotConfigured = errors.New("API URL is not configured")

var apiGatewayHost = regexp.MustCompile(`execute-api\.[a-z0-9-]+\.amazonaws\.com`)

const maxBody = 1 << 20

// URLInfo describes how a test URL maps onto API Gateway
type URLInfo struct {
	FullURL      string `json:"fullUrl"`
	IsValid      bool   `json:"isValid"`
	IsAPIGateway bool   `json:"isApiGateway"`
	Host         string `json:"host,omitempty"`
	Path         string `json:"path,omitempty"`
	Stage        string `json:"stage,omitempty"`
	Resource     string `json:"resource,omitempty"`
}

// AnalyzeURL splits a URL into host, stage and resource path
func AnalyzeURL(raw string) URLInfo {
	info := URLInfo{FullURL: raw}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return info
	}

	info.IsValid = true
	info.IsAPIGateway = apiGatewayHost.MatchString(u.Host)
	info.Host = u.Host
	info.Path = u.Path

	segments := strings.Split(u.Path, "/")
	if len(segments) > 1 {
		info.Stage = segments[1]
	}
	if len(segments) > 2 {
		info.Resource = strings.Join(segments[2:], "/")
	}
	if info.Resource == "" {
		info.Resource = "/"
	}
	return info
}

// Request is one manual test request
type Request struct {
	BaseURL string `json:"baseUrl"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Result is the outcome of a test request. Error is set for non-2xx and transport failures.
type Result struct {
	URL        URLInfo         `json:"url"`
	StatusCode int             `json:"statusCode,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"durationMs"`
}

// Tester posts test transcripts to an analysis endpoint
type Tester struct {
	defaultBase string
	apiKey      string
	httpClient  *http.Client
	logger      zerolog.Logger
}

// New creates a tester. defaultBase is used when a request has no base URL.
func New(defaultBase, apiKey string, timeout time.Duration, logger zerolog.Logger) *Tester {
	return &Tester{
		defaultBase: defaultBase,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger.With().Str("component", "apitester").Logger(),
	}
}

// Send posts {transcript: message} to <base><path>. Endpoint failures are
// reported in Result.Error; only a missing base URL is returned as an error.
func (t *Tester) Send(ctx context.Context, req Request) (*Result, error) {
	base := req.BaseURL
	if base == "" {
		base = t.defaultBase
	}
	base = strings.TrimSuffix(base, "/")
	if base == "" {
		return nil, ErrNotConfigured
	}
	path := req.Path
	if path == "" {
		path = DefaultPath
	}
	message := req.Message
	if message == "" {
		message = DefaultMessage
	}

	full := base + path
	res := &Result{URL: AnalyzeURL(full)}
	t.logger.Info().
		Str("url", full).
		Bool("api_gateway", res.URL.IsAPIGateway).
		Str("stage", res.URL.Stage).
		Msg("Probing API")

	start := time.Now()
	defer func() { res.DurationMs = time.Since(start).Milliseconds() }()

	b, err := json.Marshal(map[string]string{"transcript": message})
	if err != nil {
		return nil, fmt.Errorf("apitester marshal: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, full, bytes.NewReader(b))
	if err != nil {
		res.Error = err.Error()
		return res, nil
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		httpReq.Header.Set("x-api-key", t.apiKey)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		res.Error = (&sentiment.NetworkError{Err: err}).Error()
		t.logger.Warn().Err(err).Msg("API test request failed")
		return res, nil
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Error = sentiment.NewHTTPError(resp.StatusCode, body).Error()
		t.logger.Warn().Int("status", resp.StatusCode).Str("error", res.Error).Msg("API test request returned an error")
		return res, nil
	}

	if json.Valid(body) {
		res.Body = body
	} else {
		res.Error = "response is not valid JSON"
	}
	return res, nil
}

// Handler serves POST /api/tester
func Handler(t *Tester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
		}

		res, err := t.Send(r.Context(), req)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
