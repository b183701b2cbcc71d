package stt

import (
	"context"
	"errors"
	"strings"
)

// ErrUnsupportedFeature is returned when no speech engine can serve the session
var ErrUnsupportedFeature = errors.New("speech recognition is not supported")

// Result is one recognized segment
type Result struct {
	Transcript string  `json:"transcript"`
	IsFinal    bool    `json:"isFinal"`
	Confidence float64 `json:"confidence"`
}

// Handler receives recognizer output. Each OnResults call carries the
// full result set of the session so far, not a delta.
type Handler struct {
	OnResults func(results []Result)
	OnError   func(err error)
}

func (h Handler) results(results []Result) {
	if h.OnResults != nil {
		h.OnResults(results)
	}
}

func (h Handler) error(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

// Recognizer is a live speech-to-text session
type Recognizer interface {
	// Name identifies the engine in logs and metrics
	Name() string

	// Available reports ErrUnsupportedFeature when the engine cannot run
	Available() error

	// Start begins recognition; results and runtime errors go to h
	Start(ctx context.Context, h Handler) error

	// SendAudio forwards a captured chunk to the engine
	SendAudio(chunk []byte) error

	// Stop ends recognition; output arriving afterwards is dropped.
	// It must be safe to call from inside a Handler callback.
	Stop() error
}

// JoinTranscript joins every segment's text with single spaces and trims the result
func JoinTranscript(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Transcript)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// segments accumulates finalized segments plus the current interim one
type segments struct {
	final   []Result
	interim *Result
}

// apply records a batch and returns the full result set
func (s *segments) apply(finals []Result, interim *Result) []Result {
	s.final = append(s.final, finals...)
	s.interim = interim

	out := make([]Result, 0, len(s.final)+1)
	out = append(out, s.final...)
	if s.interim != nil {
		out = append(out, *s.interim)
	}
	return out
}

func (s *segments) reset() {
	s.final = nil
	s.interim = nil
}
