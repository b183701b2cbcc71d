package stt

import (
	"context"
	"sync"
)

// FakeRecognizer is a scriptable Recognizer for tests
type FakeRecognizer struct {
	AvailableErr error
	StartErr     error

	mu      sync.Mutex
	handler Handler
	active  bool
	audio   [][]byte
	starts  int
	stops   int
}

func (f *FakeRecognizer) Name() string { return "fake" }

func (f *FakeRecognizer) Available() error { return f.AvailableErr }

func (f *FakeRecognizer) Start(ctx context.Context, h Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.starts++
	if f.StartErr != nil {
		return f.StartErr
	}
	f.handler = h
	f.active = true
	return nil
}

func (f *FakeRecognizer) SendAudio(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active {
		f.audio = append(f.audio, chunk)
	}
	return nil
}

func (f *FakeRecognizer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active {
		f.stops++
	}
	f.active = false
	return nil
}

// Emit delivers a full result set built from the given final segments.
// The handler is used even after Stop so tests can exercise late callbacks.
func (f *FakeRecognizer) Emit(transcripts ...string) {
	results := make([]Result, 0, len(transcripts))
	for _, t := range transcripts {
		results = append(results, Result{Transcript: t, IsFinal: true, Confidence: 1})
	}
	f.EmitResults(results)
}

// EmitResults delivers results as-is
func (f *FakeRecognizer) EmitResults(results []Result) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h.results(results)
}

// EmitError delivers a runtime recognition error
func (f *FakeRecognizer) EmitError(err error) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h.error(err)
}

// Active reports whether recognition is running
func (f *FakeRecognizer) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Audio returns the chunks forwarded while active
func (f *FakeRecognizer) Audio() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.audio...)
}

// Starts returns how many times Start was called
func (f *FakeRecognizer) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

// Stops returns how many active sessions were stopped
func (f *FakeRecognizer) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}
