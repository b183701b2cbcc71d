package stt

import (
	"context"
	"fmt"
	"sync"
)

// RelayRecognizer runs recognition on the client; result sets arrive over the
// session transport and are relayed to the handler unchanged.
type RelayRecognizer struct {
	mu          sync.Mutex
	handler     Handler
	active      bool
	unsupported bool
}

// NewRelayRecognizer creates a relay recognizer
func NewRelayRecognizer() *RelayRecognizer {
	return &RelayRecognizer{}
}

func (r *RelayRecognizer) Name() string { return EngineRelay }

// SetSupported records whether the client has a speech engine
func (r *RelayRecognizer) SetSupported(supported bool) {
	r.mu.Lock()
	r.unsupported = !supported
	r.mu.Unlock()
}

// Available fails when the client reported no speech engine
func (r *RelayRecognizer) Available() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsupported {
		return fmt.Errorf("%w: client has no speech engine", ErrUnsupportedFeature)
	}
	return nil
}

func (r *RelayRecognizer) Start(ctx context.Context, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return fmt.Errorf("relay recognizer is already active")
	}
	r.handler = h
	r.active = true
	return nil
}

// SendAudio is a no-op; audio never leaves the client for recognition
func (r *RelayRecognizer) SendAudio([]byte) error { return nil }

func (r *RelayRecognizer) Stop() error {
	r.mu.Lock()
	r.active = false
	r.handler = Handler{}
	r.mu.Unlock()
	return nil
}

// Push delivers a client result set. Ignored when not started.
func (r *RelayRecognizer) Push(results []Result) {
	r.mu.Lock()
	h, active := r.handler, r.active
	r.mu.Unlock()

	if active {
		h.results(results)
	}
}

// PushError delivers a client recognition error. Ignored when not started.
func (r *RelayRecognizer) PushError(err error) {
	r.mu.Lock()
	h, active := r.handler, r.active
	r.mu.Unlock()

	if active {
		h.error(err)
	}
}
