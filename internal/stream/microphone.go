package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/lexiqai/consent-recorder/internal/audio"
)

// socketMicrophone is a capture device whose audio arrives over the session socket.
// The client asks for permission itself and reports the outcome with the start event.
type socketMicrophone struct {
	contentType string

	mu         sync.Mutex
	permission string
	stream     *socketStream
}

func newSocketMicrophone(contentType string) *socketMicrophone {
	return &socketMicrophone{contentType: contentType}
}

func (m *socketMicrophone) setPermission(p string) {
	m.mu.Lock()
	m.permission = p
	m.mu.Unlock()
}

func (m *socketMicrophone) Open(ctx context.Context) (audio.CaptureStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.permission {
	case PermissionGranted:
	case PermissionUnavailable:
		return nil, fmt.Errorf("%w: client has no capture device", audio.ErrPermissionDenied)
	default:
		return nil, fmt.Errorf("%w: client reported %q", audio.ErrPermissionDenied, m.permission)
	}

	s := &socketStream{mic: m, contentType: m.contentType}
	m.stream = s
	return s, nil
}

// push hands a received chunk to the open stream, if any
func (m *socketMicrophone) push(chunk []byte) bool {
	m.mu.Lock()
	s := m.stream
	m.mu.Unlock()

	if s == nil {
		return false
	}
	return s.push(chunk)
}

func (m *socketMicrophone) release(s *socketStream) {
	m.mu.Lock()
	if m.stream == s {
		m.stream = nil
	}
	m.mu.Unlock()
}

// socketStream delivers socket audio while started. Chunks are read in order
// on the session's read loop, so everything sent before a stop event has
// been delivered by the time Stop runs.
type socketStream struct {
	mic         *socketMicrophone
	contentType string

	mu      sync.Mutex
	cb      audio.ChunkCallback
	running bool
}

func (s *socketStream) Start(onChunk audio.ChunkCallback) error {
	s.mu.Lock()
	s.cb = onChunk
	s.running = true
	s.mu.Unlock()
	return nil
}

func (s *socketStream) push(chunk []byte) bool {
	s.mu.Lock()
	cb, running := s.cb, s.running
	s.mu.Unlock()

	if !running || cb == nil {
		return false
	}
	cb(chunk)
	return true
}

func (s *socketStream) Stop() error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *socketStream) Close() error {
	s.mu.Lock()
	s.running = false
	s.cb = nil
	s.mu.Unlock()
	s.mic.release(s)
	return nil
}

func (s *socketStream) ContentType() string { return s.contentType }
