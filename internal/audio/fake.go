package audio

import (
	"context"
	"sync"
)

// FakeMicrophone is an in-memory Microphone for tests
type FakeMicrophone struct {
	// Err, when set, is returned from Open (e.g. ErrPermissionDenied)
	Err error
	// Type is reported as the content type, default audio/webm
	Type string

	mu      sync.Mutex
	streams []*FakeStream
}

// Open returns a new FakeStream or Err
func (m *FakeMicrophone) Open(ctx context.Context) (CaptureStream, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ct := m.Type
	if ct == "" {
		ct = "audio/webm"
	}
	s := &FakeStream{contentType: ct}

	m.mu.Lock()
	m.streams = append(m.streams, s)
	m.mu.Unlock()
	return s, nil
}

// Opened returns how many streams were opened
func (m *FakeMicrophone) Opened() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}

// Last returns the most recently opened stream
func (m *FakeMicrophone) Last() *FakeStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streams) == 0 {
		return nil
	}
	return m.streams[len(m.streams)-1]
}

// FakeStream is a CaptureStream whose audio is pushed by the test
type FakeStream struct {
	contentType string

	mu      sync.Mutex
	cb      ChunkCallback
	pending [][]byte
	started bool
	stopped bool
	closed  bool
}

func (s *FakeStream) Start(onChunk ChunkCallback) error {
	s.mu.Lock()
	s.cb = onChunk
	s.started = true
	s.mu.Unlock()
	return nil
}

// Emit delivers a chunk immediately when capturing
func (s *FakeStream) Emit(chunk []byte) {
	s.mu.Lock()
	cb := s.cb
	live := s.started && !s.stopped
	s.mu.Unlock()
	if live && cb != nil {
		cb(chunk)
	}
}

// Queue holds a chunk until Stop flushes it
func (s *FakeStream) Queue(chunk []byte) {
	s.mu.Lock()
	s.pending = append(s.pending, chunk)
	s.mu.Unlock()
}

func (s *FakeStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	cb := s.cb
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if cb != nil {
		for _, c := range pending {
			cb(c)
		}
	}
	return nil
}

func (s *FakeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *FakeStream) ContentType() string { return s.contentType }

// Stopped reports whether Stop was called
func (s *FakeStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Closed reports whether the device was released
func (s *FakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
