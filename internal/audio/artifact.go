package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Artifact is one assembled, playable recording
type Artifact struct {
	ID          string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// URL returns the path the artifact is served under
func (a *Artifact) URL() string {
	return "/recordings/" + a.ID
}

// Assemble joins captured chunks into an artifact. Streams implementing
// Encoder get their raw capture packaged first.
func Assemble(stream CaptureStream, chunks *ChunkBuffer) (*Artifact, error) {
	data := chunks.Bytes()
	if enc, ok := stream.(Encoder); ok {
		encoded, err := enc.Encode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode recording: %w", err)
		}
		data = encoded
	}

	return &Artifact{
		ID:          uuid.New().String(),
		ContentType: stream.ContentType(),
		Data:        data,
		CreatedAt:   time.Now(),
	}, nil
}

// ArtifactStore keeps recordings in memory only
type ArtifactStore struct {
	mu        sync.RWMutex
	artifacts map[string]*Artifact
}

// NewArtifactStore creates an empty store
func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{
		artifacts: make(map[string]*Artifact),
	}
}

// Put stores an artifact
func (s *ArtifactStore) Put(a *Artifact) {
	s.mu.Lock()
	s.artifacts[a.ID] = a
	s.mu.Unlock()
}

// Get returns the artifact with the given id
func (s *ArtifactStore) Get(id string) (*Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[id]
	return a, ok
}

// Invalidate removes an artifact; unknown ids are ignored
func (s *ArtifactStore) Invalidate(id string) {
	s.mu.Lock()
	delete(s.artifacts, id)
	s.mu.Unlock()
}

// Len returns the number of stored artifacts
func (s *ArtifactStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.artifacts)
}
