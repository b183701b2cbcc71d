package audio

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

type encodingStream struct {
	*FakeStream
	err error
}

func (s *encodingStream) Encode(raw []byte) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]byte("HDR"), raw...), nil
}

func TestAssemble_Concatenates(t *testing.T) {
	mic := &FakeMicrophone{}
	stream, err := mic.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	chunks := NewChunkBuffer()
	chunks.Append([]byte("ab"))
	chunks.Append([]byte("cd"))

	a, err := Assemble(stream, chunks)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if !bytes.Equal(a.Data, []byte("abcd")) {
		t.Errorf("Expected 'abcd', got %q", a.Data)
	}
	if a.ContentType != "audio/webm" {
		t.Errorf("Expected content type 'audio/webm', got '%s'", a.ContentType)
	}
	if a.ID == "" {
		t.Error("Expected artifact ID to be set")
	}
	if a.URL() != "/recordings/"+a.ID {
		t.Errorf("Expected URL '/recordings/%s', got '%s'", a.ID, a.URL())
	}
}

func TestAssemble_UsesEncoder(t *testing.T) {
	stream := &encodingStream{FakeStream: &FakeStream{contentType: "audio/flac"}}
	chunks := NewChunkBuffer()
	chunks.Append([]byte("pcm"))

	a, err := Assemble(stream, chunks)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if string(a.Data) != "HDRpcm" {
		t.Errorf("Expected encoded data 'HDRpcm', got %q", a.Data)
	}
	if a.ContentType != "audio/flac" {
		t.Errorf("Expected content type 'audio/flac', got '%s'", a.ContentType)
	}

	stream.err = errors.New("boom")
	if _, err := Assemble(stream, chunks); err == nil {
		t.Error("Expected encoder error to be returned")
	}
}

func TestArtifactStore(t *testing.T) {
	store := NewArtifactStore()
	a := &Artifact{ID: "one", Data: []byte{1}}
	store.Put(a)

	got, ok := store.Get("one")
	if !ok || got != a {
		t.Fatalf("Expected stored artifact, got %v (ok=%v)", got, ok)
	}

	store.Invalidate("one")
	if _, ok := store.Get("one"); ok {
		t.Error("Expected artifact to be gone after Invalidate")
	}

	store.Invalidate("missing")
	if store.Len() != 0 {
		t.Errorf("Expected empty store, got %d", store.Len())
	}
}

func TestFakeMicrophone(t *testing.T) {
	mic := &FakeMicrophone{Err: ErrPermissionDenied}
	if _, err := mic.Open(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}

	mic = &FakeMicrophone{}
	s, _ := mic.Open(context.Background())
	stream := s.(*FakeStream)

	var got [][]byte
	stream.Emit([]byte("early"))
	_ = stream.Start(func(c []byte) { got = append(got, c) })
	stream.Emit([]byte("a"))
	stream.Queue([]byte("b"))
	_ = stream.Stop()
	stream.Emit([]byte("late"))

	if len(got) != 2 || string(got[0]) != "a" || string(got[1]) != "b" {
		t.Errorf("Expected [a b], got %q", got)
	}
	if !stream.Stopped() || stream.Closed() {
		t.Error("Expected stream stopped but not closed")
	}
	_ = stream.Close()
	if !stream.Closed() {
		t.Error("Expected stream closed")
	}
}
