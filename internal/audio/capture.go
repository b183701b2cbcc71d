package audio

import (
	"context"
	"errors"
)

// ErrPermissionDenied is returned when the capture device is refused or unsupported
var ErrPermissionDenied = errors.New("microphone access denied")

// ChunkCallback receives captured audio in capture order
type ChunkCallback func(chunk []byte)

// Microphone acquires a capture device. Open is the permission-gated step.
type Microphone interface {
	Open(ctx context.Context) (CaptureStream, error)
}

// CaptureStream is an acquired capture device.
// Stop halts capture and delivers pending data before returning;
// Close releases the device and must be called on every exit path.
type CaptureStream interface {
	Start(onChunk ChunkCallback) error
	Stop() error
	Close() error
	ContentType() string
}

// Encoder is implemented by streams whose raw chunks need packaging into a playable container
type Encoder interface {
	Encode(raw []byte) ([]byte, error)
}
