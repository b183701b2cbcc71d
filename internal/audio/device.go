package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// DeviceConfig selects the local capture format. Capture is always 16-bit mono.
type DeviceConfig struct {
	SampleRate uint32
}

// DeviceMicrophone captures from the default system input through miniaudio
type DeviceMicrophone struct {
	Config DeviceConfig
}

// NewDeviceMicrophone creates a microphone for the default capture device
func NewDeviceMicrophone(sampleRate uint32) *DeviceMicrophone {
	if sampleRate == 0 {
		sampleRate = 16000
	}
	return &DeviceMicrophone{Config: DeviceConfig{SampleRate: sampleRate}}
}

// Open initialises the audio context and capture device. Any failure is
// reported as ErrPermissionDenied since the caller cannot tell them apart.
func (m *DeviceMicrophone) Open(ctx context.Context) (CaptureStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	s := &deviceStream{ctx: mctx, sampleRate: m.Config.SampleRate}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = m.Config.SampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, _ uint32) {
			s.deliver(data)
		},
	}

	dev, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	s.device = dev
	return s, nil
}

type deviceStream struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate uint32

	mu     sync.Mutex
	cb     ChunkCallback
	closed bool
}

func (s *deviceStream) deliver(data []byte) {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb == nil {
		return
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	cb(chunk)
}

func (s *deviceStream) Start(onChunk ChunkCallback) error {
	s.mu.Lock()
	s.cb = onChunk
	s.mu.Unlock()
	return s.device.Start()
}

// Stop blocks until miniaudio has drained the callback
func (s *deviceStream) Stop() error {
	err := s.device.Stop()
	s.mu.Lock()
	s.cb = nil
	s.mu.Unlock()
	return err
}

func (s *deviceStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cb = nil
	s.mu.Unlock()

	s.device.Uninit()
	err := s.ctx.Uninit()
	s.ctx.Free()
	return err
}

func (s *deviceStream) ContentType() string { return "audio/flac" }

func (s *deviceStream) Encode(raw []byte) ([]byte, error) {
	return EncodeFLAC(raw, s.sampleRate)
}
