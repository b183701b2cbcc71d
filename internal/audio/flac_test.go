package audio

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/mewkiz/flac"
)

func TestEncodeFLAC(t *testing.T) {
	samples := FLACBlockSize + FLACBlockSize/4
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(i%200-100)))
	}

	data, err := EncodeFLAC(pcm, 16000)
	if err != nil {
		t.Fatalf("EncodeFLAC failed: %v", err)
	}
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Fatal("Expected output to start with FLAC magic")
	}

	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to parse encoded stream: %v", err)
	}
	if stream.Info.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", stream.Info.SampleRate)
	}
	if stream.Info.NChannels != 1 {
		t.Errorf("Expected 1 channel, got %d", stream.Info.NChannels)
	}
}

func TestEncodeFLAC_Empty(t *testing.T) {
	data, err := EncodeFLAC(nil, 16000)
	if err != nil {
		t.Fatalf("EncodeFLAC on empty input failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("Expected header-only FLAC output")
	}
}

func TestEncodeFLAC_InvalidSampleRate(t *testing.T) {
	if _, err := EncodeFLAC([]byte{0, 0}, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}
