package stt

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lexiqai/consent-recorder/internal/config"
)

// Engine names accepted by SPEECH_ENGINE
const (
	EngineRelay    = "relay"
	EngineDeepgram = "deepgram"
	EngineGoogle   = "google"
)

// New creates a recognizer for one session from configuration
func New(cfg *config.Config, logger zerolog.Logger) Recognizer {
	switch cfg.SpeechEngine {
	case EngineRelay:
		return NewRelayRecognizer()
	case EngineDeepgram:
		return NewDeepgramRecognizer(cfg, logger)
	case EngineGoogle:
		return NewGoogleRecognizer(cfg, logger)
	default:
		return &unsupported{name: cfg.SpeechEngine}
	}
}

// unsupported stands in for an engine that does not exist
type unsupported struct {
	name string
}

func (u *unsupported) Name() string { return u.name }

func (u *unsupported) Available() error {
	return fmt.Errorf("%w: unknown engine %q", ErrUnsupportedFeature, u.name)
}

func (u *unsupported) Start(context.Context, Handler) error { return u.Available() }
func (u *unsupported) SendAudio([]byte) error               { return u.Available() }
func (u *unsupported) Stop() error                          { return nil }
