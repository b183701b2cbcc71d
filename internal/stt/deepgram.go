package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/consent-recorder/internal/config"
	"github.com/lexiqai/consent-recorder/internal/observability"
	"github.com/lexiqai/consent-recorder/internal/resilience"
)

// messageCallbackHandler implements the LiveMessageCallback interface
// It embeds the default handler and overrides only the methods we need to customize
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	handler      func(*msginterfaces.MessageResponse)
	errorHandler func(*msginterfaces.ErrorResponse) error
}

// Message forwards transcription messages
func (m *messageCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	m.handler(message)
	return nil
}

// Error overrides the default handler to use our custom error handling
func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	if m.errorHandler != nil {
		return m.errorHandler(errorResponse)
	}
	return m.DefaultCallbackHandler.Error(errorResponse)
}

// DeepgramRecognizer streams session audio to Deepgram's live API
type DeepgramRecognizer struct {
	config         *config.Config
	logger         zerolog.Logger
	circuitBreaker *resilience.CircuitBreaker

	mu       sync.Mutex
	client   *listenClient.WSCallback
	handler  Handler
	segments segments
	active   bool
	ctx      context.Context
	cancel   context.CancelFunc

	reconnecting sync.Mutex
}

// NewDeepgramRecognizer creates a Deepgram recognizer for one session
func NewDeepgramRecognizer(cfg *config.Config, logger zerolog.Logger) *DeepgramRecognizer {
	return &DeepgramRecognizer{
		config: cfg,
		logger: logger.With().Str("engine", EngineDeepgram).Logger(),
		circuitBreaker: resilience.NewCircuitBreaker(
			EngineDeepgram,
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
	}
}

func (d *DeepgramRecognizer) Name() string { return EngineDeepgram }

// Available requires an API key
func (d *DeepgramRecognizer) Available() error {
	if d.config.DeepgramAPIKey == "" {
		return fmt.Errorf("%w: DEEPGRAM_API_KEY is not set", ErrUnsupportedFeature)
	}
	return nil
}

// Start opens the live transcription socket
func (d *DeepgramRecognizer) Start(ctx context.Context, h Handler) error {
	if err := d.Available(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return fmt.Errorf("deepgram recognizer is already active")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.handler = h
	d.segments.reset()

	if err := d.connectLocked(); err != nil {
		d.cancel()
		return err
	}
	d.active = true

	d.logger.Info().
		Str("model", d.config.DeepgramModel).
		Str("language", d.config.DeepgramLanguage).
		Msg("Deepgram streaming started")
	return nil
}

// liveOptions builds transcription options. An empty encoding lets Deepgram
// detect containerized audio such as webm.
func (d *DeepgramRecognizer) liveOptions() *interfaces.LiveTranscriptionOptions {
	opts := &interfaces.LiveTranscriptionOptions{
		Model:          d.config.DeepgramModel,
		Language:       d.config.DeepgramLanguage,
		Punctuate:      true,
		InterimResults: true,
		UtteranceEndMs: "1000",
		VadEvents:      true,
	}
	if d.config.DeepgramEncoding != "" {
		opts.Encoding = d.config.DeepgramEncoding
		opts.Channels = 1
		opts.SampleRate = d.config.DeepgramSampleRate
	}
	return opts
}

// connectLocked dials Deepgram. d.mu must be held.
func (d *DeepgramRecognizer) connectLocked() error {
	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		handler:                d.handleMessage,
		errorHandler:           d.handleStreamError,
	}

	client, err := listenClient.NewWSUsingCallback(d.ctx, d.config.DeepgramAPIKey, nil, d.liveOptions(), callback)
	if err != nil {
		d.recordBreaker(false)
		return fmt.Errorf("failed to create Deepgram client: %w", err)
	}
	if !client.Connect() {
		d.recordBreaker(false)
		return fmt.Errorf("failed to connect to Deepgram")
	}

	d.client = client
	d.recordBreaker(true)
	return nil
}

func (d *DeepgramRecognizer) recordBreaker(success bool) {
	d.circuitBreaker.RecordResult(success)
	d.publishBreaker(!success)
}

// publishBreaker exports the breaker state and optionally counts one failure
func (d *DeepgramRecognizer) publishBreaker(failed bool) {
	name := d.circuitBreaker.Name()
	observability.UpdateCircuitBreakerState(name, int(d.circuitBreaker.GetState()))
	if failed {
		observability.IncrementCircuitBreakerFailures(name)
	}
}

// handleMessage processes messages from Deepgram
func (d *DeepgramRecognizer) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil {
		return
	}

	switch msg.Type {
	case "Results", "Message":
		if len(msg.Channel.Alternatives) == 0 {
			return
		}
		alt := msg.Channel.Alternatives[0]
		d.onSegment(Result{
			Transcript: alt.Transcript,
			IsFinal:    msg.IsFinal,
			Confidence: alt.Confidence,
		})
	default:
		d.logger.Debug().Str("type", msg.Type).Msg("Ignoring Deepgram message")
	}
}

// onSegment folds one segment into the session and delivers the full set
func (d *DeepgramRecognizer) onSegment(r Result) {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}

	var results []Result
	if r.IsFinal {
		if r.Transcript == "" {
			results = d.segments.apply(nil, nil)
		} else {
			results = d.segments.apply([]Result{r}, nil)
		}
	} else {
		results = d.segments.apply(nil, &r)
	}
	h := d.handler
	d.mu.Unlock()

	h.results(results)
}

// handleStreamError reports the error and reconnects in the background
func (d *DeepgramRecognizer) handleStreamError(errorResponse *msginterfaces.ErrorResponse) error {
	err := fmt.Errorf("deepgram stream error")
	if errorResponse != nil {
		err = fmt.Errorf("deepgram stream error: %+v", *errorResponse)
	}
	d.logger.Warn().Err(err).Msg("Deepgram error")
	d.recordBreaker(false)

	d.mu.Lock()
	active, h := d.active, d.handler
	d.mu.Unlock()
	if !active {
		return nil
	}

	h.error(err)
	go d.attemptReconnect()
	return nil
}

// SendAudio sends an audio chunk to Deepgram through the circuit breaker
func (d *DeepgramRecognizer) SendAudio(chunk []byte) error {
	err := d.circuitBreaker.Call(func() error {
		d.mu.Lock()
		active, client := d.active, d.client
		d.mu.Unlock()

		if !active || client == nil {
			return fmt.Errorf("deepgram recognizer is not active")
		}

		if _, err := client.Write(chunk); err != nil {
			go d.attemptReconnect()
			return fmt.Errorf("failed to send audio to Deepgram: %w", err)
		}
		return nil
	})

	// Rejected chunks are not failures of the dependency
	d.publishBreaker(err != nil && !errors.Is(err, resilience.ErrCircuitOpen))
	return err
}

// attemptReconnect replaces the socket; concurrent triggers collapse into one
func (d *DeepgramRecognizer) attemptReconnect() {
	if !d.reconnecting.TryLock() {
		return
	}
	defer d.reconnecting.Unlock()

	d.mu.Lock()
	ctx, active := d.ctx, d.active
	d.mu.Unlock()
	if !active || ctx.Err() != nil {
		return
	}

	reconnectConfig := &resilience.ReconnectConfig{
		MaxAttempts: d.config.ReconnectMaxAttempts,
		Backoff:     time.Duration(d.config.ReconnectBackoff) * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}

	err := resilience.Reconnect(ctx, d.logger, func() error {
		d.mu.Lock()
		defer d.mu.Unlock()
		if !d.active {
			return nil
		}
		if d.client != nil {
			d.client.Stop()
		}
		return d.connectLocked()
	}, reconnectConfig)
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to reconnect Deepgram")
	}
}

// Stop finishes the Deepgram session
func (d *DeepgramRecognizer) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}
	d.active = false
	d.handler = Handler{}

	// Stop may run on an SDK callback goroutine, so the socket is finished asynchronously
	if client := d.client; client != nil {
		go client.Finish()
		d.client = nil
	}
	d.cancel()

	d.logger.Info().Msg("Deepgram streaming stopped")
	return nil
}
