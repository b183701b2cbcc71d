package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"

	"github.com/lexiqai/consent-recorder/internal/config"
)

// speechStream is the part of Speech_StreamingRecognizeClient we use
type speechStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

// dialFunc opens a streaming session; the closer releases the client
type dialFunc func(ctx context.Context) (speechStream, io.Closer, error)

func dialGoogle(ctx context.Context) (speechStream, io.Closer, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}
	return stream, client, nil
}

// GoogleRecognizer streams session audio to Google Cloud Speech with interim results
type GoogleRecognizer struct {
	config *config.Config
	logger zerolog.Logger
	dial   dialFunc

	mu       sync.Mutex
	stream   speechStream
	closer   io.Closer
	handler  Handler
	segments segments
	active   bool
	cancel   context.CancelFunc

	// sendMu orders Send against CloseSend, which grpc forbids running
	// concurrently. Lock order is mu before sendMu.
	sendMu     sync.Mutex
	sendStream speechStream
}

// NewGoogleRecognizer creates a Google recognizer for one session.
// Credentials come from Application Default Credentials.
func NewGoogleRecognizer(cfg *config.Config, logger zerolog.Logger) *GoogleRecognizer {
	return &GoogleRecognizer{
		config: cfg,
		logger: logger.With().Str("engine", EngineGoogle).Logger(),
		dial:   dialGoogle,
	}
}

func (g *GoogleRecognizer) Name() string { return EngineGoogle }

// Available requires the engine to be enabled with a known encoding
func (g *GoogleRecognizer) Available() error {
	if !g.config.GoogleSpeechEnabled {
		return fmt.Errorf("%w: GOOGLE_SPEECH_ENABLED is false", ErrUnsupportedFeature)
	}
	if _, err := getAudioEncoding(g.config.GoogleSpeechEncoding); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedFeature, err)
	}
	return nil
}

// Start opens the stream and sends the recognition config
func (g *GoogleRecognizer) Start(ctx context.Context, h Handler) error {
	if err := g.Available(); err != nil {
		return err
	}
	encoding, _ := getAudioEncoding(g.config.GoogleSpeechEncoding)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active {
		return fmt.Errorf("google recognizer is already active")
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, closer, err := g.dial(streamCtx)
	if err != nil {
		cancel()
		return err
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   encoding,
					SampleRateHertz:            int32(g.config.GoogleSpeechSampleRate),
					LanguageCode:               g.config.GoogleSpeechLanguage,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: true,
			},
		},
	}); err != nil {
		_ = stream.CloseSend()
		closer.Close()
		cancel()
		return fmt.Errorf("failed to send streaming config: %w", err)
	}

	g.stream = stream
	g.closer = closer
	g.cancel = cancel
	g.handler = h
	g.segments.reset()
	g.active = true
	g.sendMu.Lock()
	g.sendStream = stream
	g.sendMu.Unlock()

	go g.receiveResults(stream)

	g.logger.Info().Str("language", g.config.GoogleSpeechLanguage).Msg("Google streaming started")
	return nil
}

// receiveResults folds responses into the session until the stream ends
func (g *GoogleRecognizer) receiveResults(stream speechStream) {
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			g.mu.Lock()
			active, h := g.active, g.handler
			g.mu.Unlock()
			if active {
				h.error(fmt.Errorf("failed to receive response: %w", err))
			}
			return
		}
		if resp.Error != nil {
			g.logger.Warn().Str("message", resp.Error.Message).Msg("Google speech returned an error status")
		}
		g.onResponse(resp)
	}
}

// onResponse appends final results and replaces the interim segment with the
// concatenation of the response's unstable results
func (g *GoogleRecognizer) onResponse(resp *speechpb.StreamingRecognizeResponse) {
	var finals []Result
	var interimText []string
	var interimConf float64

	for _, r := range resp.GetResults() {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if r.IsFinal {
			finals = append(finals, Result{
				Transcript: strings.TrimSpace(alt.Transcript),
				IsFinal:    true,
				Confidence: float64(alt.Confidence),
			})
			continue
		}
		interimText = append(interimText, strings.TrimSpace(alt.Transcript))
		interimConf = float64(r.Stability)
	}

	var interim *Result
	if len(interimText) > 0 {
		interim = &Result{Transcript: strings.Join(interimText, " "), Confidence: interimConf}
	}
	if len(finals) == 0 && interim == nil {
		return
	}

	g.mu.Lock()
	if !g.active {
		g.mu.Unlock()
		return
	}
	results := g.segments.apply(finals, interim)
	h := g.handler
	g.mu.Unlock()

	h.results(results)
}

func (g *GoogleRecognizer) SendAudio(chunk []byte) error {
	g.sendMu.Lock()
	defer g.sendMu.Unlock()

	stream := g.sendStream
	if stream == nil {
		return fmt.Errorf("google recognizer is not active")
	}
	if len(chunk) == 0 {
		return nil
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: chunk,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

// Stop closes the send side and releases the client
func (g *GoogleRecognizer) Stop() error {
	g.mu.Lock()
	if !g.active {
		g.mu.Unlock()
		return nil
	}
	g.active = false
	g.handler = Handler{}
	stream, closer, cancel := g.stream, g.closer, g.cancel
	g.stream, g.closer = nil, nil
	g.mu.Unlock()

	// Stop may run on the receive goroutine via a handler, so it never waits for it.
	// An in-flight Send finishes before the send side closes.
	g.sendMu.Lock()
	g.sendStream = nil
	err := stream.CloseSend()
	g.sendMu.Unlock()
	cancel()
	if cerr := closer.Close(); err == nil {
		err = cerr
	}

	g.logger.Info().Msg("Google streaming stopped")
	return err
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
