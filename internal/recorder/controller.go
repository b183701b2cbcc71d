package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexiqai/consent-recorder/internal/audio"
	"github.com/lexiqai/consent-recorder/internal/observability"
	"github.com/lexiqai/consent-recorder/internal/stt"
)

// Errors returned by Start
var (
	ErrPermissionDenied   = audio.ErrPermissionDenied
	ErrUnsupportedFeature = stt.ErrUnsupportedFeature
)

// State is the controller's lifecycle state
type State int

const (
	StateIdle State = iota
	StateRecording
	StateNonConsentStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateNonConsentStopped:
		return "non_consent_stopped"
	default:
		return "unknown"
	}
}

// Observer receives controller updates. Any field may be nil.
type Observer struct {
	OnState      func(State)
	OnTranscript func(string)
	OnArtifact   func(*audio.Artifact)
}

// Options wires a controller's collaborators
type Options struct {
	Microphone audio.Microphone
	Recognizer stt.Recognizer
	Analyzer   Analyzer
	Notifier   Notifier
	Phrases    PhraseSet
	Artifacts  *audio.ArtifactStore
	Observer   Observer
	Logger     zerolog.Logger
}

// session is one Recording period
type session struct {
	id        string
	startedAt time.Time
	stream    audio.CaptureStream
	chunks    *audio.ChunkBuffer
	logger    zerolog.Logger
}

// Controller runs at most one recording session at a time: capture and live
// transcription in parallel, a non-consent scan on every transcript update,
// and analysis of the final transcript on Stop.
type Controller struct {
	opts   Options
	logger zerolog.Logger

	// lifecycle serializes Start, Stop and Close; callbacks never take it
	lifecycle sync.Mutex

	mu                  sync.Mutex
	state               State
	session             *session
	transcript          string
	artifact            *audio.Artifact
	unsupportedNotified bool

	analyses sync.WaitGroup
}

// NewController creates an idle controller
func NewController(opts Options) *Controller {
	if opts.Artifacts == nil {
		opts.Artifacts = audio.NewArtifactStore()
	}
	return &Controller{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "recorder").Logger(),
	}
}

// Start begins a recording session. It is a no-op while recording.
func (c *Controller) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.opts.Recognizer.Available(); err != nil {
		return c.unsupported(err)
	}

	stream, err := c.opts.Microphone.Open(ctx)
	if err != nil {
		return c.microphoneFailed(err)
	}

	sess := &session{
		id:        uuid.New().String(),
		startedAt: time.Now(),
		stream:    stream,
		chunks:    audio.NewChunkBuffer(),
	}
	sess.logger = c.logger.With().Str("recording_id", sess.id).Logger()

	c.mu.Lock()
	c.transcript = ""
	if c.artifact != nil {
		c.opts.Artifacts.Invalidate(c.artifact.ID)
		c.artifact = nil
	}
	c.session = sess
	c.state = StateRecording
	c.mu.Unlock()

	observability.RecordRecordingStart()
	c.emitTranscript("")
	c.emitArtifact(nil)
	c.emitState(StateRecording)

	if err := stream.Start(func(chunk []byte) { c.handleChunk(sess, chunk) }); err != nil {
		c.abortStart(sess)
		return c.microphoneFailed(err)
	}

	handler := stt.Handler{
		OnResults: func(results []stt.Result) { c.handleResults(sess, results) },
		OnError:   func(err error) { c.handleRecognitionError(sess, err) },
	}
	if err := c.opts.Recognizer.Start(ctx, handler); err != nil {
		c.abortStart(sess)
		observability.RecordStartFailure("recognizer")
		if errors.Is(err, stt.ErrUnsupportedFeature) {
			return c.unsupported(err)
		}
		c.notify(KindError, msgRecognitionError+err.Error())
		return fmt.Errorf("failed to start speech recognition: %w", err)
	}

	c.mu.Lock()
	live := c.session == sess
	c.mu.Unlock()
	if !live {
		return nil
	}

	sess.logger.Info().Str("engine", c.opts.Recognizer.Name()).Msg("Recording started")
	c.notify(KindInfo, MsgRecordingStarted)
	return nil
}

// unsupported reports a missing speech engine; the user is told once
func (c *Controller) unsupported(err error) error {
	observability.RecordStartFailure("unsupported")

	c.mu.Lock()
	first := !c.unsupportedNotified
	c.unsupportedNotified = true
	c.mu.Unlock()

	if first {
		c.notify(KindError, MsgUnsupported)
	}
	c.logger.Warn().Err(err).Msg("Speech recognition unavailable")

	if errors.Is(err, stt.ErrUnsupportedFeature) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnsupportedFeature, err)
}

// microphoneFailed reports a denied or unusable capture device
func (c *Controller) microphoneFailed(err error) error {
	observability.RecordStartFailure("microphone")
	c.logger.Warn().Err(err).Msg("Error accessing microphone")
	c.notify(KindError, MsgMicrophoneError)

	if errors.Is(err, audio.ErrPermissionDenied) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
}

// abortStart releases a session that never reached Recording
func (c *Controller) abortStart(sess *session) {
	if _, ok := c.claim(sess, StateIdle); !ok {
		return
	}
	if err := sess.stream.Stop(); err != nil {
		sess.logger.Warn().Err(err).Msg("Failed to stop capture")
	}
	if err := sess.stream.Close(); err != nil {
		sess.logger.Warn().Err(err).Msg("Failed to release microphone")
	}
	observability.RecordRecordingEnd(observability.OutcomeTeardown, sess.startedAt)
	c.emitState(StateIdle)
}

// claim ends sess if it is still current, moving to next. It returns the
// transcript as it stood when the session ended.
func (c *Controller) claim(sess *session, next State) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != sess {
		return "", false
	}
	c.session = nil
	c.state = next
	return c.transcript, true
}

func (c *Controller) handleChunk(sess *session, chunk []byte) {
	sess.chunks.Append(chunk)
	observability.RecordAudioBytes(len(chunk))

	if err := c.opts.Recognizer.SendAudio(chunk); err != nil {
		sess.logger.Debug().Err(err).Msg("Audio not forwarded to recognizer")
	}
}

// handleResults replaces the transcript and scans it before any other update applies
func (c *Controller) handleResults(sess *session, results []stt.Result) {
	transcript := stt.JoinTranscript(results)

	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return
	}
	c.transcript = transcript
	phrase, matched := c.opts.Phrases.Match(transcript)
	if matched {
		c.session = nil
		c.state = StateNonConsentStopped
		c.transcript = ""
	}
	c.mu.Unlock()

	observability.RecordTranscriptUpdate()
	if !matched {
		c.emitTranscript(transcript)
		return
	}

	sess.logger.Info().Str("phrase", phrase).Msg("Caller did not consent, stopping recording")
	c.emitState(StateNonConsentStopped)
	c.emitTranscript("")

	c.stopStreams(sess)
	sess.chunks.Reset()
	observability.RecordRecordingEnd(observability.OutcomeNonConsent, sess.startedAt)
	c.notify(KindInfo, MsgNonConsent)

	c.mu.Lock()
	settled := c.session == nil && c.state == StateNonConsentStopped
	if settled {
		c.state = StateIdle
	}
	c.mu.Unlock()
	if settled {
		c.emitState(StateIdle)
	}
}

// handleRecognitionError surfaces a runtime engine error; recording continues
func (c *Controller) handleRecognitionError(sess *session, err error) {
	c.mu.Lock()
	live := c.session == sess
	c.mu.Unlock()
	if !live {
		return
	}

	observability.RecordRecognitionError(c.opts.Recognizer.Name())
	sess.logger.Warn().Err(err).Msg("Speech recognition error")
	c.notify(KindError, msgRecognitionError+err.Error())
}

// stopStreams halts transcription and capture and releases the microphone
func (c *Controller) stopStreams(sess *session) {
	if err := sess.stream.Stop(); err != nil {
		sess.logger.Warn().Err(err).Msg("Failed to stop capture")
	}
	if err := c.opts.Recognizer.Stop(); err != nil {
		sess.logger.Warn().Err(err).Msg("Failed to stop speech recognition")
	}
	if err := sess.stream.Close(); err != nil {
		sess.logger.Warn().Err(err).Msg("Failed to release microphone")
	}
}

// Stop ends the session, publishes the artifact and analyzes a non-empty
// final transcript in the background. It is a no-op when not recording.
func (c *Controller) Stop(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return nil
	}
	transcript, ok := c.claim(sess, StateIdle)
	if !ok {
		return nil
	}

	// capture flushes into the buffer before the release
	if err := sess.stream.Stop(); err != nil {
		sess.logger.Warn().Err(err).Msg("Failed to stop capture")
	}
	if err := c.opts.Recognizer.Stop(); err != nil {
		sess.logger.Warn().Err(err).Msg("Failed to stop speech recognition")
	}

	artifact, err := audio.Assemble(sess.stream, sess.chunks)
	if cerr := sess.stream.Close(); cerr != nil {
		sess.logger.Warn().Err(cerr).Msg("Failed to release microphone")
	}
	if err != nil {
		sess.logger.Error().Err(err).Msg("Failed to assemble recording")
	} else {
		c.opts.Artifacts.Put(artifact)
		c.mu.Lock()
		c.artifact = artifact
		c.mu.Unlock()
		c.emitArtifact(artifact)
	}

	observability.RecordRecordingEnd(observability.OutcomeCompleted, sess.startedAt)
	sess.logger.Info().
		Int("audio_bytes", sess.chunks.Size()).
		Int("transcript_length", len(transcript)).
		Msg("Recording stopped")
	c.emitState(StateIdle)

	if transcript != "" && c.opts.Analyzer != nil {
		c.analyses.Add(1)
		go func() {
			defer c.analyses.Done()
			if _, err := c.opts.Analyzer.Analyze(context.WithoutCancel(ctx), transcript); err != nil {
				sess.logger.Error().Err(err).Msg("Error analyzing sentiment")
			}
		}()
	}
	return nil
}

// Close tears down any session without producing an artifact or analysis and
// drops the last artifact from the store
func (c *Controller) Close(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	sess := c.session
	if c.artifact != nil {
		c.opts.Artifacts.Invalidate(c.artifact.ID)
		c.artifact = nil
	}
	c.mu.Unlock()
	if sess == nil {
		return nil
	}
	if _, ok := c.claim(sess, StateIdle); !ok {
		return nil
	}

	c.stopStreams(sess)
	observability.RecordRecordingEnd(observability.OutcomeTeardown, sess.startedAt)
	sess.logger.Info().Msg("Recording torn down")
	c.emitState(StateIdle)
	return nil
}

// Wait blocks until background analyses finish
func (c *Controller) Wait() {
	c.analyses.Wait()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

func (c *Controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// Artifact returns the last completed recording, or nil
func (c *Controller) Artifact() *audio.Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artifact
}

func (c *Controller) notify(kind NotificationKind, msg string) {
	if c.opts.Notifier != nil {
		c.opts.Notifier.Notify(Notification{Kind: kind, Message: msg})
	}
}

func (c *Controller) emitState(s State) {
	if c.opts.Observer.OnState != nil {
		c.opts.Observer.OnState(s)
	}
}

func (c *Controller) emitTranscript(t string) {
	if c.opts.Observer.OnTranscript != nil {
		c.opts.Observer.OnTranscript(t)
	}
}

func (c *Controller) emitArtifact(a *audio.Artifact) {
	if c.opts.Observer.OnArtifact != nil {
		c.opts.Observer.OnArtifact(a)
	}
}
