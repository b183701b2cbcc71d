package stream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/consent-recorder/internal/audio"
	"github.com/lexiqai/consent-recorder/internal/config"
	"github.com/lexiqai/consent-recorder/internal/observability"
	"github.com/lexiqai/consent-recorder/internal/recorder"
	"github.com/lexiqai/consent-recorder/internal/sentiment"
	"github.com/lexiqai/consent-recorder/internal/stt"
)

const (
	writeWait      = 10 * time.Second
	outboxSize     = 64
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Recorder clients are served from other origins during development
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Deps are the process-wide collaborators shared by every session
type Deps struct {
	Config    *config.Config
	Artifacts *audio.ArtifactStore
	Phrases   recorder.PhraseSet

	// NewRecognizer defaults to stt.New
	NewRecognizer func(cfg *config.Config, logger zerolog.Logger) stt.Recognizer
}

// Session binds one socket to one recording controller and one sentiment client
type Session struct {
	id     string
	conn   *websocket.Conn
	logger zerolog.Logger

	mic        *socketMicrophone
	recognizer stt.Recognizer
	relay      *stt.RelayRecognizer // nil unless the relay engine is used
	controller *recorder.Controller
	analysis   *sentiment.Client

	outbox    chan ServerMessage
	done      chan struct{}
	closeOnce sync.Once
}

// HandleRecorderWS is the entry point for recorder client connections
func HandleRecorderWS(deps Deps) http.HandlerFunc {
	if deps.NewRecognizer == nil {
		deps.NewRecognizer = stt.New
	}
	if deps.Artifacts == nil {
		deps.Artifacts = audio.NewArtifactStore()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger := observability.GetLogger()
			logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}

		s := NewSession(conn, deps, r.RemoteAddr)
		s.Run(r.Context())
	}
}

// NewSession wires a controller for conn
func NewSession(conn *websocket.Conn, deps Deps, remoteAddr string) *Session {
	id := uuid.New().String()
	logger := observability.SessionLogger(id, remoteAddr)

	s := &Session{
		id:     id,
		conn:   conn,
		logger: logger,
		mic:    newSocketMicrophone(deps.Config.AudioContentType),
		outbox: make(chan ServerMessage, outboxSize),
		done:   make(chan struct{}),
	}

	s.recognizer = deps.NewRecognizer(deps.Config, logger)
	if relay, ok := s.recognizer.(*stt.RelayRecognizer); ok {
		s.relay = relay
	}

	s.analysis = sentiment.NewClient(sentiment.OptionsFromConfig(deps.Config), logger)
	s.analysis.OnChange(func(state sentiment.State) {
		s.send(ServerMessage{Event: EventAnalysis, Analysis: &state})
	})

	s.controller = recorder.NewController(recorder.Options{
		Microphone: s.mic,
		Recognizer: s.recognizer,
		Analyzer:   s.analysis,
		Notifier:   recorder.NotifierFunc(s.notify),
		Phrases:    deps.Phrases,
		Artifacts:  deps.Artifacts,
		Logger:     logger,
		Observer: recorder.Observer{
			OnState:      s.pushState,
			OnTranscript: s.pushTranscript,
			OnArtifact:   s.pushArtifact,
		},
	})
	return s
}

// Run serves the session until the client disconnects
func (s *Session) Run(ctx context.Context) {
	observability.SessionOpened()
	defer observability.SessionClosed()

	s.logger.Info().Str("engine", s.recognizer.Name()).Msg("Recorder session connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump()
	}()

	s.send(ServerMessage{Event: EventSession, SessionID: s.id, Engine: s.recognizer.Name()})
	s.pushState(s.controller.State())

	s.readLoop(ctx)

	// Teardown releases the microphone and speech engine; no analysis starts
	if err := s.controller.Close(context.Background()); err != nil {
		s.logger.Warn().Err(err).Msg("Error tearing down recorder")
	}
	s.close()
	<-writerDone
	s.conn.Close()

	s.logger.Info().Msg("Recorder session closed")
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// readLoop handles client events in arrival order
func (s *Session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)

	for {
		msgType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		if msgType == websocket.BinaryMessage {
			s.handleAudio(message)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.logger.Error().Err(err).Msg("Failed to parse client message")
			continue
		}
		s.handle(ctx, &msg)
	}
}

func (s *Session) handle(ctx context.Context, msg *ClientMessage) {
	switch msg.Event {
	case EventStart:
		s.mic.setPermission(msg.Microphone)
		if s.relay != nil {
			s.relay.SetSupported(msg.Speech != "unsupported")
		}
		if err := s.controller.Start(ctx); err != nil {
			s.logger.Info().Err(err).Msg("Recording did not start")
		}

	case EventMedia:
		if msg.Media == nil {
			s.logger.Warn().Msg("Media event missing payload")
			return
		}
		payload := msg.Media.Payload
		if payload == "" {
			payload = msg.Media.Chunk
		}
		chunk, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to decode base64 audio")
			return
		}
		s.handleAudio(chunk)

	case EventResults:
		if s.relay == nil {
			s.logger.Warn().Msg("Ignoring client results, server-side speech engine in use")
			return
		}
		s.relay.Push(msg.Results)

	case EventRecognitionError:
		if s.relay == nil {
			return
		}
		s.relay.PushError(errors.New(msg.Error))

	case EventStop:
		if err := s.controller.Stop(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Error stopping recording")
		}

	case EventClear:
		s.analysis.Clear()

	default:
		s.logger.Warn().Str("event", msg.Event).Msg("Unknown client event")
	}
}

func (s *Session) handleAudio(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	if !s.mic.push(chunk) {
		s.logger.Debug().Int("bytes", len(chunk)).Msg("Dropping audio received while not recording")
	}
}

// send queues a message for the writer; it is dropped once the session closed
func (s *Session) send(msg ServerMessage) {
	select {
	case s.outbox <- msg:
	case <-s.done:
	}
}

// writePump is the connection's only writer
func (s *Session) writePump() {
	for {
		select {
		case msg := <-s.outbox:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Warn().Err(err).Str("event", msg.Event).Msg("Failed to write to client")
				s.close()
				return
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Session) notify(n recorder.Notification) {
	s.send(ServerMessage{Event: EventNotification, Notification: &n})
}

func (s *Session) pushState(state recorder.State) {
	recording := state == recorder.StateRecording
	s.send(ServerMessage{Event: EventState, State: state.String(), Recording: &recording})
}

func (s *Session) pushTranscript(transcript string) {
	s.send(ServerMessage{Event: EventTranscript, Transcript: &transcript})
}

func (s *Session) pushArtifact(a *audio.Artifact) {
	msg := ServerMessage{Event: EventArtifact}
	if a != nil {
		msg.Artifact = &ArtifactInfo{
			ID:          a.ID,
			URL:         a.URL(),
			ContentType: a.ContentType,
			Size:        len(a.Data),
		}
	}
	s.send(msg)
}

// ID returns the session id
func (s *Session) ID() string { return s.id }
