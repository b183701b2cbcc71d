package stream

import (
	"github.com/lexiqai/consent-recorder/internal/recorder"
	"github.com/lexiqai/consent-recorder/internal/sentiment"
	"github.com/lexiqai/consent-recorder/internal/stt"
)

// Client event names
const (
	EventStart            = "start"
	EventMedia            = "media"
	EventResults          = "results"
	EventRecognitionError = "recognition_error"
	EventStop             = "stop"
	EventClear            = "clear"
)

// Server event names
const (
	EventSession      = "session"
	EventState        = "state"
	EventTranscript   = "transcript"
	EventNotification = "notification"
	EventArtifact     = "artifact"
	EventAnalysis     = "analysis"
)

// Microphone permission outcomes reported with a start event
const (
	PermissionGranted     = "granted"
	PermissionDenied      = "denied"
	PermissionUnavailable = "unavailable"
)

// ClientMessage is an event sent by the recorder client
type ClientMessage struct {
	Event      string       `json:"event"`
	Microphone string       `json:"microphone,omitempty"`
	Speech     string       `json:"speech,omitempty"` // "unsupported" when the client has no speech engine
	Media      *Media       `json:"media,omitempty"`
	Results    []stt.Result `json:"results,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Media carries one base64 encoded audio chunk
type Media struct {
	Payload string `json:"payload"`
	Chunk   string `json:"chunk,omitempty"` // Alternative field name for payload
}

// ServerMessage is an event pushed to the client
type ServerMessage struct {
	Event        string                 `json:"event"`
	SessionID    string                 `json:"sessionId,omitempty"`
	Engine       string                 `json:"engine,omitempty"`
	State        string                 `json:"state,omitempty"`
	Recording    *bool                  `json:"recording,omitempty"`
	Transcript   *string                `json:"transcript,omitempty"`
	Notification *recorder.Notification `json:"notification,omitempty"`
	Artifact     *ArtifactInfo          `json:"artifact,omitempty"`
	Analysis     *sentiment.State       `json:"analysis,omitempty"`
}

// ArtifactInfo points at an assembled recording
type ArtifactInfo struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}
