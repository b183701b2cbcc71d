package recorder

import (
	"context"

	"github.com/lexiqai/consent-recorder/internal/sentiment"
)

// User-facing messages
const (
	MsgRecordingStarted = "Recording started"
	MsgNonConsent       = "Recording stopped: Caller did not consent to being recorded"
	MsgMicrophoneError  = "Error accessing microphone. Please ensure you have granted permission."
	MsgUnsupported      = "Speech recognition is not supported in this browser."
	msgRecognitionError = "Error with speech recognition: "
)

// NotificationKind selects how a notification is shown
type NotificationKind string

const (
	KindInfo  NotificationKind = "info"  // transient snackbar
	KindError NotificationKind = "error" // persistent alert
)

// Notification is a message for the user
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
}

// Notifier delivers notifications to the user
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Analyzer receives the final transcript of a completed recording
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (*sentiment.AnalysisResult, error)
}
