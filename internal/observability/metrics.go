package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "consent_recorder_active_sessions",
		Help: "Number of connected recorder sessions",
	})

	// Recording metrics
	activeRecordings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "consent_recorder_active_recordings",
		Help: "Number of recordings currently capturing audio",
	})

	recordingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consent_recorder_recordings_total",
		Help: "Total number of finished recordings by outcome",
	}, []string{"outcome"}) // outcome: completed, non_consent, teardown

	recordingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "consent_recorder_recording_duration_seconds",
		Help:    "Duration of recordings in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	startFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consent_recorder_start_failures_total",
		Help: "Recording start failures by reason",
	}, []string{"reason"})

	// Transcription metrics
	transcriptUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consent_recorder_transcript_updates_total",
		Help: "Total number of transcript replacements",
	})

	recognitionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consent_recorder_recognition_errors_total",
		Help: "Non-fatal speech engine errors",
	}, []string{"engine"})

	// Sentiment metrics
	sentimentAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consent_recorder_sentiment_attempts_total",
		Help: "Individual sentiment HTTP attempts by status",
	}, []string{"status"})

	sentimentRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consent_recorder_sentiment_requests_total",
		Help: "Sentiment analyses by final status",
	}, []string{"status"})

	sentimentLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "consent_recorder_sentiment_latency_seconds",
		Help:    "End-to-end sentiment analysis latency including retries",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "consent_recorder_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consent_recorder_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consent_recorder_audio_bytes_total",
		Help: "Total captured audio bytes",
	})
)

// Outcome labels for RecordRecordingEnd
const (
	OutcomeCompleted  = "completed"
	OutcomeNonConsent = "non_consent"
	OutcomeTeardown   = "teardown"
)

// SessionOpened and SessionClosed track connected clients
func SessionOpened() { activeSessions.Inc() }
func SessionClosed() { activeSessions.Dec() }

// RecordRecordingStart records a capture session entering Recording
func RecordRecordingStart() {
	activeRecordings.Inc()
}

// RecordRecordingEnd records a capture session leaving Recording
func RecordRecordingEnd(outcome string, startedAt time.Time) {
	activeRecordings.Dec()
	recordingsTotal.WithLabelValues(outcome).Inc()
	if !startedAt.IsZero() {
		recordingDuration.Observe(time.Since(startedAt).Seconds())
	}
}

// RecordStartFailure records why a recording could not start
func RecordStartFailure(reason string) {
	startFailures.WithLabelValues(reason).Inc()
}

// RecordTranscriptUpdate counts one transcript replacement
func RecordTranscriptUpdate() {
	transcriptUpdates.Inc()
}

// RecordRecognitionError counts a non-fatal speech engine error
func RecordRecognitionError(engine string) {
	recognitionErrors.WithLabelValues(engine).Inc()
}

// RecordSentimentAttempt counts one HTTP attempt ("success", "http_error", "network_error", "decode_error")
func RecordSentimentAttempt(status string) {
	sentimentAttempts.WithLabelValues(status).Inc()
}

// RecordSentimentResult records the final outcome of an analysis
func RecordSentimentResult(success bool, startedAt time.Time) {
	status := "success"
	if !success {
		status = "error"
	}
	sentimentRequests.WithLabelValues(status).Inc()
	sentimentLatency.Observe(time.Since(startedAt).Seconds())
}

// RecordAudioBytes records captured audio bytes
func RecordAudioBytes(bytes int) {
	audioBytesCaptured.Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
