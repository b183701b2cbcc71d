package stt

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/lexiqai/consent-recorder/internal/config"
	"github.com/lexiqai/consent-recorder/internal/resilience"
)

func newTestDeepgram() *DeepgramRecognizer {
	cfg := &config.Config{
		DeepgramModel:              "nova-2",
		DeepgramLanguage:           "en",
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30,
	}
	return NewDeepgramRecognizer(cfg, zerolog.Nop())
}

func TestDeepgramRecognizer_Available(t *testing.T) {
	d := newTestDeepgram()
	if err := d.Available(); !errors.Is(err, ErrUnsupportedFeature) {
		t.Errorf("Expected ErrUnsupportedFeature without API key, got %v", err)
	}
	if err := d.Start(context.Background(), Handler{}); !errors.Is(err, ErrUnsupportedFeature) {
		t.Errorf("Expected Start to fail with ErrUnsupportedFeature, got %v", err)
	}

	d.config.DeepgramAPIKey = "key"
	if err := d.Available(); err != nil {
		t.Errorf("Expected available with API key, got %v", err)
	}
}

func TestDeepgramRecognizer_LiveOptions(t *testing.T) {
	d := newTestDeepgram()

	opts := d.liveOptions()
	if !opts.InterimResults {
		t.Error("Expected interim results to be enabled")
	}
	if opts.Encoding != "" || opts.SampleRate != 0 {
		t.Errorf("Expected container sniffing without encoding, got %q/%d", opts.Encoding, opts.SampleRate)
	}

	d.config.DeepgramEncoding = "linear16"
	d.config.DeepgramSampleRate = 16000
	opts = d.liveOptions()
	if opts.Encoding != "linear16" || opts.SampleRate != 16000 || opts.Channels != 1 {
		t.Errorf("Expected explicit raw audio options, got %+v", opts)
	}
}

func TestDeepgramRecognizer_Accumulates(t *testing.T) {
	d := newTestDeepgram()

	var got []string
	d.handler = Handler{OnResults: func(r []Result) { got = append(got, JoinTranscript(r)) }}
	d.active = true

	d.onSegment(Result{Transcript: "i do"})
	d.onSegment(Result{Transcript: "i do not", IsFinal: true})
	d.onSegment(Result{Transcript: "con"})
	d.onSegment(Result{Transcript: "consent", IsFinal: true})
	d.onSegment(Result{Transcript: "", IsFinal: true})

	expected := []string{"i do", "i do not", "i do not con", "i do not consent", "i do not consent"}
	if len(got) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Expected delivery %d to be %q, got %q", i, expected[i], got[i])
		}
	}

	d.active = false
	d.onSegment(Result{Transcript: "late", IsFinal: true})
	if len(got) != len(expected) {
		t.Error("Expected no delivery after stop")
	}
}

func TestDeepgramRecognizer_SendAudioInactive(t *testing.T) {
	d := newTestDeepgram()
	if err := d.SendAudio([]byte{1, 2}); err == nil {
		t.Error("Expected error when sending audio before Start")
	}
	if err := d.Stop(); err != nil {
		t.Errorf("Expected Stop on idle recognizer to succeed, got %v", err)
	}
}

// breakerFailures reads the exported Deepgram breaker failure count
func breakerFailures(t *testing.T) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "consent_recorder_circuit_breaker_failures_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "service" && l.GetValue() == EngineDeepgram {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestDeepgramRecognizer_OpenBreakerRejectsWithoutCountingFailures(t *testing.T) {
	d := newTestDeepgram()
	for i := 0; i < d.config.CircuitBreakerMaxFailures; i++ {
		d.recordBreaker(false)
	}
	if d.circuitBreaker.GetState() != resilience.StateOpen {
		t.Fatalf("Expected breaker open, got %s", d.circuitBreaker.GetState())
	}

	before := breakerFailures(t)
	for i := 0; i < 100; i++ {
		if err := d.SendAudio([]byte{1}); !errors.Is(err, resilience.ErrCircuitOpen) {
			t.Fatalf("Expected ErrCircuitOpen, got %v", err)
		}
	}

	if after := breakerFailures(t); after != before {
		t.Errorf("Expected rejected chunks not to count as failures, got %v new", after-before)
	}
}
