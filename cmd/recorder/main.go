package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexiqai/consent-recorder/internal/audio"
	"github.com/lexiqai/consent-recorder/internal/config"
	"github.com/lexiqai/consent-recorder/internal/observability"
	"github.com/lexiqai/consent-recorder/internal/recorder"
	"github.com/lexiqai/consent-recorder/internal/sentiment"
	"github.com/lexiqai/consent-recorder/internal/stt"
)

func main() {
	outDir := flag.String("out", ".", "Directory recordings are written to")
	rate := flag.Uint("rate", 16000, "Capture sample rate in Hz")
	logPath := flag.String("log", "recorder.log", "Log file path")
	engine := flag.String("engine", "", "Speech engine override: deepgram or google")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *engine != "" {
		cfg.SpeechEngine = *engine
	}
	if cfg.SpeechEngine == stt.EngineRelay {
		fmt.Fprintln(os.Stderr, "The relay engine needs a connected client; use -engine deepgram or -engine google")
		os.Exit(1)
	}

	// The device delivers raw 16-bit mono PCM
	cfg.DeepgramEncoding = "linear16"
	cfg.DeepgramSampleRate = int(*rate)
	cfg.GoogleSpeechEncoding = "LINEAR16"
	cfg.GoogleSpeechSampleRate = int(*rate)

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	// Logs go to a file so they don't draw over the TUI
	observability.InitLoggerTo(logFile, cfg.LogLevel, false)
	logger := observability.WithCorrelationID("")

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", *outDir).Msg("Failed to create output directory")
	}

	var program *tea.Program
	send := func(msg tea.Msg) {
		if program != nil {
			program.Send(msg)
		}
	}

	analysis := sentiment.NewClient(sentiment.OptionsFromConfig(cfg), logger)
	analysis.OnChange(func(s sentiment.State) { send(analysisMsg(s)) })

	ctrl := recorder.NewController(recorder.Options{
		Microphone: audio.NewDeviceMicrophone(uint32(*rate)),
		Recognizer: stt.New(cfg, logger),
		Analyzer:   analysis,
		Notifier: recorder.NotifierFunc(func(n recorder.Notification) {
			logger.Info().Str("kind", string(n.Kind)).Msg(n.Message)
			send(notificationMsg(n))
		}),
		Phrases:   recorder.NewPhraseSet(cfg.NonConsentPhrases),
		Artifacts: audio.NewArtifactStore(),
		Logger:    logger,
		Observer: recorder.Observer{
			OnState:      func(s recorder.State) { send(stateMsg(s)) },
			OnTranscript: func(t string) { send(transcriptMsg(t)) },
			OnArtifact: func(a *audio.Artifact) {
				if a == nil {
					return
				}
				send(saveArtifact(*outDir, a))
			},
		},
	})

	program = tea.NewProgram(newTUIModel(ctrl))
	if _, err := program.Run(); err != nil {
		logger.Error().Err(err).Msg("TUI exited with error")
	}

	ctx := context.Background()
	if ctrl.IsRecording() {
		if err := ctrl.Stop(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to stop recording")
		}
	}
	ctrl.Wait()

	if transcript := ctrl.Transcript(); transcript != "" {
		fmt.Printf("Transcript: %s\n", transcript)
	}
	if a := ctrl.Artifact(); a != nil {
		fmt.Printf("Recording: %s\n", artifactPath(*outDir, a))
	}
	if s := analysis.Snapshot(); s.Result != nil {
		fmt.Printf("Sentiment: %s\n", s.Result.Sentiment.Overall)
	} else if s.Err != "" {
		fmt.Println(s.Err)
	}
}

func artifactPath(dir string, a *audio.Artifact) string {
	ext := ".bin"
	if i := strings.LastIndex(a.ContentType, "/"); i >= 0 {
		ext = "." + a.ContentType[i+1:]
	}
	return filepath.Join(dir, a.ID+ext)
}

func saveArtifact(dir string, a *audio.Artifact) savedMsg {
	path := artifactPath(dir, a)
	err := os.WriteFile(path, a.Data, 0o644)
	if err != nil {
		logger := observability.GetLogger()
		logger.Error().Err(err).Str("path", path).Msg("Failed to save recording")
	}
	return savedMsg{Path: path, Size: len(a.Data), Err: err}
}
