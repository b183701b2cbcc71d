package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiqai/consent-recorder/internal/apitester"
	"github.com/lexiqai/consent-recorder/internal/audio"
	"github.com/lexiqai/consent-recorder/internal/config"
	"github.com/lexiqai/consent-recorder/internal/observability"
	"github.com/lexiqai/consent-recorder/internal/recorder"
	"github.com/lexiqai/consent-recorder/internal/stream"
	"github.com/lexiqai/consent-recorder/internal/stt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	phrases := recorder.NewPhraseSet(cfg.NonConsentPhrases)
	artifacts := audio.NewArtifactStore()

	logger.Info().
		Str("port", cfg.Port).
		Str("speech_engine", cfg.SpeechEngine).
		Str("sentiment_endpoint", cfg.SentimentEndpoint).
		Int("non_consent_phrases", phrases.Len()).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Consent Recorder Service starting")

	mux := http.NewServeMux()

	mux.HandleFunc("/streams/recorder", stream.HandleRecorderWS(stream.Deps{
		Config:    cfg,
		Artifacts: artifacts,
		Phrases:   phrases,
	}))
	mux.HandleFunc("GET /recordings/{id}", stream.HandleRecording(artifacts))

	tester := apitester.New(cfg.APITesterURL, cfg.APIKey, cfg.SentimentRequestTimeout(), logger)
	mux.HandleFunc("POST /api/tester", apitester.Handler(tester))

	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Neither check calls out, so readiness checks cost nothing
	checks := []observability.ReadinessCheck{
		{
			Name: "sentiment",
			Check: func(ctx context.Context) error {
				if strings.TrimSpace(cfg.SentimentEndpoint) == "" {
					return errors.New("sentiment endpoint is not configured")
				}
				return nil
			},
		},
		{
			Name: "speech",
			Check: func(ctx context.Context) error {
				return stt.New(cfg, logger).Available()
			},
		},
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks...))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.GRPCHealthPort != "" {
		healthServer := observability.NewGRPCHealthServer(15*time.Second, checks...)
		go func() {
			addr := fmt.Sprintf(":%s", cfg.GRPCHealthPort)
			logger.Info().Str("addr", addr).Msg("gRPC health server listening")
			if err := healthServer.Serve(ctx, addr); err != nil {
				logger.Error().Err(err).Msg("gRPC health server stopped")
			}
		}()
	}

	// WriteTimeout stays zero: recorder sockets are long-lived
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/streams/recorder", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
