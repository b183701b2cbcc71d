package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the consent recorder service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Sentiment analysis endpoint
	SentimentEndpoint    string `envconfig:"SENTIMENT_ENDPOINT" default:"https://rpa8u8ue84.execute-api.us-west-2.amazonaws.com/production/analyze-sentiment"`
	SentimentAPIKey      string `envconfig:"SENTIMENT_API_KEY" default:""`      // Sent as x-api-key when set
	SentimentMaxAttempts int    `envconfig:"SENTIMENT_MAX_ATTEMPTS" default:"3"` // Attempts before giving up
	SentimentBaseDelay   int    `envconfig:"SENTIMENT_BASE_DELAY_MS" default:"1000"`
	SentimentTimeout     int    `envconfig:"SENTIMENT_TIMEOUT" default:"30"` // seconds, per attempt

	// Non-consent detection. NON_CONSENT_PHRASES_FILE (YAML) wins over the list when set.
	NonConsentPhrases     []string `envconfig:"NON_CONSENT_PHRASES" default:"i do not consent,don't consent,do not consent,don't agree,do not agree,refuse to be recorded,stop recording,no recording,cannot record,can't record,don't record"`
	NonConsentPhrasesFile string   `envconfig:"NON_CONSENT_PHRASES_FILE" default:""`

	// Speech engine: relay (client-side recognition), deepgram or google
	SpeechEngine string `envconfig:"SPEECH_ENGINE" default:"relay"`

	// Deepgram STT API configuration
	DeepgramAPIKey     string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel      string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage   string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`
	DeepgramEncoding   string `envconfig:"DEEPGRAM_ENCODING" default:""`         // Empty lets Deepgram sniff containerized audio (webm)
	DeepgramSampleRate int    `envconfig:"DEEPGRAM_SAMPLE_RATE" default:"16000"` // Only sent with an explicit encoding

	// Google Cloud Speech configuration (credentials come from ADC)
	GoogleSpeechEnabled    bool   `envconfig:"GOOGLE_SPEECH_ENABLED" default:"false"`
	GoogleSpeechLanguage   string `envconfig:"GOOGLE_SPEECH_LANGUAGE" default:"en-US"`
	GoogleSpeechEncoding   string `envconfig:"GOOGLE_SPEECH_ENCODING" default:"WEBM_OPUS"`
	GoogleSpeechSampleRate int    `envconfig:"GOOGLE_SPEECH_SAMPLE_RATE" default:"48000"`

	// Audio capture configuration
	AudioContentType string `envconfig:"AUDIO_CONTENT_TYPE" default:"audio/webm"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Maximum reconnection attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reconnection backoff in milliseconds

	// API tester
	APITesterURL string `envconfig:"API_TESTER_URL" default:""`
	APIKey       string `envconfig:"API_KEY" default:""`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:""`    // Empty disables the gRPC health server
}

// phraseFile is the YAML layout of NON_CONSENT_PHRASES_FILE
type phraseFile struct {
	Phrases []string `yaml:"phrases"`
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.NonConsentPhrasesFile != "" {
		phrases, err := LoadPhraseFile(cfg.NonConsentPhrasesFile)
		if err != nil {
			return nil, err
		}
		cfg.NonConsentPhrases = phrases
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SentimentEndpoint) == "" {
		return fmt.Errorf("SENTIMENT_ENDPOINT is required")
	}
	if c.SentimentMaxAttempts < 1 {
		return fmt.Errorf("SENTIMENT_MAX_ATTEMPTS must be at least 1, got %d", c.SentimentMaxAttempts)
	}
	if c.SentimentBaseDelay < 0 {
		return fmt.Errorf("SENTIMENT_BASE_DELAY_MS must not be negative, got %d", c.SentimentBaseDelay)
	}
	if len(c.NonConsentPhrases) == 0 {
		return fmt.Errorf("at least one non-consent phrase is required")
	}
	switch c.SpeechEngine {
	case "relay", "deepgram", "google":
	default:
		return fmt.Errorf("unknown SPEECH_ENGINE %q (use relay, deepgram or google)", c.SpeechEngine)
	}
	return nil
}

// LoadPhraseFile reads non-consent phrases from a YAML file of the form
//
//	phrases:
//	  - i do not consent
func LoadPhraseFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read phrase file %s: %w", path, err)
	}

	var pf phraseFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse phrase file %s: %w", path, err)
	}
	if len(pf.Phrases) == 0 {
		return nil, fmt.Errorf("phrase file %s contains no phrases", path)
	}
	return pf.Phrases, nil
}

// SentimentRetryDelay returns the base delay between analysis attempts
func (c *Config) SentimentRetryDelay() time.Duration {
	return time.Duration(c.SentimentBaseDelay) * time.Millisecond
}

// SentimentRequestTimeout returns the per-attempt HTTP timeout
func (c *Config) SentimentRequestTimeout() time.Duration {
	return time.Duration(c.SentimentTimeout) * time.Second
}
