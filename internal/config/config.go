// Package config loads pitchctl process settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Supported collaborator selections.
const (
	LLMAnthropic = "anthropic"
	LLMGemini    = "gemini"
	LLMCohere    = "cohere"

	TTSPolly      = "polly"
	TTSElevenLabs = "elevenlabs"
	TTSNone       = "none"
)

// Config is the process configuration. Provider credentials and models are
// read by each provider's ConfigFromEnv.
type Config struct {
	LLMProvider string `env:"PITCHROOM_LLM_PROVIDER" envDefault:"anthropic"`
	TTSProvider string `env:"PITCHROOM_TTS_PROVIDER" envDefault:"none"`

	// PersonaFile overrides the embedded persona catalog.
	PersonaFile string `env:"PITCHROOM_PERSONA_FILE"`

	RejectConcurrent bool          `env:"PITCHROOM_REJECT_CONCURRENT" envDefault:"true"`
	RequestTimeout   time.Duration `env:"PITCHROOM_REQUEST_TIMEOUT" envDefault:"45s"`

	LogFile  string `env:"PITCHROOM_LOG_FILE" envDefault:"pitchroom.log"`
	LogLevel string `env:"PITCHROOM_LOG_LEVEL" envDefault:"info"`

	Telemetry TelemetryConfig
	Tracing   TracingConfig
}

// TelemetryConfig sizes the event pipeline.
type TelemetryConfig struct {
	QueueCapacity int           `env:"PITCHROOM_TELEMETRY_QUEUE_CAPACITY" envDefault:"256"`
	ExportTimeout time.Duration `env:"PITCHROOM_TELEMETRY_EXPORT_TIMEOUT" envDefault:"200ms"`
	LogSampleRate int           `env:"PITCHROOM_TELEMETRY_LOG_SAMPLE_RATE" envDefault:"1"`
}

// TracingConfig enables OTLP trace export.
type TracingConfig struct {
	Endpoint    string  `env:"PITCHROOM_OTLP_ENDPOINT"`
	ServiceName string  `env:"PITCHROOM_OTEL_SERVICE_NAME" envDefault:"pitchroom"`
	SampleRatio float64 `env:"PITCHROOM_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the process configuration.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	cfg.TTSProvider = strings.ToLower(strings.TrimSpace(cfg.TTSProvider))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerations and bounds.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case LLMAnthropic, LLMGemini, LLMCohere:
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLMProvider)
	}
	switch c.TTSProvider {
	case TTSPolly, TTSElevenLabs, TTSNone, "":
	default:
		return fmt.Errorf("unsupported tts provider %q", c.TTSProvider)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must be >=0")
	}
	if c.Telemetry.QueueCapacity < 0 {
		return fmt.Errorf("telemetry queue capacity must be >=0")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.LogLevel)
	}
	return nil
}

// VoiceEnabled reports whether replies should be spoken.
func (c Config) VoiceEnabled() bool {
	return c.TTSProvider != "" && c.TTSProvider != TTSNone
}
