package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/tiger/pitchroom/internal/config"
	"github.com/tiger/pitchroom/internal/observability/telemetry"
	"github.com/tiger/pitchroom/internal/observability/tracing"
	"github.com/tiger/pitchroom/internal/persona"
	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
	"github.com/tiger/pitchroom/internal/runtime/session"
	"github.com/tiger/pitchroom/providers/llm/anthropic"
	"github.com/tiger/pitchroom/providers/llm/cohere"
	"github.com/tiger/pitchroom/providers/llm/gemini"
	"github.com/tiger/pitchroom/providers/tts/elevenlabs"
	"github.com/tiger/pitchroom/providers/tts/polly"
)

const shutdownTimeout = 5 * time.Second

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// process holds the process-wide logging, telemetry and tracing handles.
type process struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *telemetry.Pipeline

	logFile         io.Closer
	shutdownTracing func(context.Context) error
}

func openProcess(ctx context.Context, cfg config.Config) (*process, error) {
	out, closer, err := openLogOutput(cfg.LogFile)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	pipeline := telemetry.NewPipeline(telemetry.NewSlogSink(logger), telemetry.Config{
		QueueCapacity: cfg.Telemetry.QueueCapacity,
		ExportTimeout: cfg.Telemetry.ExportTimeout,
		LogSampleRate: cfg.Telemetry.LogSampleRate,
	})
	telemetry.SetDefaultEmitter(pipeline)

	shutdown, err := tracing.Setup(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		_ = pipeline.Close()
		_ = closer.Close()
		return nil, fmt.Errorf("tracing: %w", err)
	}
	logger.Info("pitchctl started",
		"llm_provider", cfg.LLMProvider,
		"tts_provider", cfg.TTSProvider,
		"tracing", cfg.Tracing.Endpoint != "",
	)
	return &process{
		cfg:             cfg,
		logger:          logger,
		pipeline:        pipeline,
		logFile:         closer,
		shutdownTracing: shutdown,
	}, nil
}

// Close flushes telemetry and traces, then closes the log file.
func (r *process) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := r.shutdownTracing(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
	}
	telemetry.SetDefaultEmitter(nil)
	if err := r.pipeline.Close(); err != nil {
		errs = append(errs, err)
	}
	stats := r.pipeline.Stats()
	r.logger.Info("pitchctl stopped", "telemetry_enqueued", stats.Enqueued, "telemetry_dropped", stats.Dropped)
	if err := r.logFile.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func openLogOutput(path string) (io.Writer, io.Closer, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		return io.Discard, nopCloser{}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, f, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildGenerator selects the configured LLM and wraps it with tracing.
func buildGenerator(cfg config.Config) (contracts.Generator, error) {
	var (
		gen contracts.Generator
		id  string
		err error
	)
	switch cfg.LLMProvider {
	case config.LLMAnthropic:
		c := anthropic.ConfigFromEnv()
		c.Timeout = timeoutOr(cfg, c.Timeout)
		gen, err = anthropic.NewGenerator(c)
		id = anthropic.ProviderID
	case config.LLMGemini:
		c := gemini.ConfigFromEnv()
		c.Timeout = timeoutOr(cfg, c.Timeout)
		gen, err = gemini.NewGenerator(c)
		id = gemini.ProviderID
	case config.LLMCohere:
		c := cohere.ConfigFromEnv()
		c.Timeout = timeoutOr(cfg, c.Timeout)
		gen, err = cohere.NewGenerator(c)
		id = cohere.ProviderID
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	return tracing.Generator(gen, id, otel.GetTracerProvider()), nil
}

// buildSynthesizer returns nil when voice output is disabled.
func buildSynthesizer(cfg config.Config) (contracts.Synthesizer, error) {
	var (
		synth contracts.Synthesizer
		id    string
		err   error
	)
	switch cfg.TTSProvider {
	case config.TTSNone, "":
		return nil, nil
	case config.TTSPolly:
		synth, err = polly.NewSynthesizerFromEnv()
		id = polly.ProviderID
	case config.TTSElevenLabs:
		synth, err = elevenlabs.NewSynthesizerFromEnv()
		id = elevenlabs.ProviderID
	default:
		return nil, fmt.Errorf("unsupported tts provider %q", cfg.TTSProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	return tracing.Synthesizer(synth, id, otel.GetTracerProvider()), nil
}

func timeoutOr(cfg config.Config, fallback time.Duration) time.Duration {
	if cfg.RequestTimeout > 0 {
		return cfg.RequestTimeout
	}
	return fallback
}

func loadCatalog(cfg config.Config) (*persona.Catalog, error) {
	if strings.TrimSpace(cfg.PersonaFile) == "" {
		return persona.Builtin(), nil
	}
	return persona.Load(cfg.PersonaFile)
}

func concurrencyFor(cfg config.Config) session.Concurrency {
	if cfg.RejectConcurrent {
		return session.RejectConcurrent
	}
	return session.SerializeConcurrent
}
