package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tiger/pitchroom/api/pitch"
	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
)

const instrumentationName = "github.com/tiger/pitchroom"

// Span names.
const (
	SpanGenerate   = "pitch.generate"
	SpanSynthesize = "pitch.synthesize"
)

func tracerFrom(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(instrumentationName)
}

type tracedGenerator struct {
	next       contracts.Generator
	providerID string
	tracer     trace.Tracer
}

// Generator wraps next so every GenerateReply call records a span.
// A nil tp uses the global provider.
func Generator(next contracts.Generator, providerID string, tp trace.TracerProvider) contracts.Generator {
	return &tracedGenerator{next: next, providerID: providerID, tracer: tracerFrom(tp)}
}

func (g *tracedGenerator) GenerateReply(ctx context.Context, transcript []pitch.Message, systemContext string) (string, error) {
	ctx, span := g.tracer.Start(ctx, SpanGenerate,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("pitch.provider", g.providerID),
			attribute.Int("pitch.transcript_len", len(transcript)),
			attribute.Int("pitch.system_context_bytes", len(systemContext)),
		),
	)
	defer span.End()

	reply, err := g.next.GenerateReply(ctx, transcript, systemContext)
	if err != nil {
		var genErr *contracts.GenerationError
		if errors.As(err, &genErr) {
			span.SetAttributes(attribute.String("pitch.outcome", string(genErr.Outcome.Class)))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return "", err
	}
	span.SetAttributes(
		attribute.String("pitch.outcome", string(contracts.OutcomeSuccess)),
		attribute.Int("pitch.reply_bytes", len(reply)),
	)
	return reply, nil
}

type tracedSynthesizer struct {
	next       contracts.Synthesizer
	providerID string
	tracer     trace.Tracer
}

// Synthesizer wraps next so every SynthesizeSpeech call records a span.
func Synthesizer(next contracts.Synthesizer, providerID string, tp trace.TracerProvider) contracts.Synthesizer {
	return &tracedSynthesizer{next: next, providerID: providerID, tracer: tracerFrom(tp)}
}

func (s *tracedSynthesizer) SynthesizeSpeech(ctx context.Context, text string, voiceID string) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, SpanSynthesize,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("pitch.provider", s.providerID),
			attribute.String("pitch.voice_id", voiceID),
			attribute.Int("pitch.text_bytes", len(text)),
		),
	)
	defer span.End()

	audio, err := s.next.SynthesizeSpeech(ctx, text, voiceID)
	if err != nil {
		var synthErr *contracts.SynthesisError
		if errors.As(err, &synthErr) {
			span.SetAttributes(attribute.String("pitch.outcome", string(synthErr.Outcome.Class)))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("pitch.audio_bytes", len(audio)))
	return audio, nil
}
