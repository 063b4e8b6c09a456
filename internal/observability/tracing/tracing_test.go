package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tiger/pitchroom/api/pitch"
	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
)

func newRecorder() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	sr := tracetest.NewSpanRecorder()
	return sr, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
}

func attr(kvs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range kvs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestSetupNoopWithoutEndpoint(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("noop shutdown should not error: %v", err)
	}
}

func TestSetupWithEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Endpoint: "http://192.0.2.1:4318/v1/traces", SampleRatio: 0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestGeneratorRecordsSuccessSpan(t *testing.T) {
	t.Parallel()

	sr, tp := newRecorder()
	gen := Generator(contracts.StaticGenerator{ID: "fake", GenerateFn: func(context.Context, []pitch.Message, string) (string, error) {
		return "Tell me about churn.", nil
	}}, "fake", tp)

	reply, err := gen.GenerateReply(context.Background(), []pitch.Message{{Role: pitch.RoleUser, Text: "hi"}}, "system")
	if err != nil || reply != "Tell me about churn." {
		t.Fatalf("unexpected reply %q err=%v", reply, err)
	}
	spans := sr.Ended()
	if len(spans) != 1 || spans[0].Name() != SpanGenerate {
		t.Fatalf("expected one %s span, got %d", SpanGenerate, len(spans))
	}
	if v, ok := attr(spans[0].Attributes(), "pitch.outcome"); !ok || v.AsString() != "success" {
		t.Fatalf("expected success outcome attribute, got %v", v)
	}
	if v, _ := attr(spans[0].Attributes(), "pitch.transcript_len"); v.AsInt64() != 1 {
		t.Fatalf("expected transcript length 1, got %v", v)
	}
}

func TestGeneratorRecordsFailureOutcome(t *testing.T) {
	t.Parallel()

	sr, tp := newRecorder()
	want := contracts.NewGenerationError("fake", contracts.Outcome{Class: contracts.OutcomeTimeout, Reason: "provider_timeout"}, "")
	gen := Generator(contracts.StaticGenerator{ID: "fake", GenerateFn: func(context.Context, []pitch.Message, string) (string, error) {
		return "", want
	}}, "fake", tp)

	_, err := gen.GenerateReply(context.Background(), nil, "system")
	if !errors.Is(err, want) {
		t.Fatalf("expected wrapped generator error to pass through, got %v", err)
	}
	span := sr.Ended()[0]
	if span.Status().Code != codes.Error {
		t.Fatalf("expected error status, got %v", span.Status())
	}
	if v, _ := attr(span.Attributes(), "pitch.outcome"); v.AsString() != "timeout" {
		t.Fatalf("expected timeout outcome, got %v", v)
	}
	if len(span.Events()) == 0 {
		t.Fatalf("expected recorded error event")
	}
}

func TestSynthesizerRecordsSpan(t *testing.T) {
	t.Parallel()

	sr, tp := newRecorder()
	synth := Synthesizer(contracts.StaticSynthesizer{ID: "fake", SynthesizeFn: func(context.Context, string, string) ([]byte, error) {
		return []byte{1, 2, 3}, nil
	}}, "fake", tp)
	audio, err := synth.SynthesizeSpeech(context.Background(), "hello", "Matthew")
	if err != nil || len(audio) != 3 {
		t.Fatalf("unexpected synth result %v err=%v", audio, err)
	}

	failing := Synthesizer(contracts.StaticSynthesizer{ID: "fake", SynthesizeFn: func(context.Context, string, string) ([]byte, error) {
		return nil, contracts.NewSynthesisError("fake", contracts.Outcome{Class: contracts.OutcomeBlocked, Reason: "provider_auth_or_policy_block"}, "")
	}}, "fake", tp)
	if _, err := failing.SynthesizeSpeech(context.Background(), "hello", "Matthew"); err == nil {
		t.Fatalf("expected synthesis error")
	}

	spans := sr.Ended()
	if len(spans) != 2 || spans[0].Name() != SpanSynthesize {
		t.Fatalf("unexpected spans %d", len(spans))
	}
	if v, _ := attr(spans[0].Attributes(), "pitch.voice_id"); v.AsString() != "Matthew" {
		t.Fatalf("expected voice attribute, got %v", v)
	}
	if v, _ := attr(spans[1].Attributes(), "pitch.outcome"); v.AsString() != "blocked" {
		t.Fatalf("expected blocked outcome, got %v", v)
	}
}
