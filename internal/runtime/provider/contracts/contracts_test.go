package contracts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tiger/pitchroom/api/pitch"
)

func TestOutcomeValidate(t *testing.T) {
	t.Parallel()

	success := Outcome{Class: OutcomeSuccess}
	if err := success.Validate(); err != nil {
		t.Fatalf("expected valid success outcome, got %v", err)
	}

	timeoutMissingReason := Outcome{
		Class:     OutcomeTimeout,
		Retryable: true,
	}
	if err := timeoutMissingReason.Validate(); err == nil {
		t.Fatalf("expected non-success outcome without reason to fail")
	}

	circuitOnSuccess := Outcome{
		Class:       OutcomeSuccess,
		CircuitOpen: true,
	}
	if err := circuitOnSuccess.Validate(); err == nil {
		t.Fatalf("expected circuit_open on success to fail")
	}

	if err := (Outcome{Class: "exploded", Reason: "x"}).Validate(); err == nil {
		t.Fatalf("expected unknown class to fail")
	}
}

func TestModalityValidate(t *testing.T) {
	t.Parallel()

	for _, m := range []Modality{ModalitySTT, ModalityLLM, ModalityTTS} {
		if err := m.Validate(); err != nil {
			t.Fatalf("expected %s valid, got %v", m, err)
		}
	}
	if err := Modality("vision").Validate(); err == nil {
		t.Fatalf("expected unsupported modality error")
	}
}

func TestAsGenerationError(t *testing.T) {
	t.Parallel()

	if AsGenerationError("llm-a", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}

	original := NewGenerationError("llm-a", Outcome{Class: OutcomeOverload, Reason: "provider_overload"}, "slow down")
	wrapped := fmt.Errorf("call: %w", original)
	if got := AsGenerationError("llm-b", wrapped); got != original {
		t.Fatalf("expected existing generation error to be preserved")
	}

	timeout := AsGenerationError("llm-a", context.DeadlineExceeded)
	if timeout.Outcome.Class != OutcomeTimeout {
		t.Fatalf("expected timeout class, got %s", timeout.Outcome.Class)
	}
	transport := AsGenerationError("llm-a", errors.New("connection reset"))
	if transport.Outcome.Class != OutcomeInfrastructureFailure || !strings.Contains(transport.Error(), "connection reset") {
		t.Fatalf("unexpected transport mapping %+v", transport)
	}
}

func TestStaticGenerator(t *testing.T) {
	t.Parallel()

	var unset StaticGenerator
	_, err := unset.GenerateReply(context.Background(), nil, "")
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Outcome.Class != OutcomeBlocked {
		t.Fatalf("expected blocked generation error, got %v", err)
	}

	g := StaticGenerator{ID: "static", GenerateFn: func(_ context.Context, transcript []pitch.Message, system string) (string, error) {
		return fmt.Sprintf("%d:%s", len(transcript), system), nil
	}}
	out, err := g.GenerateReply(context.Background(), []pitch.Message{{Role: pitch.RoleUser, Text: "hi"}}, "sys")
	if err != nil || out != "1:sys" {
		t.Fatalf("unexpected output %q err=%v", out, err)
	}
}
