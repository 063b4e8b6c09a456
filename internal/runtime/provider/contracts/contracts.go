package contracts

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tiger/pitchroom/api/pitch"
)

// Modality defines provider families used by a practice session.
type Modality string

const (
	ModalitySTT Modality = "stt"
	ModalityLLM Modality = "llm"
	ModalityTTS Modality = "tts"
)

// Validate enforces supported provider modality values.
func (m Modality) Validate() error {
	switch m {
	case ModalitySTT, ModalityLLM, ModalityTTS:
		return nil
	default:
		return fmt.Errorf("unsupported modality: %q", m)
	}
}

// OutcomeClass is the normalized invocation-outcome taxonomy.
type OutcomeClass string

const (
	OutcomeSuccess               OutcomeClass = "success"
	OutcomeTimeout               OutcomeClass = "timeout"
	OutcomeOverload              OutcomeClass = "overload"
	OutcomeBlocked               OutcomeClass = "blocked"
	OutcomeInfrastructureFailure OutcomeClass = "infrastructure_failure"
	OutcomeCancelled             OutcomeClass = "cancelled"
	OutcomeMalformedResponse     OutcomeClass = "malformed_response"
)

// Validate enforces supported outcome classes.
func (o OutcomeClass) Validate() error {
	switch o {
	case OutcomeSuccess, OutcomeTimeout, OutcomeOverload, OutcomeBlocked,
		OutcomeInfrastructureFailure, OutcomeCancelled, OutcomeMalformedResponse:
		return nil
	default:
		return fmt.Errorf("unsupported outcome_class: %q", o)
	}
}

// Outcome is an adapter-normalized invocation result.
type Outcome struct {
	Class            OutcomeClass
	Retryable        bool
	Reason           string
	CircuitOpen      bool
	BackoffMS        int64
	OutputStatusCode int
}

// Validate enforces normalized outcome invariants.
func (o Outcome) Validate() error {
	if err := o.Class.Validate(); err != nil {
		return err
	}
	if o.Class != OutcomeSuccess && o.Reason == "" {
		return fmt.Errorf("reason is required for non-success outcomes")
	}
	if o.BackoffMS < 0 {
		return fmt.Errorf("backoff_ms must be >=0")
	}
	if o.CircuitOpen && o.Class == OutcomeSuccess {
		return fmt.Errorf("circuit_open cannot be true for success")
	}
	return nil
}

// Generator produces the counterpart's reply for a role-tagged transcript.
// Implementations must return a *GenerationError on any transport or non-2xx failure
// rather than malformed text.
type Generator interface {
	GenerateReply(ctx context.Context, transcript []pitch.Message, systemContext string) (string, error)
}

// Synthesizer turns counterpart text into audio.
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, text string, voiceID string) ([]byte, error)
}

// Transcriber turns captured audio into one final user turn.
// onInterim may be nil.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, mimeType string, onInterim func(string)) (string, error)
}

// GenerationError reports a failed generation request.
type GenerationError struct {
	ProviderID string
	Outcome    Outcome
	Message    string
}

func (e *GenerationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("generation failed (%s): %s", e.ProviderID, e.Outcome.Class)
	}
	return fmt.Sprintf("generation failed (%s): %s: %s", e.ProviderID, e.Outcome.Class, e.Message)
}

// SynthesisError reports a failed speech synthesis request.
type SynthesisError struct {
	ProviderID string
	Outcome    Outcome
	Message    string
}

func (e *SynthesisError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("synthesis failed (%s): %s", e.ProviderID, e.Outcome.Class)
	}
	return fmt.Sprintf("synthesis failed (%s): %s: %s", e.ProviderID, e.Outcome.Class, e.Message)
}

// NewGenerationError builds a GenerationError from a normalized outcome.
func NewGenerationError(providerID string, outcome Outcome, message string) *GenerationError {
	return &GenerationError{ProviderID: providerID, Outcome: outcome, Message: message}
}

// NewSynthesisError builds a SynthesisError from a normalized outcome.
func NewSynthesisError(providerID string, outcome Outcome, message string) *SynthesisError {
	return &SynthesisError{ProviderID: providerID, Outcome: outcome, Message: message}
}

// AsGenerationError wraps any error as a GenerationError, keeping an existing one.
func AsGenerationError(providerID string, err error) *GenerationError {
	if err == nil {
		return nil
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr
	}
	outcome := Outcome{Class: OutcomeInfrastructureFailure, Retryable: true, Reason: "provider_transport_error"}
	if errors.Is(err, context.Canceled) {
		outcome = Outcome{Class: OutcomeCancelled, Reason: "provider_cancelled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		outcome = Outcome{Class: OutcomeTimeout, Retryable: true, Reason: "provider_timeout"}
	}
	return &GenerationError{ProviderID: providerID, Outcome: outcome, Message: err.Error()}
}

// StaticGenerator is a small utility generator for tests and offline runs.
type StaticGenerator struct {
	ID         string
	GenerateFn func(ctx context.Context, transcript []pitch.Message, systemContext string) (string, error)
}

func (g StaticGenerator) GenerateReply(ctx context.Context, transcript []pitch.Message, systemContext string) (string, error) {
	if g.GenerateFn == nil {
		return "", NewGenerationError(g.ID, Outcome{Class: OutcomeBlocked, Reason: "generator_unconfigured"}, "")
	}
	return g.GenerateFn(ctx, transcript, systemContext)
}

// StaticSynthesizer is a small utility synthesizer for tests and offline runs.
type StaticSynthesizer struct {
	ID           string
	SynthesizeFn func(ctx context.Context, text, voiceID string) ([]byte, error)
}

func (s StaticSynthesizer) SynthesizeSpeech(ctx context.Context, text string, voiceID string) ([]byte, error) {
	if s.SynthesizeFn == nil {
		return nil, nil
	}
	return s.SynthesizeFn(ctx, text, voiceID)
}
