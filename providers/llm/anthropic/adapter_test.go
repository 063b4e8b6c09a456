package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tiger/pitchroom/api/pitch"
	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("PITCHROOM_LLM_ANTHROPIC_ENDPOINT", "")
	t.Setenv("PITCHROOM_LLM_ANTHROPIC_MAX_TOKENS", "nope")

	cfg := ConfigFromEnv()
	if cfg.Endpoint != "https://api.anthropic.com/v1/messages" || cfg.AnthropicVersion != "2023-06-01" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.MaxTokens != 1024 {
		t.Fatalf("expected default max tokens 1024, got %d", cfg.MaxTokens)
	}
}

func TestGenerateReply(t *testing.T) {
	t.Parallel()

	var got request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k" || r.Header.Get("anthropic-version") != "2023-06-01" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"What is your CAC? [SCORES: clarity=1]"}]}`))
	}))
	defer ts.Close()

	gen, err := NewGenerator(Config{APIKey: "k", Endpoint: ts.URL, Model: "m"})
	if err != nil {
		t.Fatalf("unexpected generator error: %v", err)
	}
	reply, err := gen.GenerateReply(context.Background(), []pitch.Message{
		{Role: pitch.RoleUser, Text: "We sell shovels."},
		{Role: pitch.RoleCounterpart, Text: "Go on."},
		{Role: pitch.RoleUser, Text: "To miners."},
	}, "system text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "What is your CAC? [SCORES: clarity=1]" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if got.System != "system text" || got.MaxTokens != 1024 || len(got.Messages) != 3 || got.Messages[1].Role != "assistant" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestGenerateReplyFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		class  contracts.OutcomeClass
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, class: contracts.OutcomeInfrastructureFailure},
		{name: "overloaded", status: http.StatusTooManyRequests, body: `{}`, class: contracts.OutcomeOverload},
		{name: "empty content", status: http.StatusOK, body: `{"content":[]}`, class: contracts.OutcomeMalformedResponse},
		{name: "not json", status: http.StatusOK, body: `<html>`, class: contracts.OutcomeMalformedResponse},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer ts.Close()

			gen, _ := NewGenerator(Config{Endpoint: ts.URL})
			_, err := gen.GenerateReply(context.Background(), []pitch.Message{{Role: pitch.RoleUser, Text: "hi"}}, "")
			var genErr *contracts.GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("expected GenerationError, got %v", err)
			}
			if genErr.Outcome.Class != tc.class || genErr.ProviderID != ProviderID {
				t.Fatalf("unexpected generation error %+v", genErr)
			}
		})
	}
}

func TestBuildMessagesAlternates(t *testing.T) {
	t.Parallel()

	got := buildMessages([]pitch.Message{
		{Role: pitch.RoleCounterpart, Text: "Opener."},
		{Role: pitch.RoleCounterpart, Text: "First question?"},
		{Role: pitch.RoleUser, Text: "Answer."},
		{Role: pitch.RoleUser, Text: "More."},
	})
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %+v", got)
	}
	if got[0].Role != "user" || got[0].Content != openingPrompt {
		t.Fatalf("expected synthetic opening user turn, got %+v", got[0])
	}
	if got[1].Content != "Opener.\n\nFirst question?" || got[2].Content != "Answer.\n\nMore." {
		t.Fatalf("expected merged same-role turns, got %+v", got)
	}
}
