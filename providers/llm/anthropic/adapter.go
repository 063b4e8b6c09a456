package anthropic

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tiger/pitchroom/api/pitch"
	providerconfig "github.com/tiger/pitchroom/internal/runtime/provider/config"
	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
	"github.com/tiger/pitchroom/providers/common/httpadapter"
)

const ProviderID = "llm-anthropic"

// openingPrompt stands in for the founder when a transcript starts with the counterpart.
const openingPrompt = "[The founder begins the pitch]"

type Config struct {
	APIKey           string
	Endpoint         string
	Model            string
	AnthropicVersion string
	MaxTokens        int
	Timeout          time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:           providerconfig.ResolveEnvValue("PITCHROOM_LLM_ANTHROPIC_API_KEY", "PITCHROOM_LLM_ANTHROPIC_API_KEY_REF", ""),
		Endpoint:         defaultString(os.Getenv("PITCHROOM_LLM_ANTHROPIC_ENDPOINT"), "https://api.anthropic.com/v1/messages"),
		Model:            defaultString(os.Getenv("PITCHROOM_LLM_ANTHROPIC_MODEL"), "claude-sonnet-4-20250514"),
		AnthropicVersion: defaultString(os.Getenv("PITCHROOM_LLM_ANTHROPIC_VERSION"), "2023-06-01"),
		MaxTokens:        defaultInt(os.Getenv("PITCHROOM_LLM_ANTHROPIC_MAX_TOKENS"), 1024),
		Timeout:          30 * time.Second,
	}
}

// Generator implements contracts.Generator over the Messages API.
type Generator struct {
	cfg    Config
	client *httpadapter.Client
}

func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.AnthropicVersion == "" {
		cfg.AnthropicVersion = "2023-06-01"
	}
	client, err := httpadapter.New(httpadapter.Config{
		ProviderID:    ProviderID,
		Modality:      contracts.ModalityLLM,
		Endpoint:      cfg.Endpoint,
		APIKey:        cfg.APIKey,
		APIKeyHeader:  "x-api-key",
		Timeout:       cfg.Timeout,
		StaticHeaders: map[string]string{"anthropic-version": cfg.AnthropicVersion},
	})
	if err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg, client: client}, nil
}

func NewGeneratorFromEnv() (*Generator, error) {
	return NewGenerator(ConfigFromEnv())
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (g *Generator) GenerateReply(ctx context.Context, transcript []pitch.Message, systemContext string) (string, error) {
	resp, err := g.client.PostJSON(ctx, request{
		Model:     g.cfg.Model,
		MaxTokens: g.cfg.MaxTokens,
		System:    systemContext,
		Messages:  buildMessages(transcript),
	})
	if err != nil {
		return "", contracts.AsGenerationError(ProviderID, err)
	}
	if resp.Outcome.Class != contracts.OutcomeSuccess {
		return "", contracts.NewGenerationError(ProviderID, resp.Outcome, resp.Failure())
	}
	var decoded response
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return "", malformed("decode response: " + err.Error())
	}
	var parts []string
	for _, block := range decoded.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", malformed("response has no text content")
	}
	return strings.Join(parts, "\n"), nil
}

// buildMessages maps roles and enforces the alternation the API requires:
// consecutive same-role messages are merged and a leading assistant message
// gets a synthetic user turn before it.
func buildMessages(transcript []pitch.Message) []message {
	out := make([]message, 0, len(transcript)+1)
	for _, m := range transcript {
		role := "user"
		if m.Role == pitch.RoleCounterpart {
			role = "assistant"
		}
		if len(out) == 0 && role == "assistant" {
			out = append(out, message{Role: "user", Content: openingPrompt})
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + m.Text
			continue
		}
		out = append(out, message{Role: role, Content: m.Text})
	}
	return out
}

func malformed(msg string) *contracts.GenerationError {
	return contracts.NewGenerationError(ProviderID, contracts.Outcome{Class: contracts.OutcomeMalformedResponse, Reason: "provider_malformed_response"}, msg)
}

func defaultString(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func defaultInt(v string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
