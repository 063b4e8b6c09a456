package cohere

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tiger/pitchroom/api/pitch"
	providerconfig "github.com/tiger/pitchroom/internal/runtime/provider/config"
	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
	"github.com/tiger/pitchroom/providers/common/httpadapter"
)

const ProviderID = "llm-cohere"

type Config struct {
	APIKey            string
	Endpoint          string
	Model             string
	OpenRouter        bool
	OpenRouterReferer string
	OpenRouterTitle   string
	MaxTokens         int
	Timeout           time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:            providerconfig.ResolveEnvValue("PITCHROOM_LLM_COHERE_API_KEY", "PITCHROOM_LLM_COHERE_API_KEY_REF", ""),
		Endpoint:          defaultString(os.Getenv("PITCHROOM_LLM_COHERE_ENDPOINT"), "https://api.cohere.com/v2/chat"),
		Model:             defaultString(os.Getenv("PITCHROOM_LLM_COHERE_MODEL"), "command-r-08-2024"),
		OpenRouter:        defaultBool(os.Getenv("PITCHROOM_LLM_COHERE_OPENROUTER"), false),
		OpenRouterReferer: os.Getenv("PITCHROOM_LLM_COHERE_OPENROUTER_REFERER"),
		OpenRouterTitle:   defaultString(os.Getenv("PITCHROOM_LLM_COHERE_OPENROUTER_TITLE"), "pitchroom"),
		MaxTokens:         1024,
		Timeout:           30 * time.Second,
	}
}

// Generator implements contracts.Generator over Cohere chat, directly or through OpenRouter.
type Generator struct {
	cfg        Config
	openRouter bool
	client     *httpadapter.Client
}

func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	openRouter := shouldUseOpenRouter(cfg)
	staticHeaders := map[string]string{}
	if openRouter {
		if cfg.OpenRouterReferer != "" {
			staticHeaders["HTTP-Referer"] = cfg.OpenRouterReferer
		}
		if cfg.OpenRouterTitle != "" {
			staticHeaders["X-Title"] = cfg.OpenRouterTitle
		}
	}
	client, err := httpadapter.New(httpadapter.Config{
		ProviderID:    ProviderID,
		Modality:      contracts.ModalityLLM,
		Endpoint:      cfg.Endpoint,
		APIKey:        cfg.APIKey,
		APIKeyHeader:  "Authorization",
		APIKeyPrefix:  "Bearer ",
		StaticHeaders: staticHeaders,
		Timeout:       cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg, openRouter: openRouter, client: client}, nil
}

func NewGeneratorFromEnv() (*Generator, error) {
	return NewGenerator(ConfigFromEnv())
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

// cohereResponse is the native v2 chat shape.
type cohereResponse struct {
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

// completionResponse is the OpenRouter chat-completions shape.
type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *Generator) GenerateReply(ctx context.Context, transcript []pitch.Message, systemContext string) (string, error) {
	messages := make([]chatMessage, 0, len(transcript)+1)
	if strings.TrimSpace(systemContext) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemContext})
	}
	for _, m := range transcript {
		role := "user"
		if m.Role == pitch.RoleCounterpart {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: m.Text})
	}

	resp, err := g.client.PostJSON(ctx, chatRequest{Model: g.cfg.Model, MaxTokens: g.cfg.MaxTokens, Messages: messages})
	if err != nil {
		return "", contracts.AsGenerationError(ProviderID, err)
	}
	if resp.Outcome.Class != contracts.OutcomeSuccess {
		return "", contracts.NewGenerationError(ProviderID, resp.Outcome, resp.Failure())
	}

	text, err := g.decode(resp.Body)
	if err != nil {
		return "", malformed("decode response: " + err.Error())
	}
	if strings.TrimSpace(text) == "" {
		return "", malformed("response has no text content")
	}
	return text, nil
}

func (g *Generator) decode(body []byte) (string, error) {
	if g.openRouter {
		var decoded completionResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return "", err
		}
		if len(decoded.Choices) == 0 {
			return "", nil
		}
		return decoded.Choices[0].Message.Content, nil
	}
	var decoded cohereResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", err
	}
	var parts []string
	for _, c := range decoded.Message.Content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, ""), nil
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

func defaultBool(v string, fallback bool) bool {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func shouldUseOpenRouter(cfg Config) bool {
	if cfg.OpenRouter {
		return true
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	return strings.Contains(host, "openrouter.ai")
}
