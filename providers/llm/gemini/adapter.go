package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/tiger/pitchroom/api/pitch"
	providerconfig "github.com/tiger/pitchroom/internal/runtime/provider/config"
	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
	"github.com/tiger/pitchroom/providers/common/httpadapter"
)

const ProviderID = "llm-gemini"

type contentClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	APIKey          string
	Model           string
	MaxOutputTokens int32
	Timeout         time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:          providerconfig.ResolveEnvValue("PITCHROOM_LLM_GEMINI_API_KEY", "PITCHROOM_LLM_GEMINI_API_KEY_REF", ""),
		Model:           defaultString(os.Getenv("PITCHROOM_LLM_GEMINI_MODEL"), "gemini-2.5-flash"),
		MaxOutputTokens: 1024,
		Timeout:         30 * time.Second,
	}
}

// Generator implements contracts.Generator over the Gemini API.
type Generator struct {
	mu     sync.Mutex
	client contentClient
	cfg    Config
}

func NewGenerator(cfg Config) (*Generator, error) {
	return NewGeneratorWithClient(cfg, nil)
}

func NewGeneratorWithClient(cfg Config, client contentClient) (*Generator, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Generator{client: client, cfg: cfg}, nil
}

func NewGeneratorFromEnv() (*Generator, error) {
	return NewGenerator(ConfigFromEnv())
}

func (g *Generator) GenerateReply(ctx context.Context, transcript []pitch.Message, systemContext string) (string, error) {
	client, err := g.resolveClient(ctx)
	if err != nil {
		return "", contracts.NewGenerationError(ProviderID, contracts.Outcome{Class: contracts.OutcomeBlocked, Reason: "provider_client_unavailable"}, err.Error())
	}

	contents := make([]*genai.Content, 0, len(transcript))
	for _, m := range transcript {
		role := genai.Role(genai.RoleUser)
		if m.Role == pitch.RoleCounterpart {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	config := &genai.GenerateContentConfig{MaxOutputTokens: g.cfg.MaxOutputTokens}
	if strings.TrimSpace(systemContext) != "" {
		config.SystemInstruction = genai.NewContentFromText(systemContext, genai.RoleUser)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	res, err := client.GenerateContent(ctx, g.cfg.Model, contents, config)
	if err != nil {
		return "", contracts.NewGenerationError(ProviderID, normalizeGenAIError(err), err.Error())
	}
	// Blocked or filtered prompts come back without candidates.
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return "", contracts.NewGenerationError(ProviderID, contracts.Outcome{Class: contracts.OutcomeMalformedResponse, Reason: "provider_empty_candidates"}, "")
	}
	var b strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", contracts.NewGenerationError(ProviderID, contracts.Outcome{Class: contracts.OutcomeMalformedResponse, Reason: "provider_empty_text"}, "")
	}
	return b.String(), nil
}

func normalizeGenAIError(err error) contracts.Outcome {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return httpadapter.NormalizeNetworkError(err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return httpadapter.NormalizeStatus(apiErr.Code, "")
	}
	return httpadapter.NormalizeNetworkError(err)
}

func (g *Generator) resolveClient(ctx context.Context) (contentClient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}
	if strings.TrimSpace(g.cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	g.client = client.Models
	return g.client, nil
}

func defaultString(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
