package elevenlabs

import (
	"context"
	"os"
	"strings"
	"time"

	providerconfig "github.com/tiger/pitchroom/internal/runtime/provider/config"
	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
	"github.com/tiger/pitchroom/providers/common/httpadapter"
)

const ProviderID = "tts-elevenlabs"

const (
	defaultVoiceID         = "ErXwobaYiN019PkySvjV"
	defaultStability       = 0.5
	defaultSimilarityBoost = 0.75
)

type Config struct {
	APIKey          string
	BaseURL         string
	DefaultVoiceID  string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
	Timeout         time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:          providerconfig.ResolveEnvValue("PITCHROOM_TTS_ELEVENLABS_API_KEY", "PITCHROOM_TTS_ELEVENLABS_API_KEY_REF", ""),
		BaseURL:         providerconfig.ResolveEnvValue("PITCHROOM_TTS_ELEVENLABS_ENDPOINT", "PITCHROOM_TTS_ELEVENLABS_ENDPOINT_REF", "https://api.elevenlabs.io/v1/text-to-speech"),
		DefaultVoiceID:  defaultString(os.Getenv("PITCHROOM_TTS_ELEVENLABS_VOICE_ID"), defaultVoiceID),
		ModelID:         defaultString(os.Getenv("PITCHROOM_TTS_ELEVENLABS_MODEL"), "eleven_multilingual_v2"),
		Stability:       defaultStability,
		SimilarityBoost: defaultSimilarityBoost,
		Timeout:         30 * time.Second,
	}
}

// Synthesizer implements contracts.Synthesizer over the ElevenLabs text-to-speech API.
type Synthesizer struct {
	cfg    Config
	client *httpadapter.Client
}

func NewSynthesizer(cfg Config) (*Synthesizer, error) {
	if strings.TrimSpace(cfg.DefaultVoiceID) == "" {
		cfg.DefaultVoiceID = defaultVoiceID
	}
	if cfg.Stability <= 0 {
		cfg.Stability = defaultStability
	}
	if cfg.SimilarityBoost <= 0 {
		cfg.SimilarityBoost = defaultSimilarityBoost
	}
	client, err := httpadapter.New(httpadapter.Config{
		ProviderID:    ProviderID,
		Modality:      contracts.ModalityTTS,
		Endpoint:      cfg.BaseURL,
		APIKey:        cfg.APIKey,
		APIKeyHeader:  "xi-api-key",
		Timeout:       cfg.Timeout,
		StaticHeaders: map[string]string{"Accept": "audio/mpeg"},
	})
	if err != nil {
		return nil, err
	}
	return &Synthesizer{cfg: cfg, client: client}, nil
}

func NewSynthesizerFromEnv() (*Synthesizer, error) {
	return NewSynthesizer(ConfigFromEnv())
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type request struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// SynthesizeSpeech returns MPEG audio for text in the given voice, or the default voice when empty.
func (s *Synthesizer) SynthesizeSpeech(ctx context.Context, text string, voiceID string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, contracts.NewSynthesisError(ProviderID, contracts.Outcome{Class: contracts.OutcomeBlocked, Reason: "provider_empty_text"}, "")
	}
	if strings.TrimSpace(s.cfg.BaseURL) == "" {
		return nil, contracts.NewSynthesisError(ProviderID, contracts.Outcome{Class: contracts.OutcomeBlocked, Reason: "provider_endpoint_missing"}, "")
	}
	if strings.TrimSpace(voiceID) == "" {
		voiceID = s.cfg.DefaultVoiceID
	}
	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + "/" + voiceID
	resp, err := s.client.WithEndpoint(endpoint).PostJSON(ctx, request{
		Text:    text,
		ModelID: s.cfg.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       s.cfg.Stability,
			SimilarityBoost: s.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, contracts.NewSynthesisError(ProviderID, contracts.Outcome{Class: contracts.OutcomeInfrastructureFailure, Reason: "provider_request_build_error"}, err.Error())
	}
	if resp.Outcome.Class != contracts.OutcomeSuccess {
		return nil, contracts.NewSynthesisError(ProviderID, resp.Outcome, resp.Failure())
	}
	if len(resp.Body) == 0 {
		return nil, contracts.NewSynthesisError(ProviderID, contracts.Outcome{Class: contracts.OutcomeMalformedResponse, Reason: "provider_empty_audio"}, "")
	}
	return resp.Body, nil
}

func defaultString(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
