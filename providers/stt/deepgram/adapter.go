package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	providerconfig "github.com/tiger/pitchroom/internal/runtime/provider/config"
	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
	"github.com/tiger/pitchroom/providers/common/httpadapter"
)

const ProviderID = "stt-deepgram"

type Config struct {
	APIKey   string
	Endpoint string
	Model    string
	Language string
	Timeout  time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:   providerconfig.ResolveEnvValue("PITCHROOM_STT_DEEPGRAM_API_KEY", "PITCHROOM_STT_DEEPGRAM_API_KEY_REF", ""),
		Endpoint: providerconfig.ResolveEnvValue("PITCHROOM_STT_DEEPGRAM_ENDPOINT", "PITCHROOM_STT_DEEPGRAM_ENDPOINT_REF", "https://api.deepgram.com/v1/listen"),
		Model:    defaultString(os.Getenv("PITCHROOM_STT_DEEPGRAM_MODEL"), "nova-2"),
		Language: defaultString(os.Getenv("PITCHROOM_STT_DEEPGRAM_LANGUAGE"), "en-US"),
		Timeout:  60 * time.Second,
	}
}

// Transcriber implements contracts.Transcriber over Deepgram prerecorded transcription.
type Transcriber struct {
	cfg    Config
	client *httpadapter.Client
}

func NewTranscriber(cfg Config) (*Transcriber, error) {
	endpoint := cfg.Endpoint
	if endpoint != "" {
		var err error
		for key, value := range map[string]string{
			"model":        cfg.Model,
			"language":     cfg.Language,
			"smart_format": "true",
			"utterances":   "true",
		} {
			if value == "" {
				continue
			}
			if endpoint, err = httpadapter.WithQuery(endpoint, key, value); err != nil {
				return nil, fmt.Errorf("deepgram endpoint: %w", err)
			}
		}
	}
	client, err := httpadapter.New(httpadapter.Config{
		ProviderID:    ProviderID,
		Modality:      contracts.ModalitySTT,
		Endpoint:      endpoint,
		APIKey:        cfg.APIKey,
		APIKeyHeader:  "Authorization",
		APIKeyPrefix:  "Token ",
		Timeout:       cfg.Timeout,
		StaticHeaders: map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		return nil, err
	}
	return &Transcriber{cfg: cfg, client: client}, nil
}

func NewTranscriberFromEnv() (*Transcriber, error) {
	return NewTranscriber(ConfigFromEnv())
}

type response struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []struct {
			Transcript string `json:"transcript"`
		} `json:"utterances"`
	} `json:"results"`
}

// Transcribe uploads audio and returns the final transcript. Utterances are
// reported to onInterim cumulatively before the final value is returned.
func (t *Transcriber) Transcribe(ctx context.Context, audio io.Reader, mimeType string, onInterim func(string)) (string, error) {
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "audio/wav"
	}
	resp, err := t.client.Send(ctx, audio, mimeType)
	if err != nil {
		return "", fmt.Errorf("transcription failed (%s): %w", ProviderID, err)
	}
	if resp.Outcome.Class != contracts.OutcomeSuccess {
		return "", fmt.Errorf("transcription failed (%s): %s: %s", ProviderID, resp.Outcome.Class, resp.Failure())
	}
	var decoded response
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return "", fmt.Errorf("transcription failed (%s): decode response: %w", ProviderID, err)
	}
	if onInterim != nil {
		var sofar []string
		for _, u := range decoded.Results.Utterances {
			if text := strings.TrimSpace(u.Transcript); text != "" {
				sofar = append(sofar, text)
				onInterim(strings.Join(sofar, " "))
			}
		}
	}
	if len(decoded.Results.Channels) == 0 || len(decoded.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return strings.TrimSpace(decoded.Results.Channels[0].Alternatives[0].Transcript), nil
}

func defaultString(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
