package polly

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
)

const ProviderID = "tts-amazon-polly"

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

type Config struct {
	Region         string
	DefaultVoiceID string
	Engine         string
	Timeout        time.Duration
}

// Synthesizer implements contracts.Synthesizer over Amazon Polly.
type Synthesizer struct {
	mu     sync.Mutex
	client synthClient
	cfg    Config
}

func ConfigFromEnv() Config {
	return Config{
		Region:         defaultString(os.Getenv("PITCHROOM_TTS_POLLY_REGION"), defaultString(os.Getenv("AWS_REGION"), "us-east-1")),
		DefaultVoiceID: defaultString(os.Getenv("PITCHROOM_TTS_POLLY_VOICE"), "Matthew"),
		Engine:         defaultString(os.Getenv("PITCHROOM_TTS_POLLY_ENGINE"), "neural"),
		Timeout:        15 * time.Second,
	}
}

func NewSynthesizer(cfg Config) (*Synthesizer, error) {
	return NewSynthesizerWithClient(cfg, nil)
}

func NewSynthesizerWithClient(cfg Config, client synthClient) (*Synthesizer, error) {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	if strings.TrimSpace(cfg.DefaultVoiceID) == "" {
		cfg.DefaultVoiceID = "Matthew"
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = "neural"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Synthesizer{client: client, cfg: cfg}, nil
}

func NewSynthesizerFromEnv() (*Synthesizer, error) {
	return NewSynthesizer(ConfigFromEnv())
}

// SynthesizeSpeech returns MP3 audio. voiceID is a Polly voice name; empty uses the default.
func (s *Synthesizer) SynthesizeSpeech(ctx context.Context, text string, voiceID string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, contracts.NewSynthesisError(ProviderID, contracts.Outcome{Class: contracts.OutcomeBlocked, Reason: "provider_empty_text"}, "")
	}
	client, err := s.resolveClient(ctx)
	if err != nil {
		return nil, contracts.NewSynthesisError(ProviderID, contracts.Outcome{Class: contracts.OutcomeBlocked, Reason: "provider_client_unavailable"}, err.Error())
	}
	if strings.TrimSpace(voiceID) == "" {
		voiceID = s.cfg.DefaultVoiceID
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(s.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	output, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(voiceID),
	})
	if err != nil {
		return nil, contracts.NewSynthesisError(ProviderID, normalizePollyError(err), err.Error())
	}
	if output == nil || output.AudioStream == nil {
		return nil, contracts.NewSynthesisError(ProviderID, contracts.Outcome{Class: contracts.OutcomeInfrastructureFailure, Retryable: true, Reason: "provider_empty_audio"}, "")
	}
	defer output.AudioStream.Close()
	audio, err := io.ReadAll(output.AudioStream)
	if err != nil {
		return nil, contracts.NewSynthesisError(ProviderID, contracts.Outcome{Class: contracts.OutcomeInfrastructureFailure, Retryable: true, Reason: "provider_audio_stream_read_error"}, err.Error())
	}
	return audio, nil
}

func normalizePollyError(err error) contracts.Outcome {
	if errors.Is(err, context.Canceled) {
		return contracts.Outcome{Class: contracts.OutcomeCancelled, Retryable: false, Reason: "provider_cancelled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return contracts.Outcome{Class: contracts.OutcomeTimeout, Retryable: true, Reason: "provider_timeout"}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException", "ThrottlingException":
			return contracts.Outcome{Class: contracts.OutcomeOverload, Retryable: true, Reason: "provider_overload", CircuitOpen: true, BackoffMS: 500}
		case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException", "MarksNotSupportedForFormatException", "InvalidSampleRateException", "EngineNotSupportedException", "ValidationException":
			return contracts.Outcome{Class: contracts.OutcomeBlocked, Retryable: false, Reason: "provider_client_error"}
		default:
			return contracts.Outcome{Class: contracts.OutcomeInfrastructureFailure, Retryable: true, Reason: "provider_server_error", CircuitOpen: true}
		}
	}

	return contracts.Outcome{Class: contracts.OutcomeInfrastructureFailure, Retryable: true, Reason: "provider_transport_error"}
}

func defaultString(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func (s *Synthesizer) resolveClient(ctx context.Context) (synthClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(s.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	s.client = polly.NewFromConfig(awsCfg)
	return s.client, nil
}

// NewTestAudioStream creates an in-memory stream for synthesizer tests.
func NewTestAudioStream() io.ReadCloser {
	return io.NopCloser(bytes.NewReader([]byte("mp3")))
}
