package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/tiger/pitchroom/api/pitch"
	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
)

type fakeContentClient struct {
	res *genai.GenerateContentResponse
	err error

	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
}

func (f *fakeContentClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotContents = contents
	f.gotConfig = config
	return f.res, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: string(genai.RoleModel)}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestGenerateReplyMapsRoles(t *testing.T) {
	t.Parallel()

	fake := &fakeContentClient{res: textResponse("Who ", "pays?")}
	gen, err := NewGeneratorWithClient(Config{}, fake)
	if err != nil {
		t.Fatalf("unexpected generator error: %v", err)
	}
	reply, err := gen.GenerateReply(context.Background(), []pitch.Message{
		{Role: pitch.RoleUser, Text: "We sell shovels."},
		{Role: pitch.RoleCounterpart, Text: "To whom?"},
		{Role: pitch.RoleUser, Text: "Miners."},
	}, "be tough")
	if err != nil || reply != "Who pays?" {
		t.Fatalf("unexpected reply %q err=%v", reply, err)
	}
	if fake.gotModel != "gemini-2.5-flash" {
		t.Fatalf("expected default model, got %q", fake.gotModel)
	}
	if len(fake.gotContents) != 3 || fake.gotContents[1].Role != string(genai.RoleModel) || fake.gotContents[2].Role != string(genai.RoleUser) {
		t.Fatalf("unexpected contents %+v", fake.gotContents)
	}
	if fake.gotConfig.SystemInstruction == nil || fake.gotConfig.SystemInstruction.Parts[0].Text != "be tough" {
		t.Fatalf("expected system instruction to carry the system context")
	}
}

func TestGenerateReplyFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  *genai.GenerateContentResponse
		err  error
		want contracts.OutcomeClass
	}{
		{name: "no candidates", res: &genai.GenerateContentResponse{}, want: contracts.OutcomeMalformedResponse},
		{name: "blank text", res: textResponse("  "), want: contracts.OutcomeMalformedResponse},
		{name: "rate limited", err: genai.APIError{Code: 429, Message: "slow down"}, want: contracts.OutcomeOverload},
		{name: "bad key", err: genai.APIError{Code: 403, Message: "denied"}, want: contracts.OutcomeBlocked},
		{name: "deadline", err: context.DeadlineExceeded, want: contracts.OutcomeTimeout},
		{name: "transport", err: errors.New("connection reset"), want: contracts.OutcomeInfrastructureFailure},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gen, _ := NewGeneratorWithClient(Config{Model: "m"}, &fakeContentClient{res: tc.res, err: tc.err})
			_, err := gen.GenerateReply(context.Background(), []pitch.Message{{Role: pitch.RoleUser, Text: "hi"}}, "")
			var genErr *contracts.GenerationError
			if !errors.As(err, &genErr) || genErr.Outcome.Class != tc.want {
				t.Fatalf("expected %s generation error, got %v", tc.want, err)
			}
		})
	}
}

func TestGenerateReplyWithoutAPIKeyIsBlocked(t *testing.T) {
	t.Parallel()

	gen, _ := NewGenerator(Config{})
	_, err := gen.GenerateReply(context.Background(), nil, "")
	var genErr *contracts.GenerationError
	if !errors.As(err, &genErr) || genErr.Outcome.Class != contracts.OutcomeBlocked {
		t.Fatalf("expected blocked generation error, got %v", err)
	}
}
