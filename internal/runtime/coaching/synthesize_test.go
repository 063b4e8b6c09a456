package coaching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/tiger/pitchroom/api/pitch"
	"github.com/tiger/pitchroom/internal/runtime/prompt"
	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
	"github.com/tiger/pitchroom/internal/tooling/validation"
)

const coachingJSON = `Here you go:
{
  "overall_feedback": "Solid story, thin numbers.",
  "tough_moments": [%s],
  "strengths": ["clear problem"],
  "improvements": ["bring retention data"]
}`

const scorecardJSON = `{
  "business_quality": {"overall_score": 82, "overall_label": "Early Stage", "market_opportunity": 90, "defensibility": 70, "business_model": 75, "traction": 60, "team_fit": 88, "summary": "Big market."},
  "pitch_delivery": {"overall_score": 44.5, "overall_label": "Investor Ready", "clarity": 50, "storytelling": 40, "objection_handling": 45, "presence": 42, "coachability": 60, "summary": "Rambled."},
  "strengths": ["market"],
  "improvements": ["pace"],
  "verdict": "Would take a second meeting."
}`

func moments(n int) string {
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, fmt.Sprintf(`{"vc_question":"q%d","founder_answer":"a%d","what_good_looks_like":"g%d"}`, i, i, i))
	}
	return strings.Join(parts, ",")
}

type routedGenerator struct {
	mu       sync.Mutex
	coaching func() (string, error)
	score    func() (string, error)
	systems  []string
}

func (g *routedGenerator) GenerateReply(_ context.Context, transcript []pitch.Message, system string) (string, error) {
	g.mu.Lock()
	g.systems = append(g.systems, system)
	g.mu.Unlock()
	switch transcript[0].Text {
	case prompt.CoachingRequest:
		return g.coaching()
	case prompt.ScorecardRequest:
		return g.score()
	default:
		return "", fmt.Errorf("unexpected request %q", transcript[0].Text)
	}
}

func testInput() Input {
	return Input{
		PersonaName:        "The Metrics Hawk",
		PersonaDescription: "Wants numbers.",
		Slides:             []pitch.Slide{{Ordinal: 1, DisplayText: "Problem"}, {Ordinal: 2, DisplayText: "Traction"}},
		Turns: []pitch.Turn{
			{Speaker: pitch.SpeakerUser, Text: "We grew 20% MoM."},
			{Speaker: pitch.SpeakerCounterpart, Text: "On what base?"},
		},
		Attempt: 2,
	}
}

func TestSynthesizeBuildsBothArtifacts(t *testing.T) {
	t.Parallel()

	gen := &routedGenerator{
		coaching: func() (string, error) { return fmt.Sprintf(coachingJSON, moments(7)), nil },
		score:    func() (string, error) { return scorecardJSON, nil },
	}
	out, err := Synthesize(context.Background(), gen, testInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Coaching.ToughMoments) != MaxToughMoments {
		t.Fatalf("expected tough moments truncated to %d, got %d", MaxToughMoments, len(out.Coaching.ToughMoments))
	}
	if out.Coaching.OverallFeedback != "Solid story, thin numbers." {
		t.Fatalf("unexpected coaching %+v", out.Coaching)
	}
	if out.Scorecard.BusinessQuality.OverallLabel != LabelInvestorReady || out.Scorecard.PitchDelivery.OverallLabel != LabelEarlyStage {
		t.Fatalf("expected labels recomputed from scores, got %q / %q", out.Scorecard.BusinessQuality.OverallLabel, out.Scorecard.PitchDelivery.OverallLabel)
	}
	if out.Scorecard.Attempt != 2 || out.Scorecard.BusinessQuality.Dimensions()[pitch.DimTeamFit] != 88 {
		t.Fatalf("unexpected scorecard %+v", out.Scorecard)
	}
	if len(gen.systems) != 2 {
		t.Fatalf("expected two requests, got %d", len(gen.systems))
	}
	for _, system := range gen.systems {
		if !strings.Contains(system, "FOUNDER: We grew 20% MoM.\nVC: On what base?") {
			t.Fatalf("expected rendered transcript in system context:\n%s", system)
		}
	}
}

func TestSynthesizeFailuresAreEndOfSessionErrors(t *testing.T) {
	t.Parallel()

	transport := contracts.NewGenerationError("fake", contracts.Outcome{Class: contracts.OutcomeTimeout, Reason: "provider_timeout"}, "")
	okCoaching := func() (string, error) { return fmt.Sprintf(coachingJSON, moments(3)), nil }
	okScore := func() (string, error) { return scorecardJSON, nil }

	tests := []struct {
		name     string
		coaching func() (string, error)
		score    func() (string, error)
		artifact string
		check    func(error) bool
	}{
		{
			name:     "coaching transport",
			coaching: func() (string, error) { return "", transport },
			score:    okScore,
			artifact: ArtifactCoaching,
			check:    func(err error) bool { var g *contracts.GenerationError; return errors.As(err, &g) },
		},
		{
			name:     "scorecard not json",
			coaching: okCoaching,
			score:    func() (string, error) { return "I'd rather not score this.", nil },
			artifact: ArtifactScorecard,
			check:    func(err error) bool { return errors.Is(err, validation.ErrNoObject) },
		},
		{
			name:     "no tough moments",
			coaching: func() (string, error) { return fmt.Sprintf(coachingJSON, ""), nil },
			score:    okScore,
			artifact: ArtifactCoaching,
			check:    func(err error) bool { return strings.Contains(err.Error(), "schema validation") },
		},
		{
			name:     "score out of range",
			coaching: okCoaching,
			score:    func() (string, error) { return strings.Replace(scorecardJSON, `"traction": 60`, `"traction": 160`, 1), nil },
			artifact: ArtifactScorecard,
			check:    func(err error) bool { return strings.Contains(err.Error(), "schema validation") },
		},
		{
			name:     "broken json",
			coaching: func() (string, error) { return `{"overall_feedback": "x",}`, nil },
			score:    okScore,
			artifact: ArtifactCoaching,
			check:    func(err error) bool { return strings.Contains(err.Error(), "decode object") },
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Synthesize(context.Background(), &routedGenerator{coaching: tc.coaching, score: tc.score}, testInput())
			var endErr *EndOfSessionError
			if !errors.As(err, &endErr) {
				t.Fatalf("expected EndOfSessionError, got %v", err)
			}
			if endErr.Artifact != tc.artifact {
				t.Fatalf("expected artifact %s, got %s", tc.artifact, endErr.Artifact)
			}
			if !tc.check(err) {
				t.Fatalf("unexpected cause %v", err)
			}
		})
	}
}

func TestSynthesizeRequiresGenerator(t *testing.T) {
	t.Parallel()

	var endErr *EndOfSessionError
	if _, err := Synthesize(context.Background(), nil, testInput()); !errors.As(err, &endErr) {
		t.Fatalf("expected EndOfSessionError, got %v", err)
	}
}

func TestLabelFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  string
	}{
		{100, LabelInvestorReady},
		{80, LabelInvestorReady},
		{79.9, LabelAlmostThere},
		{65, LabelAlmostThere},
		{64, LabelNeedsWork},
		{45, LabelNeedsWork},
		{44.9, LabelEarlyStage},
		{0, LabelEarlyStage},
	}
	for _, tc := range tests {
		if got := LabelFor(tc.score); got != tc.want {
			t.Fatalf("LabelFor(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}
