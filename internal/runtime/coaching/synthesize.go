// Package coaching produces the end-of-session coaching report and scorecard.
package coaching

import (
	"context"
	_ "embed"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tiger/pitchroom/api/pitch"
	"github.com/tiger/pitchroom/internal/runtime/ledger"
	"github.com/tiger/pitchroom/internal/runtime/prompt"
	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
	"github.com/tiger/pitchroom/internal/tooling/validation"
)

// Artifact names used in EndOfSessionError.
const (
	ArtifactCoaching  = "coaching"
	ArtifactScorecard = "scorecard"
)

var (
	//go:embed coaching.schema.json
	coachingSchemaDoc []byte
	//go:embed scorecard.schema.json
	scorecardSchemaDoc []byte

	coachingSchema  = validation.MustCompileSchema("mem://pitchroom/coaching.schema.json", coachingSchemaDoc)
	scorecardSchema = validation.MustCompileSchema("mem://pitchroom/scorecard.schema.json", scorecardSchemaDoc)
)

// EndOfSessionError reports a failed coaching or scorecard request. Callers
// should offer a retry; there is no partial result.
type EndOfSessionError struct {
	Artifact string
	Err      error
}

func (e *EndOfSessionError) Error() string {
	return fmt.Sprintf("end-of-session %s: %v", e.Artifact, e.Err)
}

func (e *EndOfSessionError) Unwrap() error {
	return e.Err
}

// Input is what both end-of-session requests see.
type Input struct {
	PersonaName        string
	PersonaDescription string
	Slides             []pitch.Slide
	Turns              []pitch.Turn
	Attempt            int
}

func (in Input) reviewParams() prompt.ReviewParams {
	return prompt.ReviewParams{
		PersonaName:        in.PersonaName,
		PersonaDescription: in.PersonaDescription,
		Slides:             in.Slides,
		Transcript:         ledger.RenderTranscript(in.Turns),
		Attempt:            in.Attempt,
	}
}

// Synthesize runs the coaching and scorecard requests concurrently. Either
// failure cancels the other and returns an *EndOfSessionError.
func Synthesize(ctx context.Context, gen contracts.Generator, in Input) (Outcome, error) {
	if gen == nil {
		return Outcome{}, &EndOfSessionError{Artifact: ArtifactCoaching, Err: fmt.Errorf("generator is required")}
	}
	var out Outcome
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		report, err := Coach(gctx, gen, in)
		if err != nil {
			return err
		}
		out.Coaching = report
		return nil
	})
	g.Go(func() error {
		card, err := Score(gctx, gen, in)
		if err != nil {
			return err
		}
		out.Scorecard = card
		return nil
	})
	if err := g.Wait(); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// Coach requests and validates the coaching report.
func Coach(ctx context.Context, gen contracts.Generator, in Input) (Report, error) {
	fail := func(err error) (Report, error) {
		return Report{}, &EndOfSessionError{Artifact: ArtifactCoaching, Err: err}
	}
	system, err := prompt.Coaching(in.reviewParams())
	if err != nil {
		return fail(err)
	}
	raw, err := gen.GenerateReply(ctx, []pitch.Message{{Role: pitch.RoleUser, Text: prompt.CoachingRequest}}, system)
	if err != nil {
		return fail(err)
	}
	var report Report
	if err := validation.DecodeObject(raw, coachingSchema, &report); err != nil {
		return fail(err)
	}
	if len(report.ToughMoments) > MaxToughMoments {
		report.ToughMoments = report.ToughMoments[:MaxToughMoments]
	}
	return report, nil
}

// Score requests and validates the scorecard. Labels are recomputed from the scores.
func Score(ctx context.Context, gen contracts.Generator, in Input) (Scorecard, error) {
	fail := func(err error) (Scorecard, error) {
		return Scorecard{}, &EndOfSessionError{Artifact: ArtifactScorecard, Err: err}
	}
	system, err := prompt.Scorecard(in.reviewParams())
	if err != nil {
		return fail(err)
	}
	raw, err := gen.GenerateReply(ctx, []pitch.Message{{Role: pitch.RoleUser, Text: prompt.ScorecardRequest}}, system)
	if err != nil {
		return fail(err)
	}
	var card Scorecard
	if err := validation.DecodeObject(raw, scorecardSchema, &card); err != nil {
		return fail(err)
	}
	card.Attempt = in.Attempt
	if card.Attempt < 1 {
		card.Attempt = 1
	}
	card.BusinessQuality.OverallLabel = LabelFor(card.BusinessQuality.OverallScore)
	card.PitchDelivery.OverallLabel = LabelFor(card.PitchDelivery.OverallScore)
	return card, nil
}
