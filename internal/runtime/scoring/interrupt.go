package scoring

import (
	"context"
	_ "embed"
	"strings"

	"github.com/tiger/pitchroom/api/pitch"
	"github.com/tiger/pitchroom/internal/runtime/prompt"
	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
	"github.com/tiger/pitchroom/internal/tooling/validation"
)

//go:embed interrupt.schema.json
var interruptSchemaDoc []byte

var interruptSchema = validation.MustCompileSchema("mem://pitchroom/interrupt.schema.json", interruptSchemaDoc)

// InterruptDecision is the pre-check verdict on jumping in mid-presentation.
type InterruptDecision struct {
	Interrupt bool   `json:"interrupt"`
	Question  string `json:"question"`
}

// CheckInterruption asks gen whether the counterpart would interrupt now.
// Any failure, including an interrupt without a question, degrades to no interruption.
func CheckInterruption(ctx context.Context, gen contracts.Generator, interruptionStyle, slideText, founderWords string) InterruptDecision {
	if gen == nil {
		return InterruptDecision{}
	}
	system, err := prompt.InterruptCheck(prompt.InterruptParams{
		InterruptionStyle: interruptionStyle,
		SlideText:         slideText,
		FounderWords:      founderWords,
	})
	if err != nil {
		return InterruptDecision{}
	}
	raw, err := gen.GenerateReply(ctx, []pitch.Message{{Role: pitch.RoleUser, Text: prompt.InterruptQuestion}}, system)
	if err != nil {
		return InterruptDecision{}
	}
	var decision InterruptDecision
	if err := validation.DecodeObject(raw, interruptSchema, &decision); err != nil {
		return InterruptDecision{}
	}
	decision.Question = strings.TrimSpace(decision.Question)
	if !decision.Interrupt || decision.Question == "" {
		return InterruptDecision{}
	}
	return decision
}
