package budget

import (
	"fmt"
	"strings"
)

// Action is the deterministic budget decision.
type Action string

const (
	ActionContinue  Action = "continue"
	ActionTerminate Action = "terminate"
)

const (
	// MaxQAExchanges ends the Q&A round.
	MaxQAExchanges = 6
	// SlideExchangeWarning is the advisory per-slide exchange limit.
	SlideExchangeWarning = 4
)

// Spec defines deterministic count thresholds.
type Spec struct {
	WarnAt    int
	ExhaustAt int
	// Advisory specs only warn; they never terminate.
	Advisory bool
}

// QASpec bounds the Q&A round.
var QASpec = Spec{WarnAt: MaxQAExchanges - 1, ExhaustAt: MaxQAExchanges}

// SlideSpec is the advisory per-slide exchange budget.
var SlideSpec = Spec{WarnAt: SlideExchangeWarning, ExhaustAt: SlideExchangeWarning, Advisory: true}

// Usage captures observed exchange usage.
type Usage struct {
	Exchanges int
}

// Decision is the deterministic outcome for budget evaluation.
type Decision struct {
	Action        Action
	Reason        string
	EmitWarning   bool
	EmitExhausted bool
}

// Evaluate returns deterministic continue/terminate decisions.
func Evaluate(spec Spec, usage Usage) (Decision, error) {
	if spec.WarnAt < 0 || spec.ExhaustAt < 0 {
		return Decision{}, fmt.Errorf("budget thresholds must be >=0")
	}
	if usage.Exchanges < 0 {
		return Decision{}, fmt.Errorf("usage exchanges must be >=0")
	}
	if spec.ExhaustAt == 0 {
		spec.ExhaustAt = 1
	}
	if spec.WarnAt == 0 {
		spec.WarnAt = spec.ExhaustAt
	}
	if spec.WarnAt > spec.ExhaustAt {
		return Decision{}, fmt.Errorf("warn_at must be <= exhaust_at")
	}

	if usage.Exchanges < spec.WarnAt {
		return Decision{Action: ActionContinue, Reason: "within_budget"}, nil
	}
	if usage.Exchanges < spec.ExhaustAt {
		return Decision{Action: ActionContinue, Reason: "budget_warning", EmitWarning: true}, nil
	}
	if spec.Advisory {
		return Decision{Action: ActionContinue, Reason: "budget_advisory_exceeded", EmitWarning: true, EmitExhausted: true}, nil
	}
	return Decision{
		Action:        ActionTerminate,
		Reason:        "budget_exhausted",
		EmitWarning:   true,
		EmitExhausted: true,
	}, nil
}

// Counters is a read-only copy of the tracker state.
type Counters struct {
	ExchangesOnSlide int `json:"exchanges_on_slide"`
	WordsOnSlide     int `json:"words_on_slide"`
	QAExchangeCount  int `json:"qa_exchange_count"`
}

// Tracker counts exchanges and spoken words for one session.
// It is not safe for concurrent use; the session machine serializes access.
type Tracker struct {
	c Counters
}

// NewTracker returns a zeroed tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// WordCount returns the whitespace-delimited word count of text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// AddWords adds text's word count to the current slide and returns the new total.
func (t *Tracker) AddWords(text string) int {
	t.c.WordsOnSlide += WordCount(text)
	return t.c.WordsOnSlide
}

// RecordSlideExchange counts one completed exchange on the current slide.
func (t *Tracker) RecordSlideExchange() {
	t.c.ExchangesOnSlide++
}

// RecordQAExchange counts one completed Q&A exchange and returns the new total.
func (t *Tracker) RecordQAExchange() int {
	t.c.QAExchangeCount++
	return t.c.QAExchangeCount
}

// ResetSlide zeroes the per-slide word and exchange counters.
func (t *Tracker) ResetSlide() {
	t.c.ExchangesOnSlide = 0
	t.c.WordsOnSlide = 0
}

// ResetQA zeroes the Q&A exchange counter.
func (t *Tracker) ResetQA() {
	t.c.QAExchangeCount = 0
}

// Reset zeroes every counter.
func (t *Tracker) Reset() {
	t.c = Counters{}
}

// Counters returns the current counter values.
func (t *Tracker) Counters() Counters {
	return t.c
}

// QAExhausted reports whether the Q&A round reached its cap.
func (t *Tracker) QAExhausted() bool {
	d, err := Evaluate(QASpec, Usage{Exchanges: t.c.QAExchangeCount})
	return err == nil && d.Action == ActionTerminate
}

// SlideOverBudget reports whether the advisory per-slide budget is used up.
func (t *Tracker) SlideOverBudget() bool {
	d, err := Evaluate(SlideSpec, Usage{Exchanges: t.c.ExchangesOnSlide})
	return err == nil && d.EmitExhausted
}
