package session

import (
	"errors"
	"fmt"

	"github.com/tiger/pitchroom/api/pitch"
)

var (
	// ErrInvalidPhaseTransition rejects a command the current phase does not allow.
	ErrInvalidPhaseTransition = errors.New("invalid phase transition")
	// ErrSessionDone rejects turns after the attempt ended.
	ErrSessionDone = errors.New("session is done")
	// ErrTurnInFlight rejects input while a generation request is outstanding.
	ErrTurnInFlight = errors.New("a generation request is already in flight")
	// ErrEmptyTurn rejects blank user turns.
	ErrEmptyTurn = errors.New("turn text is empty")
	// ErrIndustryRequired rejects an industry persona without an industry.
	ErrIndustryRequired = errors.New("persona requires an industry")
)

// Trigger names the command or event behind a phase transition.
type Trigger string

const (
	TriggerAdvanceSlide  Trigger = "advance_slide"
	TriggerPreviousSlide Trigger = "previous_slide"
	TriggerStartQA       Trigger = "start_qa"
	TriggerQACapped      Trigger = "qa_capped"
	TriggerEndQA         Trigger = "end_qa"
	TriggerReset         Trigger = "reset"
)

// Transition records one accepted phase change. Slide moves are self-transitions.
type Transition struct {
	From    pitch.Phase `json:"from"`
	Trigger Trigger     `json:"trigger"`
	To      pitch.Phase `json:"to"`
}

// legal lists every accepted (phase, trigger) pair and its target phase.
var legal = map[pitch.Phase]map[Trigger]pitch.Phase{
	pitch.PhasePresenting: {
		TriggerAdvanceSlide:  pitch.PhasePresenting,
		TriggerPreviousSlide: pitch.PhasePresenting,
		TriggerStartQA:       pitch.PhaseQA,
		TriggerReset:         pitch.PhasePresenting,
	},
	pitch.PhaseQA: {
		TriggerQACapped: pitch.PhaseDone,
		TriggerEndQA:    pitch.PhaseDone,
		TriggerReset:    pitch.PhasePresenting,
	},
	pitch.PhaseDone: {
		TriggerReset: pitch.PhasePresenting,
	},
}

// Next resolves the transition trigger causes from phase.
func Next(from pitch.Phase, trigger Trigger) (Transition, error) {
	to, ok := legal[from][trigger]
	if !ok {
		return Transition{}, fmt.Errorf("%w: %s from %s", ErrInvalidPhaseTransition, trigger, from)
	}
	return Transition{From: from, Trigger: trigger, To: to}, nil
}
