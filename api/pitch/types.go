package pitch

import (
	"fmt"
	"strings"
)

// Phase is the top-level stage of a practice session.
type Phase string

const (
	PhasePresenting Phase = "presenting"
	PhaseQA         Phase = "qa"
	// PhaseFeedback is a request mode only. A session never stores it.
	PhaseFeedback Phase = "feedback"
	PhaseDone     Phase = "done"
)

// Validate enforces supported phase values.
func (p Phase) Validate() error {
	switch p {
	case PhasePresenting, PhaseQA, PhaseFeedback, PhaseDone:
		return nil
	default:
		return fmt.Errorf("unsupported phase: %q", p)
	}
}

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser        Speaker = "user"
	SpeakerCounterpart Speaker = "counterpart"
)

// Validate enforces supported speaker values.
func (s Speaker) Validate() error {
	switch s {
	case SpeakerUser, SpeakerCounterpart:
		return nil
	default:
		return fmt.Errorf("unsupported speaker: %q", s)
	}
}

// Turn is one ledger entry.
type Turn struct {
	Seq         int     `json:"seq"`
	Speaker     Speaker `json:"speaker"`
	Text        string  `json:"text"`
	Phase       Phase   `json:"phase"`
	SlideAtTime int     `json:"slide_at_time"`
	// Scripted marks lines the runtime wrote without a model call.
	Scripted bool `json:"scripted,omitempty"`
	// Fallback marks the apology appended after a failed generation or a reply
	// with no display text.
	Fallback bool `json:"fallback,omitempty"`
}

// Validate enforces turn invariants.
func (t Turn) Validate() error {
	if err := t.Speaker.Validate(); err != nil {
		return err
	}
	if t.Phase != PhasePresenting && t.Phase != PhaseQA && t.Phase != PhaseDone {
		return fmt.Errorf("turn phase must be a ledger phase, got %q", t.Phase)
	}
	if t.SlideAtTime < 0 {
		return fmt.Errorf("slide_at_time must be >=0")
	}
	if t.Scripted && t.Speaker != SpeakerCounterpart {
		return fmt.Errorf("scripted turns must be spoken by the counterpart")
	}
	return nil
}

// Slide is one ordered slide record borrowed from the deck loader.
type Slide struct {
	Ordinal     int    `json:"ordinal" yaml:"ordinal"`
	DisplayText string `json:"display_text" yaml:"text"`
}

// Validate enforces slide invariants.
func (s Slide) Validate() error {
	if s.Ordinal < 1 {
		return fmt.Errorf("slide ordinal must be >=1")
	}
	return nil
}

// Context renders a slide for inclusion in a generation request.
func (s Slide) Context() string {
	text := strings.TrimSpace(s.DisplayText)
	if text == "" {
		text = "[image only]"
	}
	return fmt.Sprintf("Slide %d: %s", s.Ordinal, text)
}

// ValidateDeck checks that slides are non-empty and ordered by ordinal.
func ValidateDeck(slides []Slide) error {
	if len(slides) == 0 {
		return fmt.Errorf("deck must contain at least one slide")
	}
	for i, s := range slides {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("slide %d: %w", i, err)
		}
		if i > 0 && s.Ordinal <= slides[i-1].Ordinal {
			return fmt.Errorf("slide %d: ordinals must be strictly increasing", i)
		}
	}
	return nil
}

// Role tags a transcript message sent to the generation collaborator.
type Role string

const (
	RoleUser        Role = "user"
	RoleCounterpart Role = "counterpart"
)

// Message is one role-tagged transcript entry.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// RoleFor maps a ledger speaker to its transcript role.
func RoleFor(s Speaker) Role {
	if s == SpeakerCounterpart {
		return RoleCounterpart
	}
	return RoleUser
}

// Sentiment is the coarse rolling mood of the counterpart.
type Sentiment string

const (
	SentimentPositive  Sentiment = "positive"
	SentimentNeutral   Sentiment = "neutral"
	SentimentSkeptical Sentiment = "skeptical"
)

// Tier is the interruption aggressiveness applied while presenting.
type Tier string

const (
	TierNone      Tier = "none"
	TierEncourage Tier = "encourage"
	TierClarify   Tier = "clarify"
	TierChallenge Tier = "challenge"
)
