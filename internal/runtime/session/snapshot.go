package session

import (
	"github.com/tiger/pitchroom/api/pitch"
	"github.com/tiger/pitchroom/internal/runtime/budget"
	"github.com/tiger/pitchroom/internal/runtime/sentiment"
)

// Snapshot is a read-only copy of the session state for display.
type Snapshot struct {
	ID            string            `json:"id"`
	PersonaID     string            `json:"persona_id"`
	Industry      string            `json:"industry,omitempty"`
	Attempt       int               `json:"attempt"`
	Phase         pitch.Phase       `json:"phase"`
	SlideIndex    int               `json:"slide_index"`
	SlideCount    int               `json:"slide_count"`
	CurrentSlide  pitch.Slide       `json:"current_slide"`
	Turns         []pitch.Turn      `json:"turns"`
	Sentiment     pitch.Sentiment   `json:"sentiment"`
	LiveFeedback  string            `json:"live_feedback,omitempty"`
	Badges        []sentiment.Badge `json:"badges,omitempty"`
	Counters      budget.Counters   `json:"counters"`
	SlideWarning  bool              `json:"slide_warning"`
	LastCoaching  string            `json:"last_coaching,omitempty"`
	LastInterrupt bool              `json:"last_interrupt"`
	InFlight      bool              `json:"in_flight"`
}

// OnLastSlide reports whether advancing would start Q&A.
func (s Snapshot) OnLastSlide() bool {
	return s.SlideIndex == s.SlideCount-1
}

// Snapshot copies the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		ID:            m.id,
		PersonaID:     m.persona.ID,
		Industry:      m.industry,
		Attempt:       m.attempt,
		Phase:         m.phase,
		SlideIndex:    m.slideIndex,
		SlideCount:    len(m.slides),
		CurrentSlide:  m.slides[m.slideIndex],
		Turns:         m.ledger.Turns(),
		Sentiment:     m.sentiment.Current(),
		LiveFeedback:  m.sentiment.LiveFeedback(),
		Badges:        m.sentiment.Badges(),
		Counters:      m.budget.Counters(),
		SlideWarning:  m.phase == pitch.PhasePresenting && m.budget.SlideOverBudget(),
		LastCoaching:  m.lastCoaching,
		LastInterrupt: m.lastFlag,
		InFlight:      m.inFlight.Load(),
	}
}

// Intro returns the persona's scripted greeting. It is shown, not recorded.
func (m *Machine) Intro() string {
	return m.persona.IntroMessage
}
