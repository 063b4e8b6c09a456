// Package prompt renders the system contexts sent to the generation collaborator.
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/tiger/pitchroom/api/pitch"
	"github.com/tiger/pitchroom/internal/persona"
	"github.com/tiger/pitchroom/internal/runtime/interruption"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// slideSummaryLimit bounds each slide's text in end-of-session prompts.
const slideSummaryLimit = 200

const (
	// QAKickoff is the synthetic user prompt that asks for the first Q&A question.
	QAKickoff = "[The founder has finished presenting and is ready for Q&A]"
	// FeedbackRequest is the synthetic user prompt for a mid-session coaching request.
	FeedbackRequest = "How am I doing so far? Give me direct coaching on my pitch."
	// InterruptQuestion is the user prompt paired with the interruption pre-check.
	InterruptQuestion = "Should you interrupt?"
	// CoachingRequest is the user prompt paired with the coaching system context.
	CoachingRequest = "Analyze this pitch and provide coaching."
	// ScorecardRequest is the user prompt paired with the scorecard system context.
	ScorecardRequest = "Evaluate this pitch and provide scores."
)

// Params describes one reply request.
type Params struct {
	Persona  persona.Persona
	Industry string
	// Phase is the request mode; PhaseFeedback selects coaching instructions.
	Phase pitch.Phase
	// SlideText is the current slide while presenting, or the whole deck on
	// every Q&A request.
	SlideText    string
	WordsOnSlide int
	Attempt      int
	// Ongoing is true once the ledger holds any turn.
	Ongoing bool
}

type systemView struct {
	SystemPrompt string
	ScoreKeys    string
	Industry     string
	Phase        string
	SlideText    string
	Guidance     string
	Attempt      int
	Ongoing      bool
}

// SystemContext composes persona, industry, phase, interruption guidance and attempt instructions.
func SystemContext(p Params) (string, error) {
	if err := p.Phase.Validate(); err != nil {
		return "", err
	}
	if p.Phase == pitch.PhaseDone {
		return "", fmt.Errorf("no system context for phase %q", p.Phase)
	}
	if strings.TrimSpace(p.Persona.SystemPrompt) == "" {
		return "", fmt.Errorf("persona %q has no system prompt", p.Persona.ID)
	}
	attempt := p.Attempt
	if attempt < 1 {
		attempt = 1
	}
	view := systemView{
		SystemPrompt: strings.TrimSpace(p.Persona.SystemPrompt),
		ScoreKeys:    scoreKeys(),
		Phase:        string(p.Phase),
		SlideText:    strings.TrimSpace(p.SlideText),
		Guidance:     interruption.Guidance(p.Phase, p.WordsOnSlide),
		Attempt:      attempt,
		Ongoing:      p.Ongoing,
	}
	if p.Persona.RequiresIndustry {
		view.Industry = strings.TrimSpace(p.Industry)
	}
	return render("system.tmpl", view)
}

// InterruptParams feeds the mid-pitch interruption pre-check.
type InterruptParams struct {
	InterruptionStyle string
	SlideText         string
	FounderWords      string
}

// InterruptCheck renders the interruption pre-check system context.
func InterruptCheck(p InterruptParams) (string, error) {
	return render("interrupt.tmpl", p)
}

// ReviewParams feeds the end-of-session coaching and scorecard requests.
type ReviewParams struct {
	PersonaName        string
	PersonaDescription string
	Slides             []pitch.Slide
	Transcript         string
	Attempt            int
}

type reviewView struct {
	PersonaName        string
	PersonaDescription string
	Slides             []string
	Transcript         string
	Attempt            int
}

// Coaching renders the coaching report system context.
func Coaching(p ReviewParams) (string, error) {
	return render("coaching.tmpl", newReviewView(p))
}

// Scorecard renders the dual scorecard system context.
func Scorecard(p ReviewParams) (string, error) {
	return render("scorecard.tmpl", newReviewView(p))
}

// FeedbackMessage is the single user message of a mid-session feedback
// request. The conversation so far travels inside it, not as history.
func FeedbackMessage(transcript string) string {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return FeedbackRequest
	}
	return FeedbackRequest + "\n\nHere is the conversation so far:\n" + transcript
}

// DeckContext concatenates every slide for the first Q&A question.
func DeckContext(slides []pitch.Slide) string {
	parts := make([]string, 0, len(slides))
	for _, s := range slides {
		parts = append(parts, s.Context())
	}
	return strings.Join(parts, "\n")
}

func newReviewView(p ReviewParams) reviewView {
	attempt := p.Attempt
	if attempt < 1 {
		attempt = 1
	}
	slides := make([]string, 0, len(p.Slides))
	for _, s := range p.Slides {
		text := strings.TrimSpace(s.DisplayText)
		if utf8.RuneCountInString(text) > slideSummaryLimit {
			text = string([]rune(text)[:slideSummaryLimit])
		}
		slides = append(slides, pitch.Slide{Ordinal: s.Ordinal, DisplayText: text}.Context())
	}
	return reviewView{
		PersonaName:        p.PersonaName,
		PersonaDescription: p.PersonaDescription,
		Slides:             slides,
		Transcript:         p.Transcript,
		Attempt:            attempt,
	}
}

func scoreKeys() string {
	dims := pitch.AllDimensions()
	parts := make([]string, 0, len(dims))
	for _, d := range dims {
		parts = append(parts, string(d)+"=X")
	}
	return strings.Join(parts, " ")
}

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}
