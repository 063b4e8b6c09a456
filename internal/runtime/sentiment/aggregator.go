// Package sentiment derives the counterpart's rolling mood and live badges from score deltas.
package sentiment

import (
	"strings"

	"github.com/tiger/pitchroom/api/pitch"
)

const (
	// Window is the number of trailing score deltas considered.
	Window = 3
	// BadgeThreshold is the minimum |value| that earns a live badge.
	BadgeThreshold = 2

	positiveAt  = 1.0
	skepticalAt = -1.0
)

// Badge is a short live-feedback label for one dimension.
type Badge struct {
	Dimension pitch.Dimension `json:"dimension"`
	Positive  bool            `json:"positive"`
	Text      string          `json:"text"`
}

var badgeText = map[pitch.Dimension][2]string{
	// {positive, negative}
	pitch.DimMarketOpportunity: {"Big market story", "Market feels small"},
	pitch.DimDefensibility:     {"Strong moat", "Easy to copy"},
	pitch.DimBusinessModel:     {"Clear unit economics", "Fuzzy monetization"},
	pitch.DimTraction:          {"Real traction", "Needs evidence"},
	pitch.DimTeamFit:           {"Right team", "Team gap"},
	pitch.DimClarity:           {"Crisp answer", "Hard to follow"},
	pitch.DimStorytelling:      {"Compelling story", "Lost the thread"},
	pitch.DimObjectionHandling: {"Handled the pushback", "Dodged the question"},
	pitch.DimPresence:          {"Confident delivery", "Sounds unsure"},
	pitch.DimCoachability:      {"Open to feedback", "Defensive"},
}

// Aggregator keeps score delta history and the derived live feedback.
// It is not safe for concurrent use; the session machine serializes access.
type Aggregator struct {
	history  []pitch.ScoreDelta
	badges   []Badge
	feedback string
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Push records one turn's delta. A nil delta is kept in history but never
// contributes; a delta that fails validation is recorded as nil.
// Live feedback is refreshed from the pushed delta; when it earns no badges the
// previous feedback text stays.
func (a *Aggregator) Push(delta pitch.ScoreDelta) {
	if delta.Validate() != nil {
		delta = nil
	}
	a.history = append(a.history, delta.Clone())
	if delta == nil {
		return
	}
	badges := BadgesFor(delta)
	if len(badges) == 0 {
		return
	}
	a.badges = badges
	parts := make([]string, 0, len(badges))
	for _, b := range badges {
		parts = append(parts, b.Text)
	}
	a.feedback = strings.Join(parts, " · ")
}

// Current classifies the trailing window of non-nil deltas.
func (a *Aggregator) Current() pitch.Sentiment {
	return FromHistory(a.history)
}

// LiveFeedback returns the latest non-empty badge text.
func (a *Aggregator) LiveFeedback() string {
	return a.feedback
}

// Badges returns the badges behind LiveFeedback.
func (a *Aggregator) Badges() []Badge {
	out := make([]Badge, len(a.badges))
	copy(out, a.badges)
	return out
}

// Reset clears history and live feedback.
func (a *Aggregator) Reset() {
	a.history = nil
	a.badges = nil
	a.feedback = ""
}

// FromHistory classifies the last Window non-nil deltas of history.
func FromHistory(history []pitch.ScoreDelta) pitch.Sentiment {
	window := make([]pitch.ScoreDelta, 0, Window)
	for i := len(history) - 1; i >= 0 && len(window) < Window; i-- {
		if history[i] != nil {
			window = append(window, history[i])
		}
	}
	sum, n := 0, 0
	for _, delta := range window {
		for _, dim := range pitch.ToneDimensions {
			if v, ok := delta[dim]; ok {
				sum += v
				n++
			}
		}
	}
	if n == 0 {
		return pitch.SentimentNeutral
	}
	return Classify(float64(sum) / float64(n))
}

// Classify buckets a windowed average.
func Classify(avg float64) pitch.Sentiment {
	switch {
	case avg >= positiveAt:
		return pitch.SentimentPositive
	case avg <= skepticalAt:
		return pitch.SentimentSkeptical
	default:
		return pitch.SentimentNeutral
	}
}

// BadgesFor returns the badges earned by one delta in fixed dimension order.
func BadgesFor(delta pitch.ScoreDelta) []Badge {
	var out []Badge
	for _, dim := range pitch.AllDimensions() {
		v, ok := delta[dim]
		if !ok {
			continue
		}
		text := badgeText[dim]
		switch {
		case v >= BadgeThreshold:
			out = append(out, Badge{Dimension: dim, Positive: true, Text: text[0]})
		case v <= -BadgeThreshold:
			out = append(out, Badge{Dimension: dim, Positive: false, Text: text[1]})
		}
	}
	return out
}
