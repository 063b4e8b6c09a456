package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tiger/pitchroom/api/pitch"
	"github.com/tiger/pitchroom/internal/runtime/coaching"
	"github.com/tiger/pitchroom/internal/runtime/session"
)

type sessionReport struct {
	GeneratedAtUTC string             `json:"generated_at_utc"`
	SessionID      string             `json:"session_id"`
	PersonaID      string             `json:"persona_id"`
	Industry       string             `json:"industry,omitempty"`
	DeckTitle      string             `json:"deck_title,omitempty"`
	Attempt        int                `json:"attempt"`
	Turns          []pitch.Turn       `json:"turns"`
	Coaching       coaching.Report    `json:"coaching"`
	Scorecard      coaching.Scorecard `json:"scorecard"`
}

func newSessionReport(snap session.Snapshot, deckTitle string, outcome coaching.Outcome) sessionReport {
	return sessionReport{
		GeneratedAtUTC: time.Now().UTC().Format(time.RFC3339),
		SessionID:      snap.ID,
		PersonaID:      snap.PersonaID,
		Industry:       snap.Industry,
		DeckTitle:      deckTitle,
		Attempt:        snap.Attempt,
		Turns:          snap.Turns,
		Coaching:       outcome.Coaching,
		Scorecard:      outcome.Scorecard,
	}
}

// writeReport writes the JSON report and a markdown summary next to it.
func writeReport(outputPath string, report sessionReport) (string, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return "", err
	}
	summaryPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".md"
	if err := os.WriteFile(summaryPath, []byte(renderReportSummary(report)), 0o644); err != nil {
		return "", err
	}
	return summaryPath, nil
}

func renderReportSummary(report sessionReport) string {
	var b strings.Builder
	title := report.DeckTitle
	if title == "" {
		title = "Pitch"
	}
	fmt.Fprintf(&b, "# %s: attempt %d\n\n", title, report.Attempt)
	fmt.Fprintf(&b, "- Session: `%s`\n", report.SessionID)
	fmt.Fprintf(&b, "- Investor: `%s`\n", report.PersonaID)
	if report.Industry != "" {
		fmt.Fprintf(&b, "- Industry: %s\n", report.Industry)
	}
	fmt.Fprintf(&b, "- Generated: %s\n\n", report.GeneratedAtUTC)

	sc := report.Scorecard
	b.WriteString("## Scorecard\n\n")
	fmt.Fprintf(&b, "| Rubric | Score | Label |\n|---|---|---|\n")
	fmt.Fprintf(&b, "| Business quality | %.0f | %s |\n", sc.BusinessQuality.OverallScore, sc.BusinessQuality.OverallLabel)
	fmt.Fprintf(&b, "| Pitch delivery | %.0f | %s |\n\n", sc.PitchDelivery.OverallScore, sc.PitchDelivery.OverallLabel)
	writeDimensions(&b, sc.BusinessQuality.Dimensions(), pitch.BusinessDimensions)
	writeDimensions(&b, sc.PitchDelivery.Dimensions(), pitch.DeliveryDimensions)
	if sc.Verdict != "" {
		fmt.Fprintf(&b, "\n**Verdict:** %s\n", sc.Verdict)
	}

	c := report.Coaching
	b.WriteString("\n## Coaching\n\n")
	if c.OverallFeedback != "" {
		b.WriteString(c.OverallFeedback + "\n")
	}
	if len(c.ToughMoments) > 0 {
		b.WriteString("\n### Tough moments\n")
		for i, m := range c.ToughMoments {
			fmt.Fprintf(&b, "\n%d. **%s**\n", i+1, m.VCQuestion)
			fmt.Fprintf(&b, "   - You said: %s\n", m.FounderAnswer)
			fmt.Fprintf(&b, "   - Stronger: %s\n", m.WhatGoodLooksLike)
			if m.SuggestedFollowup != "" {
				fmt.Fprintf(&b, "   - Expect next: %s\n", m.SuggestedFollowup)
			}
		}
	}
	writeList(&b, "Strengths", append(append([]string{}, c.Strengths...), sc.Strengths...))
	writeList(&b, "Improvements", append(append([]string{}, c.Improvements...), sc.Improvements...))
	return b.String()
}

func writeDimensions(b *strings.Builder, scores map[pitch.Dimension]float64, order []pitch.Dimension) {
	for _, d := range order {
		fmt.Fprintf(b, "- %s: %.0f\n", d.Label(), scores[d])
	}
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
