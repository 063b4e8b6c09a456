package coaching

import (
	"github.com/tiger/pitchroom/api/pitch"
)

// Label thresholds for overall rubric scores.
const (
	LabelInvestorReady = "Investor Ready"
	LabelAlmostThere   = "Almost There"
	LabelNeedsWork     = "Needs Work"
	LabelEarlyStage    = "Early Stage"
)

// MaxToughMoments caps the coaching call-outs kept from a report.
const MaxToughMoments = 5

// LabelFor buckets an overall score.
func LabelFor(score float64) string {
	switch {
	case score >= 80:
		return LabelInvestorReady
	case score >= 65:
		return LabelAlmostThere
	case score >= 45:
		return LabelNeedsWork
	default:
		return LabelEarlyStage
	}
}

// ToughMoment is one counterpart question worth rehearsing.
type ToughMoment struct {
	VCQuestion        string `json:"vc_question"`
	FounderAnswer     string `json:"founder_answer"`
	WhatGoodLooksLike string `json:"what_good_looks_like"`
	SuggestedFollowup string `json:"suggested_followup,omitempty"`
}

// Report is the end-of-session coaching artifact.
type Report struct {
	OverallFeedback string        `json:"overall_feedback"`
	ToughMoments    []ToughMoment `json:"tough_moments"`
	Strengths       []string      `json:"strengths"`
	Improvements    []string      `json:"improvements"`
}

// BusinessQuality scores the startup itself.
type BusinessQuality struct {
	OverallScore      float64 `json:"overall_score"`
	OverallLabel      string  `json:"overall_label"`
	MarketOpportunity float64 `json:"market_opportunity"`
	Defensibility     float64 `json:"defensibility"`
	BusinessModel     float64 `json:"business_model"`
	Traction          float64 `json:"traction"`
	TeamFit           float64 `json:"team_fit"`
	Summary           string  `json:"summary"`
}

// Dimensions returns the rubric scores keyed by dimension.
func (b BusinessQuality) Dimensions() map[pitch.Dimension]float64 {
	return map[pitch.Dimension]float64{
		pitch.DimMarketOpportunity: b.MarketOpportunity,
		pitch.DimDefensibility:     b.Defensibility,
		pitch.DimBusinessModel:     b.BusinessModel,
		pitch.DimTraction:          b.Traction,
		pitch.DimTeamFit:           b.TeamFit,
	}
}

// PitchDelivery scores how the founder pitched.
type PitchDelivery struct {
	OverallScore      float64 `json:"overall_score"`
	OverallLabel      string  `json:"overall_label"`
	Clarity           float64 `json:"clarity"`
	Storytelling      float64 `json:"storytelling"`
	ObjectionHandling float64 `json:"objection_handling"`
	Presence          float64 `json:"presence"`
	Coachability      float64 `json:"coachability"`
	Summary           string  `json:"summary"`
}

// Dimensions returns the rubric scores keyed by dimension.
func (p PitchDelivery) Dimensions() map[pitch.Dimension]float64 {
	return map[pitch.Dimension]float64{
		pitch.DimClarity:           p.Clarity,
		pitch.DimStorytelling:      p.Storytelling,
		pitch.DimObjectionHandling: p.ObjectionHandling,
		pitch.DimPresence:          p.Presence,
		pitch.DimCoachability:      p.Coachability,
	}
}

// Scorecard is the dual-rubric results artifact.
type Scorecard struct {
	Attempt         int             `json:"attempt"`
	BusinessQuality BusinessQuality `json:"business_quality"`
	PitchDelivery   PitchDelivery   `json:"pitch_delivery"`
	Strengths       []string        `json:"strengths"`
	Improvements    []string        `json:"improvements"`
	Verdict         string          `json:"verdict"`
}

// Outcome bundles both end-of-session artifacts.
type Outcome struct {
	Coaching  Report    `json:"coaching"`
	Scorecard Scorecard `json:"scorecard"`
}
