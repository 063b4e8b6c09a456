package pitch

import "fmt"

// Dimension is one of the ten fixed evaluation dimensions.
type Dimension string

const (
	DimMarketOpportunity Dimension = "market_opportunity"
	DimDefensibility     Dimension = "defensibility"
	DimBusinessModel     Dimension = "business_model"
	DimTraction          Dimension = "traction"
	DimTeamFit           Dimension = "team_fit"

	DimClarity           Dimension = "clarity"
	DimStorytelling      Dimension = "storytelling"
	DimObjectionHandling Dimension = "objection_handling"
	DimPresence          Dimension = "presence"
	DimCoachability      Dimension = "coachability"
)

const (
	// MinDelta and MaxDelta bound a per-turn score adjustment.
	MinDelta = -3
	MaxDelta = 3
)

// BusinessDimensions answers "would I invest?".
var BusinessDimensions = []Dimension{
	DimMarketOpportunity,
	DimDefensibility,
	DimBusinessModel,
	DimTraction,
	DimTeamFit,
}

// DeliveryDimensions answers "did you sell it?".
var DeliveryDimensions = []Dimension{
	DimClarity,
	DimStorytelling,
	DimObjectionHandling,
	DimPresence,
	DimCoachability,
}

// ToneDimensions feed the live sentiment signal. Business dimensions never do.
var ToneDimensions = []Dimension{
	DimObjectionHandling,
	DimClarity,
	DimPresence,
	DimCoachability,
}

// AllDimensions lists business dimensions first, then delivery.
func AllDimensions() []Dimension {
	out := make([]Dimension, 0, len(BusinessDimensions)+len(DeliveryDimensions))
	out = append(out, BusinessDimensions...)
	out = append(out, DeliveryDimensions...)
	return out
}

var dimensionLabels = map[Dimension]string{
	DimMarketOpportunity: "Market Opportunity",
	DimDefensibility:     "Defensibility",
	DimBusinessModel:     "Business Model",
	DimTraction:          "Traction & Evidence",
	DimTeamFit:           "Founder-Market Fit",
	DimClarity:           "Clarity",
	DimStorytelling:      "Storytelling",
	DimObjectionHandling: "Objection Handling",
	DimPresence:          "Confidence & Presence",
	DimCoachability:      "Coachability",
}

// Label returns the display label for a dimension.
func (d Dimension) Label() string {
	if label, ok := dimensionLabels[d]; ok {
		return label
	}
	return string(d)
}

// Known reports whether d is one of the ten fixed dimensions.
func (d Dimension) Known() bool {
	_, ok := dimensionLabels[d]
	return ok
}

// ScoreDelta is the per-turn signed adjustment parsed from one counterpart turn.
// A nil ScoreDelta means the turn carried no usable scores.
type ScoreDelta map[Dimension]int

// Validate enforces known keys and the [-3, +3] range.
func (s ScoreDelta) Validate() error {
	for dim, v := range s {
		if !dim.Known() {
			return fmt.Errorf("unknown dimension: %q", dim)
		}
		if v < MinDelta || v > MaxDelta {
			return fmt.Errorf("dimension %s value %d outside [%d, %d]", dim, v, MinDelta, MaxDelta)
		}
	}
	return nil
}

// Clone returns an independent copy; nil stays nil.
func (s ScoreDelta) Clone() ScoreDelta {
	if s == nil {
		return nil
	}
	out := make(ScoreDelta, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
