// Package interruption maps presenting progress to how hard the counterpart may probe.
package interruption

import (
	"fmt"

	"github.com/tiger/pitchroom/api/pitch"
)

const (
	// ClarifyAt is the first word count at which one clarifying question is allowed.
	ClarifyAt = 50
	// ChallengeAt is the first word count at which the counterpart may push back freely.
	ChallengeAt = 100
)

// TierFor returns the interruption tier for a phase and the words spoken on the current slide.
// Tiers only apply while presenting.
func TierFor(phase pitch.Phase, wordsOnSlide int) pitch.Tier {
	if phase != pitch.PhasePresenting {
		return pitch.TierNone
	}
	if wordsOnSlide < 0 {
		wordsOnSlide = 0
	}
	switch {
	case wordsOnSlide < ClarifyAt:
		return pitch.TierEncourage
	case wordsOnSlide < ChallengeAt:
		return pitch.TierClarify
	default:
		return pitch.TierChallenge
	}
}

// Guidance returns the instruction block appended to the system context, or "" for TierNone.
func Guidance(phase pitch.Phase, wordsOnSlide int) string {
	if wordsOnSlide < 0 {
		wordsOnSlide = 0
	}
	switch TierFor(phase, wordsOnSlide) {
	case pitch.TierEncourage:
		return fmt.Sprintf("INTERRUPTION GUIDANCE: The founder has only said ~%d words on this slide. Let them talk more. "+
			"Give a brief encouraging response like \"Go on...\" or \"Okay, tell me more\" or just nod along with \"Mm-hmm, interesting.\" "+
			"Do NOT ask probing questions yet. Let them finish their thought first.", wordsOnSlide)
	case pitch.TierClarify:
		return fmt.Sprintf("INTERRUPTION GUIDANCE: The founder has said ~%d words on this slide. "+
			"You can ask ONE clarifying question if something genuinely doesn't add up, but otherwise let them continue presenting.", wordsOnSlide)
	case pitch.TierChallenge:
		return fmt.Sprintf("INTERRUPTION GUIDANCE: The founder has now said ~%d words on this slide and has had time to explain. "+
			"Now you can push back, ask hard questions, or challenge claims that don't hold up.", wordsOnSlide)
	default:
		return ""
	}
}
