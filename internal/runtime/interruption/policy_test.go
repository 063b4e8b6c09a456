package interruption

import (
	"strings"
	"testing"

	"github.com/tiger/pitchroom/api/pitch"
)

func TestTierBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		words    int
		expected pitch.Tier
	}{
		{words: -5, expected: pitch.TierEncourage},
		{words: 0, expected: pitch.TierEncourage},
		{words: 49, expected: pitch.TierEncourage},
		{words: 50, expected: pitch.TierClarify},
		{words: 99, expected: pitch.TierClarify},
		{words: 100, expected: pitch.TierChallenge},
		{words: 5000, expected: pitch.TierChallenge},
	}
	for _, tc := range tests {
		if got := TierFor(pitch.PhasePresenting, tc.words); got != tc.expected {
			t.Fatalf("words=%d: expected %s, got %s", tc.words, tc.expected, got)
		}
	}
}

func TestTiersAreExhaustive(t *testing.T) {
	t.Parallel()

	for w := 0; w <= 250; w++ {
		tier := TierFor(pitch.PhasePresenting, w)
		switch tier {
		case pitch.TierEncourage, pitch.TierClarify, pitch.TierChallenge:
		default:
			t.Fatalf("words=%d produced non-presenting tier %s", w, tier)
		}
		if Guidance(pitch.PhasePresenting, w) == "" {
			t.Fatalf("words=%d produced empty guidance", w)
		}
	}
}

func TestNoTieringOutsidePresenting(t *testing.T) {
	t.Parallel()

	for _, phase := range []pitch.Phase{pitch.PhaseQA, pitch.PhaseFeedback, pitch.PhaseDone} {
		if got := TierFor(phase, 10); got != pitch.TierNone {
			t.Fatalf("phase %s: expected none, got %s", phase, got)
		}
		if got := Guidance(phase, 200); got != "" {
			t.Fatalf("phase %s: expected empty guidance, got %q", phase, got)
		}
	}
}

func TestGuidanceMentionsWordCount(t *testing.T) {
	t.Parallel()

	g := Guidance(pitch.PhasePresenting, 73)
	if !strings.Contains(g, "~73 words") || !strings.Contains(g, "ONE clarifying question") {
		t.Fatalf("unexpected clarify guidance %q", g)
	}
}
