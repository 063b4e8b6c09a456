package scoring

import (
	"reflect"
	"testing"

	"github.com/tiger/pitchroom/api/pitch"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		wantText  string
		wantDelta pitch.ScoreDelta
		wantFlag  bool
	}{
		{
			name:      "trailing tags",
			raw:       "Good point. [SCORES: clarity=3 presence=-2] [SHOULD_INTERRUPT: true]",
			wantText:  "Good point.",
			wantDelta: pitch.ScoreDelta{pitch.DimClarity: 3, pitch.DimPresence: -2},
			wantFlag:  true,
		},
		{
			name:     "no tags",
			raw:      "  Tell me more about churn.  ",
			wantText: "Tell me more about churn.",
		},
		{
			name:      "tags on their own lines",
			raw:       "What is your CAC?\n[SCORES: market_opportunity=1 traction=-1]\n[SHOULD_INTERRUPT: false]",
			wantText:  "What is your CAC?",
			wantDelta: pitch.ScoreDelta{pitch.DimMarketOpportunity: 1, pitch.DimTraction: -1},
		},
		{
			name:      "tag mid text collapses to one space",
			raw:       "Interesting. [SCORES: clarity=+1]   Why now?",
			wantText:  "Interesting. Why now?",
			wantDelta: pitch.ScoreDelta{pitch.DimClarity: 1},
		},
		{
			name:      "case insensitive tag names",
			raw:       "Hm. [scores: Clarity=2] [should_interrupt: TRUE]",
			wantText:  "Hm.",
			wantDelta: pitch.ScoreDelta{pitch.DimClarity: 2},
			wantFlag:  true,
		},
		{
			name:      "bad pairs dropped",
			raw:       "Okay. [SCORES: clarity=X presence=9 moonshot=2 traction=-3 storytelling]",
			wantText:  "Okay.",
			wantDelta: pitch.ScoreDelta{pitch.DimTraction: -3},
		},
		{
			name:     "block with no valid pairs is absent but stripped",
			raw:      "Okay. [SCORES: clarity=X presence=X]",
			wantText: "Okay.",
		},
		{
			name:     "empty block",
			raw:      "[SCORES: ] Go on.",
			wantText: "Go on.",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Extract(tc.raw)
			if got.CleanText != tc.wantText {
				t.Fatalf("expected text %q, got %q", tc.wantText, got.CleanText)
			}
			if !reflect.DeepEqual(got.Scores, tc.wantDelta) {
				t.Fatalf("expected scores %v, got %v", tc.wantDelta, got.Scores)
			}
			if got.ShouldInterrupt != tc.wantFlag {
				t.Fatalf("expected should_interrupt=%v, got %v", tc.wantFlag, got.ShouldInterrupt)
			}
		})
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Good point. [SCORES: clarity=3 presence=-2] [SHOULD_INTERRUPT: true]",
		"A [SCORES: clarity=1] B [SHOULD_INTERRUPT: false] C",
		"plain text",
		"",
	}
	for _, in := range inputs {
		once := Extract(in)
		twice := Extract(once.CleanText)
		if twice.CleanText != once.CleanText {
			t.Fatalf("extract not idempotent for %q: %q then %q", in, once.CleanText, twice.CleanText)
		}
		if twice.Scores != nil || twice.ShouldInterrupt {
			t.Fatalf("expected clean text to carry no annotations, got %+v", twice)
		}
	}
}
