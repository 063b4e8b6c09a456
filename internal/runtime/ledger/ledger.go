package ledger

import (
	"fmt"
	"strings"

	"github.com/tiger/pitchroom/api/pitch"
)

// Ledger is the append-only, ordered record of session turns.
// It is not safe for concurrent use; the session machine serializes access.
type Ledger struct {
	turns []pitch.Turn
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{turns: make([]pitch.Turn, 0, 32)}
}

// Append validates a turn and stores it, assigning its occurrence sequence.
func (l *Ledger) Append(turn pitch.Turn) (pitch.Turn, error) {
	if err := turn.Validate(); err != nil {
		return pitch.Turn{}, fmt.Errorf("append turn: %w", err)
	}
	turn.Seq = len(l.turns) + 1
	l.turns = append(l.turns, turn)
	return turn, nil
}

// Turns returns a copy of all turns in occurrence order.
func (l *Ledger) Turns() []pitch.Turn {
	out := make([]pitch.Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// UserTurnCount returns how many turns the user produced.
func (l *Ledger) UserTurnCount() int {
	n := 0
	for _, t := range l.turns {
		if t.Speaker == pitch.SpeakerUser {
			n++
		}
	}
	return n
}

// Transcript maps the ledger into a role-tagged transcript.
func (l *Ledger) Transcript() []pitch.Message {
	out := make([]pitch.Message, 0, len(l.turns))
	for _, t := range l.turns {
		out = append(out, pitch.Message{Role: pitch.RoleFor(t.Speaker), Text: t.Text})
	}
	return out
}

// RenderTranscript renders FOUNDER/VC lines for end-of-session prompts.
func (l *Ledger) RenderTranscript() string {
	return RenderTranscript(l.turns)
}

// RenderTranscript renders a turn list as FOUNDER/VC lines.
func RenderTranscript(turns []pitch.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		who := "FOUNDER"
		if t.Speaker == pitch.SpeakerCounterpart {
			who = "VC"
		}
		lines = append(lines, who+": "+t.Text)
	}
	return strings.Join(lines, "\n")
}

// Reset clears every turn. Only a session reset may call it.
func (l *Ledger) Reset() {
	l.turns = l.turns[:0:0]
}
