// Package scoring separates the counterpart's display text from the inline
// score and interruption tags a model reply carries.
package scoring

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tiger/pitchroom/api/pitch"
)

var (
	scoresBlock    = regexp.MustCompile(`(?i)\s*\[SCORES:\s*([^\]]*)\]\s*`)
	interruptBlock = regexp.MustCompile(`(?i)\s*\[SHOULD_INTERRUPT:\s*(true|false)\s*\]\s*`)
)

// Result is a reply split into display text and annotations.
type Result struct {
	CleanText       string
	Scores          pitch.ScoreDelta
	ShouldInterrupt bool
}

// Extract never fails. Malformed pairs are dropped; a block with no valid
// pairs yields nil Scores but is still removed from CleanText.
func Extract(raw string) Result {
	res := Result{}
	text := raw

	if m := scoresBlock.FindStringSubmatch(text); m != nil {
		res.Scores = parsePairs(m[1])
	}
	text = scoresBlock.ReplaceAllString(text, " ")

	if m := interruptBlock.FindStringSubmatch(text); m != nil {
		res.ShouldInterrupt = strings.EqualFold(m[1], "true")
	}
	text = interruptBlock.ReplaceAllString(text, " ")

	res.CleanText = strings.TrimSpace(text)
	return res
}

func parsePairs(block string) pitch.ScoreDelta {
	delta := pitch.ScoreDelta{}
	for _, pair := range strings.Fields(block) {
		key, val, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		dim := pitch.Dimension(strings.ToLower(strings.TrimSpace(key)))
		if !dim.Known() {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(val), "+"))
		if err != nil || n < pitch.MinDelta || n > pitch.MaxDelta {
			continue
		}
		delta[dim] = n
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}
