// Package deck loads the ordered slide records a session presents.
package deck

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tiger/pitchroom/api/pitch"
)

// Deck is a titled, ordered list of slides.
type Deck struct {
	Title  string        `yaml:"title"`
	Slides []pitch.Slide `yaml:"slides"`
}

// Load reads a deck from path. Files ending in .yaml or .yml are decoded as
// YAML; anything else is plain text with slides separated by "---" lines.
func Load(path string) (Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Deck{}, fmt.Errorf("reading deck: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		d, err := ParseText(data)
		if err != nil {
			return Deck{}, err
		}
		d.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return d, nil
	}
}

// ParseYAML decodes a YAML deck. Slides without an ordinal are numbered by position.
func ParseYAML(data []byte) (Deck, error) {
	var d Deck
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Deck{}, fmt.Errorf("parsing deck: %w", err)
	}
	for i := range d.Slides {
		if d.Slides[i].Ordinal == 0 {
			d.Slides[i].Ordinal = i + 1
		}
		d.Slides[i].DisplayText = strings.TrimSpace(d.Slides[i].DisplayText)
	}
	if err := pitch.ValidateDeck(d.Slides); err != nil {
		return Deck{}, err
	}
	return d, nil
}

// ParseText splits plain text on separator lines of "---".
func ParseText(data []byte) (Deck, error) {
	var (
		d       Deck
		current []string
	)
	flush := func() {
		d.Slides = append(d.Slides, pitch.Slide{
			Ordinal:     len(d.Slides) + 1,
			DisplayText: strings.TrimSpace(strings.Join(current, "\n")),
		})
		current = current[:0]
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			flush()
			continue
		}
		current = append(current, line)
	}
	if err := scanner.Err(); err != nil {
		return Deck{}, fmt.Errorf("reading deck text: %w", err)
	}
	if len(current) > 0 && strings.TrimSpace(strings.Join(current, "")) != "" {
		flush()
	}
	if err := pitch.ValidateDeck(d.Slides); err != nil {
		return Deck{}, err
	}
	return d, nil
}
