package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tiger/pitchroom/internal/deck"
	"github.com/tiger/pitchroom/internal/persona"
)

// PersonaCatalogVersionV1 is the only catalog version strict mode accepts.
const PersonaCatalogVersionV1 = 1

// ValidationMode controls strictness for authoring-file checks.
type ValidationMode string

const (
	ValidationModeStrict  ValidationMode = "strict"
	ValidationModeRelaxed ValidationMode = "relaxed"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ParseValidationMode normalizes command mode input.
func ParseValidationMode(raw string) (ValidationMode, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ValidationModeStrict, nil
	}
	switch ValidationMode(trimmed) {
	case ValidationModeStrict, ValidationModeRelaxed:
		return ValidationMode(trimmed), nil
	default:
		return "", fmt.Errorf("unsupported validation mode %q (expected strict|relaxed)", raw)
	}
}

// ValidateDeckFile validates a deck file in strict or relaxed mode. Relaxed
// mode accepts whatever a session would load.
func ValidateDeckFile(path string, mode string) error {
	normalizedPath := strings.TrimSpace(path)
	if normalizedPath == "" {
		return fmt.Errorf("deck path is required")
	}
	raw, err := os.ReadFile(normalizedPath)
	if err != nil {
		return fmt.Errorf("read deck file %s: %w", normalizedPath, err)
	}
	ext := strings.ToLower(filepath.Ext(normalizedPath))
	if err := ValidateDeck(raw, ext == ".yaml" || ext == ".yml", mode); err != nil {
		return fmt.Errorf("validate deck %s: %w", normalizedPath, err)
	}
	return nil
}

// ValidatePersonaCatalogFile validates a persona catalog file in strict or relaxed mode.
func ValidatePersonaCatalogFile(path string, mode string) error {
	normalizedPath := strings.TrimSpace(path)
	if normalizedPath == "" {
		return fmt.Errorf("persona catalog path is required")
	}
	raw, err := os.ReadFile(normalizedPath)
	if err != nil {
		return fmt.Errorf("read persona catalog %s: %w", normalizedPath, err)
	}
	if err := ValidatePersonaCatalog(raw, mode); err != nil {
		return fmt.Errorf("validate persona catalog %s: %w", normalizedPath, err)
	}
	return nil
}

// ValidateDeck validates deck content. isYAML selects the YAML format over
// plain text separated by "---" lines.
func ValidateDeck(raw []byte, isYAML bool, mode string) error {
	parsedMode, err := ParseValidationMode(mode)
	if err != nil {
		return err
	}
	var d deck.Deck
	if isYAML {
		d, err = deck.ParseYAML(raw)
	} else {
		d, err = deck.ParseText(raw)
	}
	if err != nil {
		return err
	}
	if parsedMode == ValidationModeRelaxed {
		return nil
	}

	if isYAML {
		var doc deck.Deck
		if err := decodeYAML(raw, &doc, true); err != nil {
			return err
		}
		if strings.TrimSpace(doc.Title) == "" {
			return fmt.Errorf("title is required")
		}
	}
	for idx, s := range d.Slides {
		if s.DisplayText == "" {
			return fmt.Errorf("slides[%d] has no text", idx)
		}
		if s.Ordinal != idx+1 {
			return fmt.Errorf("slides[%d].ordinal %d must equal %d in strict mode", idx, s.Ordinal, idx+1)
		}
	}
	return nil
}

// ValidatePersonaCatalog validates persona catalog YAML in strict or relaxed mode.
func ValidatePersonaCatalog(raw []byte, mode string) error {
	parsedMode, err := ParseValidationMode(mode)
	if err != nil {
		return err
	}
	if _, err := persona.Parse(raw); err != nil {
		return err
	}
	if parsedMode == ValidationModeRelaxed {
		return nil
	}

	var doc persona.Catalog
	if err := decodeYAML(raw, &doc, true); err != nil {
		return err
	}
	return validateCatalogStrict(doc)
}

func validateCatalogStrict(doc persona.Catalog) error {
	if doc.Version != PersonaCatalogVersionV1 {
		return fmt.Errorf("version must equal %d in strict mode", PersonaCatalogVersionV1)
	}

	industries := make(map[string]struct{}, len(doc.Industries))
	for idx, industry := range doc.Industries {
		key := strings.ToLower(strings.TrimSpace(industry))
		if key == "" {
			return fmt.Errorf("industries[%d] must be non-empty", idx)
		}
		if _, exists := industries[key]; exists {
			return fmt.Errorf("industries[%d] duplicates %q", idx, industry)
		}
		industries[key] = struct{}{}
	}

	for idx, p := range doc.Personas {
		if strings.TrimSpace(p.IntroMessage) == "" {
			return fmt.Errorf("personas[%d] %s: intro_message is required", idx, p.ID)
		}
		if strings.TrimSpace(p.VoiceID) == "" && strings.TrimSpace(p.PollyVoice) == "" {
			return fmt.Errorf("personas[%d] %s: voice_id or polly_voice is required", idx, p.ID)
		}
		if p.Color != "" && !hexColor.MatchString(p.Color) {
			return fmt.Errorf("personas[%d] %s: color %q must be #rrggbb", idx, p.ID, p.Color)
		}
		if p.RequiresIndustry && len(industries) == 0 {
			return fmt.Errorf("personas[%d] %s: requires_industry needs a non-empty industries list", idx, p.ID)
		}
	}
	return nil
}

func decodeYAML(raw []byte, out any, strict bool) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(strict)
	if err := dec.Decode(out); err != nil {
		return err
	}
	var extra any
	if err := dec.Decode(&extra); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return fmt.Errorf("unexpected trailing YAML document")
}
