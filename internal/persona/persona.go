// Package persona loads the investor personas a practice session can pitch to.
package persona

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var builtinCatalog []byte

// Persona is an opaque bundle of counterpart behavior parameters.
type Persona struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	Title             string `yaml:"title"`
	VoiceID           string `yaml:"voice_id"`
	PollyVoice        string `yaml:"polly_voice"`
	Color             string `yaml:"color"`
	Description       string `yaml:"description"`
	InterruptionStyle string `yaml:"interruption_style"`
	IntroMessage      string `yaml:"intro_message"`
	SystemPrompt      string `yaml:"system_prompt"`
	RequiresIndustry  bool   `yaml:"requires_industry"`
}

// Validate enforces the fields the runtime depends on.
func (p Persona) Validate() error {
	if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("persona id and name are required")
	}
	if strings.TrimSpace(p.SystemPrompt) == "" {
		return fmt.Errorf("persona %s: system_prompt is required", p.ID)
	}
	return nil
}

// VoiceFor returns the voice id for a speech provider, falling back to VoiceID.
func (p Persona) VoiceFor(provider string) string {
	if strings.EqualFold(provider, "polly") && p.PollyVoice != "" {
		return p.PollyVoice
	}
	return p.VoiceID
}

// Catalog is the set of personas and selectable industries.
type Catalog struct {
	Version    int       `yaml:"version"`
	Industries []string  `yaml:"industries"`
	Personas   []Persona `yaml:"personas"`
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing persona catalog: %w", err)
	}
	if len(c.Personas) == 0 {
		return nil, fmt.Errorf("persona catalog is empty")
	}
	seen := map[string]struct{}{}
	for _, p := range c.Personas {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("duplicate persona id: %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return &c, nil
}

// Load reads a catalog file from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading persona catalog: %w", err)
	}
	return Parse(data)
}

// Builtin returns the embedded catalog.
func Builtin() *Catalog {
	c, err := Parse(builtinCatalog)
	if err != nil {
		panic(fmt.Sprintf("builtin persona catalog: %v", err))
	}
	return c
}

// Get looks up a persona by id.
func (c *Catalog) Get(id string) (Persona, bool) {
	for _, p := range c.Personas {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}

// ValidIndustry reports whether industry is one of the catalog's industries.
func (c *Catalog) ValidIndustry(industry string) bool {
	for _, i := range c.Industries {
		if strings.EqualFold(i, strings.TrimSpace(industry)) {
			return true
		}
	}
	return false
}
