package deck

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseYAML(t *testing.T) {
	t.Parallel()

	d, err := ParseYAML([]byte("title: Shovels Inc\nslides:\n  - text: Problem\n  - text: |\n      Solution\n  - {}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Title != "Shovels Inc" || len(d.Slides) != 3 {
		t.Fatalf("unexpected deck %+v", d)
	}
	if d.Slides[1].Ordinal != 2 || d.Slides[1].DisplayText != "Solution" {
		t.Fatalf("unexpected second slide %+v", d.Slides[1])
	}
	if d.Slides[2].Context() != "Slide 3: [image only]" {
		t.Fatalf("unexpected image-only slide context %q", d.Slides[2].Context())
	}
}

func TestParseYAMLRejectsBadDecks(t *testing.T) {
	t.Parallel()

	for name, data := range map[string]string{
		"empty":     "title: nothing\n",
		"unordered": "slides:\n  - ordinal: 2\n    text: b\n  - ordinal: 1\n    text: a\n",
		"malformed": "slides: [",
	} {
		if _, err := ParseYAML([]byte(data)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseText(t *testing.T) {
	t.Parallel()

	d, err := ParseText([]byte("Problem\nBanks are slow\n---\nSolution\n---\n\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Slides) != 2 {
		t.Fatalf("expected 2 slides, got %+v", d.Slides)
	}
	if d.Slides[0].DisplayText != "Problem\nBanks are slow" || d.Slides[1].Ordinal != 2 {
		t.Fatalf("unexpected slides %+v", d.Slides)
	}

	if _, err := ParseText([]byte("   \n")); err == nil {
		t.Fatalf("expected empty text deck to fail")
	}
}

func TestLoadChoosesFormatByExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "deck.yaml")
	textPath := filepath.Join(dir, "acme.txt")
	if err := os.WriteFile(yamlPath, []byte("slides:\n  - text: One\n"), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	if err := os.WriteFile(textPath, []byte("One\n---\nTwo\n"), 0o644); err != nil {
		t.Fatalf("write text: %v", err)
	}

	y, err := Load(yamlPath)
	if err != nil || len(y.Slides) != 1 {
		t.Fatalf("unexpected yaml deck %+v err=%v", y, err)
	}
	x, err := Load(textPath)
	if err != nil || len(x.Slides) != 2 || x.Title != "acme" {
		t.Fatalf("unexpected text deck %+v err=%v", x, err)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}
