// Package config resolves provider settings that may be given as secret references.
package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	envRefPrefix  = "env://"
	fileRefPrefix = "file://"
)

// Resolver looks up secret references. Zero fields fall back to the process environment and filesystem.
type Resolver struct {
	LookupEnv func(string) (string, bool)
	ReadFile  func(string) ([]byte, error)
}

var defaultResolver = Resolver{LookupEnv: os.LookupEnv, ReadFile: os.ReadFile}

// ResolveSecretRef resolves ref against the process environment and filesystem.
// Accepted forms: "env://NAME", "file:///path/to/secret" and a bare "NAME".
func ResolveSecretRef(ref string) (string, error) {
	return defaultResolver.Resolve(ref)
}

// Resolve returns the non-empty secret named by ref.
func (r Resolver) Resolve(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", fmt.Errorf("secret_ref is required")
	}
	if path, ok := strings.CutPrefix(trimmed, fileRefPrefix); ok {
		return r.readFile(ref, path)
	}
	name, err := envRefName(ref, trimmed)
	if err != nil {
		return "", err
	}
	lookup := r.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	value, ok := lookup(name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("secret_ref %q resolved empty value", name)
	}
	return strings.TrimSpace(value), nil
}

func (r Resolver) readFile(ref string, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || !strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("secret_ref %q must name an absolute file path", ref)
	}
	read := r.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	raw, err := read(path)
	if err != nil {
		return "", fmt.Errorf("secret_ref %q: %w", ref, err)
	}
	value := strings.TrimSpace(string(raw))
	if value == "" {
		return "", fmt.Errorf("secret_ref %q resolved empty value", ref)
	}
	return value, nil
}

func envRefName(ref string, trimmed string) (string, error) {
	name := trimmed
	if rest, ok := strings.CutPrefix(trimmed, envRefPrefix); ok {
		name = strings.TrimSpace(rest)
		if name == "" {
			return "", fmt.Errorf("secret_ref %q is missing env var name", ref)
		}
	} else if strings.Contains(trimmed, "://") {
		return "", fmt.Errorf("secret_ref %q uses unsupported scheme", ref)
	}
	if strings.Contains(name, "/") {
		return "", fmt.Errorf("secret_ref %q contains unsupported path separator", ref)
	}
	return name, nil
}

// ResolveEnvValue reads literalEnvVar, falling back to fallback when empty.
// When secretRefEnvVar is set and resolves, the resolved secret wins; a broken
// reference keeps the literal.
func ResolveEnvValue(literalEnvVar string, secretRefEnvVar string, fallback string) string {
	return defaultResolver.EnvValue(literalEnvVar, secretRefEnvVar, fallback)
}

// EnvValue is ResolveEnvValue against r.
func (r Resolver) EnvValue(literalEnvVar string, secretRefEnvVar string, fallback string) string {
	lookup := r.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	literal, _ := lookup(literalEnvVar)
	literal = strings.TrimSpace(literal)
	if literal == "" {
		literal = fallback
	}
	ref, _ := lookup(secretRefEnvVar)
	if strings.TrimSpace(ref) == "" {
		return literal
	}
	value, err := r.Resolve(ref)
	if err != nil {
		return literal
	}
	return value
}

// RedactSecret masks non-empty secret material for logs and `pitchctl` output.
func RedactSecret(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return "***redacted***"
}
