package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Source describes how to load a secret value.
type Source struct {
	// Name is used in error messages to give more context about the secret.
	Name string
	// Value is an inline secret value provided via configuration or flags.
	Value string
	// File points to a file containing the secret value. When set it takes
	// precedence over Value.
	File string
}

// Load returns the resolved secret value from the provided source. When File is
// set it takes precedence over Value. The returned secret is always trimmed. An
// error is returned when neither File nor Value contain a usable secret.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	file := strings.TrimSpace(src.File)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		src.Value = string(data)
		src.File = file
	}

	secret := strings.TrimSpace(src.Value)
	if secret == "" {
		if src.File != "" {
			return "", fmt.Errorf("%s file %q is empty", name, src.File)
		}
		return "", fmt.Errorf("%s is not configured", name)
	}

	return secret, nil
}

// ListSource describes an ordered set of secrets, e.g. several API keys used for failover.
type ListSource struct {
	Name string
	// Values are inline secrets. Entries may contain several comma separated secrets.
	Values []string
	// Files each contain one or more secrets, one per line. Lines starting with # are ignored.
	Files []string
}

// LoadList resolves all secrets in the source, preserving order and dropping duplicates.
// Inline values come first, followed by file contents in the given order. An error is
// returned when no secret could be resolved at all.
func LoadList(src ListSource) ([]string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secrets"
	}

	seen := make(map[string]struct{})
	var result []string
	add := func(value string) {
		value = strings.TrimSpace(value)
		if value == "" || strings.HasPrefix(value, "#") {
			return
		}
		if _, ok := seen[value]; ok {
			return
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}

	for _, value := range src.Values {
		for _, part := range strings.Split(value, ",") {
			add(part)
		}
	}

	for _, file := range src.Files {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			add(line)
		}
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%s are not configured", name)
	}

	return result, nil
}
