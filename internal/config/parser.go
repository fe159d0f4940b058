package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse overlays YAML content onto base and validates the result.
// Unknown keys are rejected so typos surface instead of silently defaulting.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg := base
	if strings.TrimSpace(content) != "" {
		dec := yaml.NewDecoder(strings.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, nil, describeYAMLError(err)
		}
	}
	if cfg.Vocab.Sets == nil {
		cfg.Vocab.Sets = map[string]VocabSet{}
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func describeYAMLError(err error) error {
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		return fmt.Errorf("invalid config: %s", strings.Join(typeErr.Errors, "; "))
	}
	return fmt.Errorf("invalid yaml: %w", err)
}
