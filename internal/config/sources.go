package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source modes.
const (
	ModeBatch     = "batch"
	ModePaginated = "paginated"
)

// SourceConfig describes one ingestion source in the sources manifest.
type SourceConfig struct {
	Name      string            `yaml:"name"`
	Kind      string            `yaml:"kind"`
	Mode      string            `yaml:"mode"`
	URL       string            `yaml:"url"`
	PageParam string            `yaml:"page_param,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Username  string            `yaml:"username,omitempty"`
	Password  string            `yaml:"password,omitempty"`
	Enabled   *bool             `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the source should run. Sources are enabled unless disabled explicitly.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSources reads and validates a YAML sources manifest.
func LoadSources(path string) ([]SourceConfig, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sources file is not configured (set ingest.sources_file)")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSources(raw)
}

// ParseSources decodes a YAML sources manifest.
func ParseSources(raw []byte) ([]SourceConfig, error) {
	var file sourcesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Sources))
	for i := range file.Sources {
		src := &file.Sources[i]
		src.Name = strings.TrimSpace(src.Name)
		src.Kind = strings.ToLower(strings.TrimSpace(src.Kind))
		src.Mode = strings.ToLower(strings.TrimSpace(src.Mode))
		if src.Mode == "" {
			src.Mode = ModeBatch
		}

		if src.Name == "" {
			return nil, fmt.Errorf("source %d: name is required", i+1)
		}
		if _, dup := seen[src.Name]; dup {
			return nil, fmt.Errorf("source %s: duplicate name", src.Name)
		}
		seen[src.Name] = struct{}{}
		if src.Kind == "" {
			return nil, fmt.Errorf("source %s: kind is required", src.Name)
		}
		if strings.TrimSpace(src.URL) == "" {
			return nil, fmt.Errorf("source %s: url is required", src.Name)
		}
		if src.Mode != ModeBatch && src.Mode != ModePaginated {
			return nil, fmt.Errorf("source %s: mode must be %s or %s", src.Name, ModeBatch, ModePaginated)
		}
	}
	return file.Sources, nil
}
