package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every decoding or validation failure.
var ErrInvalidConfig = errors.New("invalid redaction config")

// conditionalRecord mirrors ConditionalRule but distinguishes a missing
// "enabled" key, which defaults to true.
type conditionalRecord struct {
	Name         string        `json:"name" yaml:"name"`
	Enabled      *bool         `json:"enabled" yaml:"enabled"`
	Trigger      Trigger       `json:"trigger" yaml:"trigger"`
	Replacements []Replacement `json:"replacements" yaml:"replacements"`
}

type configRecord struct {
	Replacements     []Replacement       `json:"replacements" yaml:"replacements"`
	CaseSensitive    bool                `json:"case_sensitive" yaml:"case_sensitive"`
	Patterns         map[string]bool     `json:"patterns" yaml:"patterns"`
	ConditionalRules []conditionalRecord `json:"conditional_rules" yaml:"conditional_rules"`
	Version          int                 `json:"version" yaml:"version"`
}

// ParseJSON decodes a stored config record.
func ParseJSON(raw []byte) (Config, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Config{}, fmt.Errorf("%w: empty document", ErrInvalidConfig)
	}
	var rec configRecord
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return rec.toConfig()
}

// ParseYAML decodes a config written as YAML with the same keys as the JSON record.
func ParseYAML(raw []byte) (Config, error) {
	var rec configRecord
	if err := yaml.Unmarshal(raw, &rec); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return rec.toConfig()
}

// ParseFile reads a local rules file, choosing the decoder by extension.
func ParseFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(raw)
	default:
		return ParseJSON(raw)
	}
}

// MarshalJSON encodes cfg in the stored record format.
func MarshalJSON(cfg Config) ([]byte, error) {
	rec := configRecord{
		Replacements:  cfg.Replacements,
		CaseSensitive: cfg.CaseSensitive,
		Patterns:      cfg.Patterns,
		Version:       cfg.Version,
	}
	if rec.Replacements == nil {
		rec.Replacements = []Replacement{}
	}
	if rec.Patterns == nil {
		rec.Patterns = map[string]bool{}
	}
	rec.ConditionalRules = make([]conditionalRecord, 0, len(cfg.ConditionalRules))
	for _, group := range cfg.ConditionalRules {
		enabled := group.Enabled
		rec.ConditionalRules = append(rec.ConditionalRules, conditionalRecord{
			Name:         group.Name,
			Enabled:      &enabled,
			Trigger:      group.Trigger,
			Replacements: group.Replacements,
		})
	}
	return json.Marshal(rec)
}

func (rec configRecord) toConfig() (Config, error) {
	cfg := Config{
		Replacements:  rec.Replacements,
		CaseSensitive: rec.CaseSensitive,
		Patterns:      make(map[string]bool, len(rec.Patterns)),
		Version:       rec.Version,
	}
	for name, on := range rec.Patterns {
		cfg.Patterns[strings.ToLower(strings.TrimSpace(name))] = on
	}
	for _, group := range rec.ConditionalRules {
		enabled := true
		if group.Enabled != nil {
			enabled = *group.Enabled
		}
		cfg.ConditionalRules = append(cfg.ConditionalRules, ConditionalRule{
			Name:         group.Name,
			Enabled:      enabled,
			Trigger:      group.Trigger,
			Replacements: group.Replacements,
		})
	}
	return cfg, nil
}

// Validate applies the checks enforced when an owner writes a config. Stored
// configs that fail them still load; unknown pattern names are ignored and a
// group without trigger terms never fires.
func Validate(cfg Config) error {
	for name := range cfg.Patterns {
		if !knownPattern(name) {
			return fmt.Errorf("%w: unknown pattern %q", ErrInvalidConfig, name)
		}
	}
	for i, r := range cfg.Replacements {
		if r.Find == "" {
			return fmt.Errorf("%w: replacement %d has an empty find value", ErrInvalidConfig, i)
		}
	}
	for i, group := range cfg.ConditionalRules {
		if group.Enabled && len(group.Trigger.Contains) == 0 {
			return fmt.Errorf("%w: conditional rule %d (%q) has no trigger terms", ErrInvalidConfig, i, group.Name)
		}
		for j, r := range group.Replacements {
			if r.Find == "" {
				return fmt.Errorf("%w: conditional rule %q replacement %d has an empty find value", ErrInvalidConfig, group.Name, j)
			}
		}
	}
	return nil
}

func knownPattern(name string) bool {
	for _, p := range PatternNames {
		if p == name {
			return true
		}
	}
	return false
}
