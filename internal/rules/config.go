// Package rules owns per-owner redaction configuration: its record format,
// the sources it is stored in, and the resolver that loads and caches it.
package rules

import (
	"slices"
	"time"
)

// Built-in pattern detector names, as used in the "patterns" map.
const (
	PatternSSN        = "ssn"
	PatternCreditCard = "credit_card"
	PatternPhone      = "phone"
	PatternEmail      = "email"
	PatternIPv4       = "ipv4"
	PatternIPv6       = "ipv6"
	PatternLicense    = "license"
)

// PatternNames lists every detector in application order. Structured shapes
// (addresses) run before bare digit runs so a later detector never sees half
// of an earlier match.
var PatternNames = []string{
	PatternEmail,
	PatternIPv4,
	PatternIPv6,
	PatternSSN,
	PatternCreditCard,
	PatternPhone,
	PatternLicense,
}

// Replacement is a literal find/replace pair.
type Replacement struct {
	Find    string `json:"find" yaml:"find"`
	Replace string `json:"replace" yaml:"replace"`
}

// Trigger gates a conditional rule group on the original document text.
type Trigger struct {
	Contains      []string `json:"contains" yaml:"contains"`
	CaseSensitive bool     `json:"case_sensitive" yaml:"case_sensitive"`
}

// ConditionalRule is a group of replacements applied only when its trigger fires.
type ConditionalRule struct {
	Name         string        `json:"name" yaml:"name"`
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	Trigger      Trigger       `json:"trigger" yaml:"trigger"`
	Replacements []Replacement `json:"replacements" yaml:"replacements"`
}

// Config is an owner's redaction configuration. Values handed out by the
// Resolver are copies; callers must not expect mutations to be persisted.
type Config struct {
	OwnerID          string            `json:"-" yaml:"-"`
	Replacements     []Replacement     `json:"replacements" yaml:"replacements"`
	CaseSensitive    bool              `json:"case_sensitive" yaml:"case_sensitive"`
	Patterns         map[string]bool   `json:"patterns" yaml:"patterns"`
	ConditionalRules []ConditionalRule `json:"conditional_rules" yaml:"conditional_rules"`
	Version          int               `json:"version,omitempty" yaml:"version,omitempty"`
	LastModified     time.Time         `json:"-" yaml:"-"`
}

// Default returns the empty configuration for an owner: no rules, no patterns.
func Default(ownerID string) Config {
	return Config{
		OwnerID:  ownerID,
		Patterns: map[string]bool{},
	}
}

// PatternEnabled reports whether the named detector is switched on.
func (c Config) PatternEnabled(name string) bool {
	return c.Patterns[name]
}

// IsEmpty reports whether the config would leave every document unchanged.
func (c Config) IsEmpty() bool {
	if len(c.Replacements) > 0 {
		return false
	}
	for _, on := range c.Patterns {
		if on {
			return false
		}
	}
	for _, group := range c.ConditionalRules {
		if group.Enabled && len(group.Replacements) > 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	out := c
	out.Replacements = slices.Clone(c.Replacements)
	out.Patterns = make(map[string]bool, len(c.Patterns))
	for k, v := range c.Patterns {
		out.Patterns[k] = v
	}
	out.ConditionalRules = make([]ConditionalRule, len(c.ConditionalRules))
	for i, group := range c.ConditionalRules {
		group.Trigger.Contains = slices.Clone(group.Trigger.Contains)
		group.Replacements = slices.Clone(group.Replacements)
		out.ConditionalRules[i] = group
	}
	if c.ConditionalRules == nil {
		out.ConditionalRules = nil
	}
	return out
}
