// Package redaction applies an owner's literal rules, conditional rule groups
// and built-in pattern detectors to extracted text.
//
// Literal rules run strictly in configured order and each scans the output of
// the previous one, so a later rule can match text an earlier rule inserted.
// Existing configurations rely on that chaining.
package redaction

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"redact-backend/internal/rules"
)

// ErrInvalidInput is returned when Redact is handed something other than a string.
var ErrInvalidInput = errors.New("redaction input must be a string")

// Outcome is the redacted text plus replacement counts. Counts are for
// auditing only.
type Outcome struct {
	Text   string
	Count  int
	ByRule map[string]int
}

func (o *Outcome) add(rule string, n int) {
	if n == 0 {
		return
	}
	o.Count += n
	o.ByRule[rule] += n
}

// Engine holds the compiled pattern detectors. It is safe for concurrent use.
type Engine struct {
	detectors []detector
}

// New compiles the built-in detectors.
func New() *Engine {
	return &Engine{detectors: builtinDetectors()}
}

// Redact redacts text, which must be a string.
func (e *Engine) Redact(text any, cfg rules.Config) (string, int, error) {
	s, ok := text.(string)
	if !ok {
		return "", 0, fmt.Errorf("%w: got %T", ErrInvalidInput, text)
	}
	out, err := e.Apply(s, cfg)
	if err != nil {
		return "", 0, err
	}
	return out.Text, out.Count, nil
}

// RedactString is Redact for callers that already hold a string.
func (e *Engine) RedactString(text string, cfg rules.Config) (string, int, error) {
	return e.Redact(text, cfg)
}

// Apply runs literal rules, then triggered conditional groups, then the
// enabled detectors.
func (e *Engine) Apply(text string, cfg rules.Config) (Outcome, error) {
	out := Outcome{Text: text, ByRule: map[string]int{}}
	original := text

	for _, r := range cfg.Replacements {
		var n int
		out.Text, n = ReplaceLiteral(out.Text, r, cfg.CaseSensitive)
		out.add("literal", n)
	}

	for _, group := range cfg.ConditionalRules {
		if !group.Enabled || len(group.Replacements) == 0 {
			continue
		}
		if !Triggered(original, group.Trigger) {
			continue
		}
		for _, r := range group.Replacements {
			var n int
			out.Text, n = ReplaceLiteral(out.Text, r, cfg.CaseSensitive)
			out.add("conditional:"+group.Name, n)
		}
	}

	for _, d := range e.detectors {
		if !cfg.PatternEnabled(d.name) {
			continue
		}
		redacted, n, err := d.apply(out.Text)
		if err != nil {
			return Outcome{}, fmt.Errorf("pattern %s: %w", d.name, err)
		}
		out.Text = redacted
		out.add("pattern:"+d.name, n)
	}
	return out, nil
}

// ReplaceLiteral replaces every occurrence of r.Find in text. An empty Find is
// ignored.
func ReplaceLiteral(text string, r rules.Replacement, caseSensitive bool) (string, int) {
	if r.Find == "" {
		return text, 0
	}
	if caseSensitive {
		n := strings.Count(text, r.Find)
		if n == 0 {
			return text, 0
		}
		return strings.ReplaceAll(text, r.Find, r.Replace), n
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(r.Find))
	n := len(re.FindAllStringIndex(text, -1))
	if n == 0 {
		return text, 0
	}
	return re.ReplaceAllLiteralString(text, r.Replace), n
}

// Triggered reports whether any trigger term occurs in text. Terms are ORed;
// a trigger without non-empty terms never fires.
func Triggered(text string, trigger rules.Trigger) bool {
	terms := make([]string, 0, len(trigger.Contains))
	for _, term := range trigger.Contains {
		if term == "" {
			continue
		}
		if !trigger.CaseSensitive {
			term = strings.ToLower(term)
		}
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return false
	}
	if !trigger.CaseSensitive {
		text = strings.ToLower(text)
	}
	return len(ahocorasick.NewStringMatcher(terms).Match([]byte(text))) > 0
}
