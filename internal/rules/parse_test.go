package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	raw := []byte(`{
		"replacements": [{"find": "Acme Corp", "replace": "[CLIENT]"}],
		"case_sensitive": false,
		"patterns": {"SSN": true, "email": false},
		"conditional_rules": [
			{"name": "medical", "trigger": {"contains": ["diagnosis"]}, "replacements": [{"find": "flu", "replace": "[CONDITION]"}]},
			{"name": "off", "enabled": false, "trigger": {"contains": ["x"]}, "replacements": [{"find": "y", "replace": "z"}]}
		]
	}`)

	cfg, err := ParseJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, []Replacement{{Find: "Acme Corp", Replace: "[CLIENT]"}}, cfg.Replacements)
	assert.True(t, cfg.PatternEnabled(PatternSSN))
	assert.False(t, cfg.PatternEnabled(PatternEmail))
	require.Len(t, cfg.ConditionalRules, 2)
	assert.True(t, cfg.ConditionalRules[0].Enabled, "enabled defaults to true when omitted")
	assert.False(t, cfg.ConditionalRules[1].Enabled)
}

func TestParseJSONRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: "   "},
		{name: "truncated", raw: `{"replacements": [`},
		{name: "wrong type", raw: `{"replacements": "nope"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseJSON([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParseToleratesUnknownPatterns(t *testing.T) {
	cfg, err := ParseJSON([]byte(`{"patterns": {"passport": true, "phone": true}}`))
	require.NoError(t, err)
	assert.True(t, cfg.PatternEnabled(PatternPhone))
	assert.ErrorIs(t, Validate(cfg), ErrInvalidConfig)
}

func TestParseYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	body := `
replacements:
  - find: Jane Doe
    replace: "[NAME]"
case_sensitive: true
patterns:
  email: true
conditional_rules:
  - name: legal
    trigger:
      contains: [plaintiff]
      case_sensitive: true
    replacements:
      - find: Smith
        replace: "[PARTY]"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := ParseFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.CaseSensitive)
	assert.True(t, cfg.PatternEnabled(PatternEmail))
	require.Len(t, cfg.ConditionalRules, 1)
	assert.True(t, cfg.ConditionalRules[0].Enabled)
	assert.True(t, cfg.ConditionalRules[0].Trigger.CaseSensitive)
}

func TestMarshalRoundTripKeepsDisabledGroups(t *testing.T) {
	cfg := Default("o")
	cfg.ConditionalRules = []ConditionalRule{{Name: "g", Enabled: false, Trigger: Trigger{Contains: []string{"a"}}}}

	raw, err := MarshalJSON(cfg)
	require.NoError(t, err)
	back, err := ParseJSON(raw)
	require.NoError(t, err)
	require.Len(t, back.ConditionalRules, 1)
	assert.False(t, back.ConditionalRules[0].Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{name: "default", cfg: Default("o"), ok: true},
		{name: "empty find", cfg: Config{Replacements: []Replacement{{Find: "", Replace: "x"}}}},
		{name: "enabled group without trigger", cfg: Config{ConditionalRules: []ConditionalRule{{Name: "g", Enabled: true}}}},
		{name: "disabled group without trigger", cfg: Config{ConditionalRules: []ConditionalRule{{Name: "g"}}}, ok: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.cfg)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestIsEmptyAndClone(t *testing.T) {
	cfg := Default("o")
	assert.True(t, cfg.IsEmpty())

	cfg.Patterns[PatternIPv4] = true
	assert.False(t, cfg.IsEmpty())

	clone := cfg.Clone()
	clone.Patterns[PatternIPv4] = false
	assert.True(t, cfg.PatternEnabled(PatternIPv4), "clone must not share the patterns map")
}
