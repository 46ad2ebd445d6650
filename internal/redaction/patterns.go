package redaction

import (
	"strings"

	"github.com/dlclark/regexp2"

	"redact-backend/internal/rules"
)

// Placeholders written in place of detector matches.
const (
	PlaceholderSSN        = "[SSN]"
	PlaceholderCreditCard = "[CREDIT_CARD]"
	PlaceholderPhone      = "[PHONE]"
	PlaceholderEmail      = "[EMAIL]"
	PlaceholderIP         = "[IP_ADDRESS]"
	PlaceholderLicense    = "[LICENSE]"
)

const (
	ipv4Octet = `(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)`
	hex16     = `[0-9a-f]{1,4}`
)

type detector struct {
	name        string
	placeholder string
	re          *regexp2.Regexp
	// accept filters candidate matches; nil accepts all.
	accept func(match string) bool
}

type detectorSpec struct {
	pattern    string
	ignoreCase bool
	accept     func(string) bool
}

// Numeric shapes match exactly; shapes containing letters ignore case.
var detectorSpecs = map[string]detectorSpec{
	rules.PatternSSN: {
		pattern: `(?<![\d-])(?!000|666|9\d\d)\d{3}([- ])(?!00)\d{2}\1(?!0000)\d{4}(?![\d-])`,
	},
	rules.PatternCreditCard: {
		pattern: `(?<![\d-])\d(?:[ -]?\d){12,18}(?![\d-])`,
		accept:  luhnValid,
	},
	rules.PatternPhone: {
		pattern: `(?<![\w+])(?:` +
			`(?:\+?1[ .-]?)?(?:\(\d{3}\)[ ]?|\d{3}[ .-]?)\d{3}[ .-]?\d{4}` +
			`|\+[2-9]\d{0,2}(?:[ .-]?\d{2,4}){2,5}` +
			`)(?![\w])`,
	},
	rules.PatternEmail: {
		pattern:    `(?<![\w.%+-])[a-z0-9._%+-]+@[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]{2,}(?![\w-])`,
		ignoreCase: true,
	},
	rules.PatternIPv4: {
		pattern: `(?<![\d.])(?:` + ipv4Octet + `\.){3}` + ipv4Octet + `(?!\d|\.\d)`,
	},
	rules.PatternIPv6: {
		pattern: `(?<![:\w])(?:` +
			`(?:` + hex16 + `:){7}` + hex16 +
			`|(?:` + hex16 + `:){1,7}:` +
			`|(?:` + hex16 + `:){1,6}:` + hex16 +
			`|(?:` + hex16 + `:){1,5}(?::` + hex16 + `){1,2}` +
			`|(?:` + hex16 + `:){1,4}(?::` + hex16 + `){1,3}` +
			`|(?:` + hex16 + `:){1,3}(?::` + hex16 + `){1,4}` +
			`|(?:` + hex16 + `:){1,2}(?::` + hex16 + `){1,5}` +
			`|` + hex16 + `:(?::` + hex16 + `){1,6}` +
			`|:(?::` + hex16 + `){1,7}` +
			`)(?![:\w])`,
		ignoreCase: true,
	},
	rules.PatternLicense: {
		pattern: `(?<![\w-])(?:` +
			`[a-z]{1,2}\d{5,12}` +
			`|(?=[a-z0-9-]*\d)(?=[a-z0-9-]*[a-z])[a-z0-9]{4,6}(?:-[a-z0-9]{4,6}){2,}` +
			`)(?![\w-])`,
		ignoreCase: true,
	},
}

var placeholders = map[string]string{
	rules.PatternSSN:        PlaceholderSSN,
	rules.PatternCreditCard: PlaceholderCreditCard,
	rules.PatternPhone:      PlaceholderPhone,
	rules.PatternEmail:      PlaceholderEmail,
	rules.PatternIPv4:       PlaceholderIP,
	rules.PatternIPv6:       PlaceholderIP,
	rules.PatternLicense:    PlaceholderLicense,
}

// builtinDetectors compiles the detectors in rules.PatternNames order.
func builtinDetectors() []detector {
	out := make([]detector, 0, len(rules.PatternNames))
	for _, name := range rules.PatternNames {
		spec := detectorSpecs[name]
		opts := regexp2.None
		if spec.ignoreCase {
			opts |= regexp2.IgnoreCase
		}
		out = append(out, detector{
			name:        name,
			placeholder: placeholders[name],
			re:          regexp2.MustCompile(spec.pattern, opts),
			accept:      spec.accept,
		})
	}
	return out
}

// apply replaces every accepted match. regexp2 reports positions in runes.
func (d detector) apply(text string) (string, int, error) {
	match, err := d.re.FindStringMatch(text)
	if err != nil || match == nil {
		return text, 0, err
	}

	src := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	last, n := 0, 0
	for match != nil {
		if d.accept == nil || d.accept(match.String()) {
			b.WriteString(string(src[last:match.Index]))
			b.WriteString(d.placeholder)
			last = match.Index + match.Length
			n++
		}
		match, err = d.re.FindNextMatch(match)
		if err != nil {
			return text, 0, err
		}
	}
	if n == 0 {
		return text, 0, nil
	}
	b.WriteString(string(src[last:]))
	return b.String(), n, nil
}

// luhnValid reports whether the digits in s pass the Luhn checksum.
func luhnValid(s string) bool {
	sum, digits := 0, 0
	double := false
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
		digits++
	}
	return digits >= 13 && sum%10 == 0
}
