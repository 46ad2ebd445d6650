package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LineEnding selects the newline sequence of normalized output.
type LineEnding string

const (
	LF   LineEnding = "lf"
	CRLF LineEnding = "crlf"
)

// ParseLineEnding maps a config value to a LineEnding, defaulting to LF.
func ParseLineEnding(v string) LineEnding {
	if strings.EqualFold(strings.TrimSpace(v), string(CRLF)) {
		return CRLF
	}
	return LF
}

var punctuation = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'", "‛", "'", "′", "'",
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`, "″", `"`,
	"«", `"`, "»", `"`,
	"‐", "-", "‑", "-", "‒", "-", "–", "-", "—", "-", "―", "-", "−", "-",
	"…", "...",
	"•", "*", "‣", "*", "◦", "*", "⁃", "*", "∙", "*", "▪", "*", "●", "*",
	"©", "(C)", "®", "(R)", "™", "(TM)",
	"€", "EUR", "£", "GBP", "¥", "JPY",
	"×", "x", "÷", "/",
)

// Normalizer maps extracted text to the canonical output form.
type Normalizer struct {
	LineEnding LineEnding
}

// Normalize folds smart punctuation and accented letters to ASCII, removes
// control and formatting characters other than tab and newline, and applies
// the configured line ending.
func (n Normalizer) Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = punctuation.Replace(text)

	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, text); err == nil {
		text = folded
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r == unicode.ReplacementChar:
			// dropped
		case unicode.IsControl(r) || unicode.Is(unicode.Cf, r):
			// dropped
		case unicode.Is(unicode.Zs, r):
			b.WriteByte(' ')
		case r > unicode.MaxASCII && unicode.Is(unicode.So, r):
			// emoji and pictographs have no ASCII equivalent
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if n.LineEnding == CRLF {
		out = strings.ReplaceAll(out, "\n", "\r\n")
	}
	return out
}
