// Package filename derives output names: literal rules applied to the stem,
// a fixed canonical extension, and Explorer-style " (n)" numbering on collision.
package filename

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"redact-backend/internal/redaction"
	"redact-backend/internal/rules"
	"redact-backend/internal/shared/storage/object"
	"redact-backend/internal/shared/util"
)

// DefaultExtension is the canonical output extension.
const DefaultExtension = ".txt"

const fallbackStem = "document"

// Redactor renames documents for output.
type Redactor struct {
	Extension string
}

// New returns a Redactor forcing ext (".txt" when empty).
func New(ext string) *Redactor {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &Redactor{Extension: strings.ToLower(ext)}
}

// RedactFilename applies cfg's literal replacements to the stem of name and
// replaces its extension with the canonical one. Pattern detectors are not
// applied to names.
func (r *Redactor) RedactFilename(name string, cfg rules.Config) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))

	for _, rep := range cfg.Replacements {
		stem, _ = redaction.ReplaceLiteral(stem, rep, cfg.CaseSensitive)
	}

	for strings.Contains(stem, "..") {
		stem = strings.ReplaceAll(stem, "..", ".")
	}
	stem = strings.Trim(stem, ". ")
	clean, err := util.SanitizeFileName(stem)
	if err != nil {
		clean = fallbackStem
	}
	return clean + r.extension()
}

func (r *Redactor) extension() string {
	if r == nil || r.Extension == "" {
		return DefaultExtension
	}
	return r.Extension
}

// ResolveCollision returns name if it is not in existing, otherwise the first
// "stem (n).ext" with n = 1, 2, ... that is free. A counter already on the
// stem is replaced, not nested. Comparison ignores case.
func ResolveCollision(name string, existing []string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		taken[strings.ToLower(e)] = struct{}{}
	}
	if _, ok := taken[strings.ToLower(name)]; !ok {
		return name
	}
	ext := path.Ext(name)
	stem := trimCounter(strings.TrimSuffix(name, ext))
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if _, ok := taken[strings.ToLower(candidate)]; !ok {
			return candidate
		}
	}
}

// trimCounter drops a trailing " (n)" so "report (1)" numbers as "report".
func trimCounter(stem string) string {
	i := strings.LastIndex(stem, " (")
	if i <= 0 || !strings.HasSuffix(stem, ")") {
		return stem
	}
	digits := stem[i+2 : len(stem)-1]
	if n, err := strconv.Atoi(digits); err != nil || n < 1 || digits[0] == '+' {
		return stem
	}
	return stem[:i]
}

// Lister lists stored objects under a prefix.
type Lister interface {
	List(ctx context.Context, prefix string) ([]object.Info, error)
}

// Next lists the names already stored directly under prefix and resolves name
// against them. Two concurrent callers may pick the same name.
func Next(ctx context.Context, lister Lister, prefix, name string) (string, error) {
	infos, err := lister.List(ctx, prefix)
	if err != nil {
		return "", err
	}
	existing := make([]string, 0, len(infos))
	for _, info := range infos {
		rest := strings.TrimPrefix(info.Key, prefix)
		if rest == "" || strings.Contains(rest, "/") {
			continue
		}
		existing = append(existing, rest)
	}
	return ResolveCollision(name, existing), nil
}
