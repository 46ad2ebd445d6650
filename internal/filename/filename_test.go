package filename

import (
	"bytes"
	"context"
	"testing"

	"redact-backend/internal/rules"
	"redact-backend/internal/shared/storage/object/memory"
)

func TestRedactFilename(t *testing.T) {
	cfg := rules.Default("o")
	cfg.Replacements = []rules.Replacement{{Find: "Acme", Replace: "CLIENT"}}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "canonical extension", in: "report.pdf", want: "report.txt"},
		{name: "literal rules on stem", in: "acme_contract.docx", want: "CLIENT_contract.txt"},
		{name: "extension not redacted", in: "notes.acme", want: "notes.txt"},
		{name: "no extension", in: "README", want: "README.txt"},
		{name: "path stripped", in: `C:\Users\me\Acme plan.xlsx`, want: "CLIENT plan.txt"},
		{name: "dots collapsed", in: "a..b.csv", want: "a.b.txt"},
		{name: "empty stem", in: ".pdf", want: "document.txt"},
	}
	r := New("")
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := r.RedactFilename(tt.in, cfg); got != tt.want {
				t.Fatalf("RedactFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRedactFilenameIgnoresPatterns(t *testing.T) {
	cfg := rules.Default("o")
	cfg.Patterns[rules.PatternSSN] = true
	if got := New(".md").RedactFilename("123-45-6789.pdf", cfg); got != "123-45-6789.md" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestResolveCollision(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		want     string
	}{
		{name: "report.txt", existing: nil, want: "report.txt"},
		{name: "report.txt", existing: []string{"report.txt"}, want: "report (1).txt"},
		{name: "report.txt", existing: []string{"report.txt", "report (1).txt", "report (2).txt"}, want: "report (3).txt"},
		{name: "report.txt", existing: []string{"report.txt", "report (2).txt"}, want: "report (1).txt"},
		{name: "Report.txt", existing: []string{"report.TXT"}, want: "Report (1).txt"},
		{name: "report (1).txt", existing: []string{"report (1).txt"}, want: "report (2).txt"},
		{name: "report (2).txt", existing: []string{"report (2).txt", "report (1).txt"}, want: "report (3).txt"},
		{name: "notes (draft).txt", existing: []string{"notes (draft).txt"}, want: "notes (draft) (1).txt"},
	}
	for _, tt := range tests {
		got := ResolveCollision(tt.name, tt.existing)
		if got != tt.want {
			t.Fatalf("ResolveCollision(%q, %v) = %q, want %q", tt.name, tt.existing, got, tt.want)
		}
		if again := ResolveCollision(tt.name, tt.existing); again != got {
			t.Fatalf("not deterministic: %q vs %q", got, again)
		}
	}
}

func TestNextListsOwnerPrefix(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	for _, key := range []string{"processed/h/report.txt", "processed/h/report (1).txt", "processed/h/sub/report (2).txt", "processed/other/report (2).txt"} {
		if _, err := store.Put(ctx, key, "text/plain", bytes.NewReader([]byte("x"))); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	got, err := Next(ctx, store, "processed/h/", "report.txt")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != "report (2).txt" {
		t.Fatalf("expected report (2).txt, got %q", got)
	}
}
