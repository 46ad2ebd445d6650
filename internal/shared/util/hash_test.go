package util

import "testing"

func TestHashOwnerKey(t *testing.T) {
	id := "owner-12345"
	got := HashOwnerKey(id)
	if got != HashOwnerKey(id) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}

func TestOwnerKeyLayout(t *testing.T) {
	hash := HashOwnerKey("alice")

	if got, want := OwnerPrefix(NamespaceProcessed, "alice"), "processed/"+hash+"/"; got != want {
		t.Fatalf("OwnerPrefix = %q, want %q", got, want)
	}
	if got, want := OwnerKey(NamespaceQuarantine, "alice", "doc-1", "a.pdf"), "quarantine/"+hash+"/doc-1/a.pdf"; got != want {
		t.Fatalf("OwnerKey = %q, want %q", got, want)
	}
	if OwnerPrefix(NamespaceProcessed, "alice") == OwnerPrefix(NamespaceProcessed, "bob") {
		t.Fatal("owner prefixes must differ")
	}
}

func TestOwnerFromKey(t *testing.T) {
	key := OwnerKey(NamespaceUploads, "alice", "doc-1", "a.pdf")
	got, ok := OwnerFromKey(NamespaceUploads, key)
	if !ok || got != HashOwnerKey("alice") {
		t.Fatalf("OwnerFromKey = %q, %v", got, ok)
	}
	if _, ok := OwnerFromKey(NamespaceProcessed, key); ok {
		t.Fatal("expected namespace mismatch")
	}
}
