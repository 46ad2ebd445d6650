package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestWriteIncludesFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	t.Cleanup(func() { SetOutput(prev) })

	Warn("classify.sniff.mismatch", map[string]any{
		"document_id": "doc-1",
		"error":       errors.New("boom"),
		"msg":         "must not override",
	})

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if got["level"] != "warn" {
		t.Fatalf("level = %v, want warn", got["level"])
	}
	if got["msg"] != "classify.sniff.mismatch" {
		t.Fatalf("msg = %v", got["msg"])
	}
	if got["error"] != "boom" {
		t.Fatalf("error field = %v, want boom", got["error"])
	}
	if got["document_id"] != "doc-1" {
		t.Fatalf("document_id = %v", got["document_id"])
	}
}
