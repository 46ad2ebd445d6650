package classify

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

func TestClassifyOversizedAlwaysRejected(t *testing.T) {
	c := New(0)
	tests := []struct {
		name    string
		file    string
		sniffed []byte
	}{
		{name: "pdf", file: "scan.pdf", sniffed: []byte("%PDF-1.7\n")},
		{name: "text", file: "notes.txt", sniffed: []byte("hello")},
		{name: "unsupported", file: "movie.mov", sniffed: nil},
		{name: "no extension", file: "README", sniffed: []byte("x")},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := c.Classify(tt.file, 60<<20, tt.sniffed)
			if !res.Rejected || res.Reason != ReasonTooLarge {
				t.Fatalf("expected %s, got %+v", ReasonTooLarge, res)
			}
			if res.Strategy != StrategyNone {
				t.Fatalf("oversized upload must not get a strategy, got %s", res.Strategy)
			}
		})
	}
}

func TestClassifyStrategies(t *testing.T) {
	c := New(DefaultMaxSize)
	tests := []struct {
		file string
		want Strategy
	}{
		{"a.txt", StrategyPlainText},
		{"a.MD", StrategyPlainText},
		{"data.csv", StrategyPlainText},
		{"report.pdf", StrategyPDF},
		{"letter.docx", StrategyDOCX},
		{"book.xlsx", StrategyXLSX},
		{"deck.pptx", StrategyPPTX},
	}
	for _, tt := range tests {
		res := c.Classify(tt.file, 10, nil)
		if res.Rejected {
			t.Fatalf("%s: unexpected rejection %s", tt.file, res.Reason)
		}
		if res.Strategy != tt.want {
			t.Fatalf("%s: expected %s, got %s", tt.file, tt.want, res.Strategy)
		}
	}
}

func TestClassifyRejections(t *testing.T) {
	c := New(1024)
	if res := c.Classify("archive.zip", 10, nil); res.Reason != ReasonUnsupported {
		t.Fatalf("expected unsupported, got %+v", res)
	}
	if res := c.Classify("noext", 10, nil); res.Reason != ReasonUnsupported {
		t.Fatalf("expected unsupported, got %+v", res)
	}
	if res := c.Classify("empty.txt", 0, nil); res.Reason != ReasonEmpty {
		t.Fatalf("expected empty_file, got %+v", res)
	}
	if res := c.Classify("big.txt", 1025, nil); res.Reason != ReasonTooLarge {
		t.Fatalf("expected file_too_large, got %+v", res)
	}
}

func TestClassifySniffMismatchOnlyWarns(t *testing.T) {
	c := New(DefaultMaxSize)

	res := c.Classify("notes.txt", 20, []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj"))
	if res.Rejected {
		t.Fatalf("sniff mismatch must not reject: %+v", res)
	}
	if res.Warning == "" {
		t.Fatalf("expected warning for pdf bytes in a .txt")
	}
	if res.Strategy != StrategyPlainText {
		t.Fatalf("strategy follows the extension, got %s", res.Strategy)
	}

	res = c.Classify("report.pdf", 20, []byte("%PDF-1.4\n"))
	if res.Warning != "" {
		t.Fatalf("unexpected warning: %s", res.Warning)
	}
}

func TestClassifyOOXMLContainer(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := w.Write([]byte("<w:document/>")); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	res := New(0).Classify("letter.docx", int64(buf.Len()), buf.Bytes())
	if res.Rejected || res.Warning != "" {
		t.Fatalf("expected clean docx classification, got %+v", res)
	}
}

func TestResultErr(t *testing.T) {
	c := New(10)
	res := c.Classify("big.pdf", 11, nil)
	err := res.Err("big.pdf")
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Reason != ReasonTooLarge {
		t.Fatalf("expected validation error, got %v", err)
	}
	if c.Classify("a.txt", 3, []byte("abc")).Err("a.txt") != nil {
		t.Fatalf("accepted file should have no error")
	}
}
