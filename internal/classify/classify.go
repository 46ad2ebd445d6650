// Package classify validates an upload's size and type and picks the single
// extraction strategy used for it.
package classify

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxSize is the upload ceiling when none is configured.
const DefaultMaxSize int64 = 50 << 20

// Strategy selects the text extractor for a document.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyPlainText
	StrategyPDF
	StrategyDOCX
	StrategyXLSX
	StrategyPPTX
)

func (s Strategy) String() string {
	switch s {
	case StrategyPlainText:
		return "plaintext"
	case StrategyPDF:
		return "pdf"
	case StrategyDOCX:
		return "docx"
	case StrategyXLSX:
		return "xlsx"
	case StrategyPPTX:
		return "pptx"
	default:
		return "none"
	}
}

// Rejection reasons recorded on quarantined documents.
const (
	ReasonTooLarge    = "file_too_large"
	ReasonUnsupported = "unsupported_file_type"
	ReasonEmpty       = "empty_file"
)

type format struct {
	strategy Strategy
	mimeType string
	// family lists the detected types considered consistent with the extension.
	family []string
}

var (
	ooxmlContainer = []string{"application/zip"}
	formats        = map[string]format{
		".txt": {StrategyPlainText, "text/plain", []string{"text/plain"}},
		".md":  {StrategyPlainText, "text/markdown", []string{"text/plain"}},
		".csv": {StrategyPlainText, "text/csv", []string{"text/plain", "text/csv"}},
		".pdf": {StrategyPDF, "application/pdf", []string{"application/pdf"}},
		".docx": {StrategyDOCX, "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			append([]string{"application/vnd.openxmlformats-officedocument.wordprocessingml.document"}, ooxmlContainer...)},
		".xlsx": {StrategyXLSX, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			append([]string{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}, ooxmlContainer...)},
		".pptx": {StrategyPPTX, "application/vnd.openxmlformats-officedocument.presentationml.presentation",
			append([]string{"application/vnd.openxmlformats-officedocument.presentationml.presentation"}, ooxmlContainer...)},
	}
)

// Result is the classifier's verdict for one upload.
type Result struct {
	Strategy  Strategy
	Extension string
	MimeType  string
	Rejected  bool
	Reason    string
	// Warning is set when the sniffed content disagrees with the extension.
	// It never causes a rejection.
	Warning  string
	Detected string
}

// Classifier applies the allow-list and size ceiling.
type Classifier struct {
	MaxSize int64
}

// New returns a Classifier with the given ceiling; non-positive uses DefaultMaxSize.
func New(maxSize int64) *Classifier {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Classifier{MaxSize: maxSize}
}

// Classify checks size first, then extension, then sniffs the leading bytes.
func (c *Classifier) Classify(filename string, size int64, sniffed []byte) Result {
	maxSize := c.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	ext := Extension(filename)
	res := Result{Extension: ext}
	if size > maxSize {
		res.Rejected = true
		res.Reason = ReasonTooLarge
		return res
	}

	f, ok := formats[ext]
	if !ok {
		res.Rejected = true
		res.Reason = ReasonUnsupported
		return res
	}
	res.Strategy = f.strategy
	res.MimeType = f.mimeType

	if size == 0 {
		res.Rejected = true
		res.Reason = ReasonEmpty
		return res
	}

	if len(sniffed) > 0 {
		detected := mimetype.Detect(sniffed)
		res.Detected = detected.String()
		if !inFamily(detected, f.family) {
			res.Warning = "content looks like " + detected.String() + ", not " + ext
		}
	}
	return res
}

// Extension returns the lower-cased extension including the dot.
func Extension(filename string) string {
	return strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
}

// Supported reports whether ext (with dot) is on the allow-list.
func Supported(ext string) bool {
	_, ok := formats[strings.ToLower(ext)]
	return ok
}

func inFamily(detected *mimetype.MIME, family []string) bool {
	for m := detected; m != nil; m = m.Parent() {
		for _, want := range family {
			if m.Is(want) {
				return true
			}
		}
	}
	return false
}

// ValidationError reports a classifier rejection.
type ValidationError struct {
	Filename string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("classify %q: %s", e.Filename, e.Reason)
}

// Err returns a *ValidationError when the upload was rejected, nil otherwise.
func (r Result) Err(filename string) error {
	if !r.Rejected {
		return nil
	}
	return &ValidationError{Filename: filename, Reason: r.Reason}
}
