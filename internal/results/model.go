// Package results records the single terminal outcome of each document.
package results

import (
	"errors"
	"time"
)

// Status is the terminal state of a document.
type Status string

const (
	StatusProcessed   Status = "processed"
	StatusQuarantined Status = "quarantined"
)

var (
	// ErrAlreadyExists is returned when a document already has a result.
	ErrAlreadyExists = errors.New("processing result already exists")
	ErrNotFound      = errors.New("processing result not found")
)

// ProcessingResult is created exactly once per document.
type ProcessingResult struct {
	DocumentID     string
	OwnerID        string
	Status         Status
	OutputKey      string
	RedactionCount int
	Reason         string
	// OriginalKey is the upload key; set for quarantined documents.
	OriginalKey string
	ProcessedAt time.Time
}

// Quarantined reports whether the document ended in quarantine.
func (r ProcessingResult) Quarantined() bool { return r.Status == StatusQuarantined }

// QuarantineRecord is the quarantine view of a result.
type QuarantineRecord struct {
	DocumentID    string    `json:"documentId"`
	Reason        string    `json:"reason"`
	OriginalKey   string    `json:"originalKey"`
	QuarantinedAt time.Time `json:"quarantinedAt"`
}

// QuarantineRecord returns the record for a quarantined result.
func (r ProcessingResult) QuarantineRecord() (QuarantineRecord, bool) {
	if !r.Quarantined() {
		return QuarantineRecord{}, false
	}
	return QuarantineRecord{
		DocumentID:    r.DocumentID,
		Reason:        r.Reason,
		OriginalKey:   r.OriginalKey,
		QuarantinedAt: r.ProcessedAt,
	}, true
}
