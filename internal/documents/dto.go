package documents

import (
	"time"

	"redact-backend/internal/results"
)

// StatusPending is reported for documents without a processing result yet.
const StatusPending = "pending"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID     string     `json:"documentId"`
	FileName       string     `json:"fileName"`
	MimeType       string     `json:"mimeType,omitempty"`
	SizeBytes      int64      `json:"sizeBytes"`
	UploadedAt     time.Time  `json:"uploadedAt"`
	Status         string     `json:"status"`
	Reason         string     `json:"reason,omitempty"`
	OutputKey      string     `json:"outputKey,omitempty"`
	RedactionCount int        `json:"redactionCount"`
	ProcessedAt    *time.Time `json:"processedAt,omitempty"`
}

func toResponse(doc Document, res *results.ProcessingResult) DocumentResponse {
	out := DocumentResponse{
		DocumentID: doc.ID,
		FileName:   doc.OriginalFilename,
		MimeType:   doc.MimeType,
		SizeBytes:  doc.SizeBytes,
		UploadedAt: doc.UploadedAt,
		Status:     StatusPending,
	}
	if res != nil {
		out.Status = string(res.Status)
		out.Reason = res.Reason
		out.OutputKey = res.OutputKey
		out.RedactionCount = res.RedactionCount
		processedAt := res.ProcessedAt
		out.ProcessedAt = &processedAt
	}
	return out
}
