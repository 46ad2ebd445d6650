// Package uploads issues presigned S3 PUT URLs so clients can upload large
// documents directly. The document is recorded up front; the bucket
// notification for the finished upload then triggers processing.
package uploads

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"redact-backend/internal/classify"
	"redact-backend/internal/documents"
	"redact-backend/internal/shared/server/middleware"
	"redact-backend/internal/shared/server/respond"
	"redact-backend/internal/shared/telemetry"
	"redact-backend/internal/shared/util"
)

const presignExpires = 15 * time.Minute

// Presigner is the subset of s3.PresignClient used here.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Handler serves POST /uploads/presign.
type Handler struct {
	Presign   Presigner
	Bucket    string
	Prefix    string
	KMSKeyID  string
	Documents documents.DocumentsRepo
	Now       func() time.Time
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type presignResponse struct {
	DocumentID       string `json:"documentId"`
	UploadURL        string `json:"uploadUrl"`
	S3Key            string `json:"s3Key"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

// RegisterRoutes attaches the presign route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads/presign", h.presign)
}

func (h *Handler) presign(c *gin.Context) {
	if h == nil || h.Presign == nil || h.Bucket == "" {
		respond.Error(c, http.StatusNotImplemented, "not_configured", "direct uploads are not configured", nil)
		return
	}

	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	req.FileName = strings.TrimSpace(req.FileName)
	req.ContentType = strings.TrimSpace(req.ContentType)

	if req.FileName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileName is required", nil)
		return
	}
	if req.SizeBytes < 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "sizeBytes must not be negative", nil)
		return
	}

	sanitized, err := util.SanitizeFileName(req.FileName)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid fileName", nil)
		return
	}

	ownerID := middleware.OwnerIDFromContext(c)
	docID := uuid.NewString()
	storeKey := util.OwnerKey(util.NamespaceUploads, ownerID, docID, sanitized)
	bucketKey := h.Prefix + storeKey

	out, err := h.Presign.PresignPutObject(c.Request.Context(), presignInput(h.Bucket, bucketKey, h.KMSKeyID), func(opts *s3.PresignOptions) {
		opts.Expires = presignExpires
	})
	if err != nil {
		telemetry.Error("uploads.presign.failed", map[string]any{
			"err":        err.Error(),
			"bucket":     h.Bucket,
			"key":        bucketKey,
			"owner_id":   ownerID,
			"request_id": c.GetString("requestId"),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
		return
	}

	doc := documents.Document{
		ID:               docID,
		OwnerID:          ownerID,
		OriginalFilename: sanitized,
		SizeBytes:        req.SizeBytes,
		Extension:        classify.Extension(sanitized),
		MimeType:         req.ContentType,
		StorageKey:       storeKey,
		UploadedAt:       h.now(),
	}
	if err := h.Documents.Create(c.Request.Context(), doc); err != nil {
		respond.Error(c, http.StatusServiceUnavailable, "storage_unavailable", "failed to record document", nil)
		return
	}
	c.Set("documentId", docID)

	respond.JSON(c, http.StatusOK, presignResponse{
		DocumentID:       docID,
		UploadURL:        out.URL,
		S3Key:            bucketKey,
		ExpiresInSeconds: int64(presignExpires.Seconds()),
	})
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func presignInput(bucket, key, kmsKeyID string) *s3.PutObjectInput {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if kmsKeyID != "" {
		input.ServerSideEncryption = "aws:kms"
		input.SSEKMSKeyId = aws.String(kmsKeyID)
	}
	return input
}
