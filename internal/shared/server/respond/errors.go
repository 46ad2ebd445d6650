package respond

import (
	"github.com/gin-gonic/gin"

	"redact-backend/internal/shared/telemetry"
)

// ErrorBody is the error object returned to clients. It carries a stable code
// and a short message; diagnostic detail stays in the server log.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewError builds an ErrorResponse outside a gin context.
func NewError(code, message, requestID string) ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Code: code, Message: message, RequestID: requestID}}
}

// Error logs and aborts with a standardized error response.
func Error(c *gin.Context, status int, code, message string, details any) {
	requestID := c.GetString("requestId")
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": requestID,
	}
	if ownerID := c.GetString("ownerId"); ownerID != "" {
		fields["owner_id"] = ownerID
	}
	if documentID := c.GetString("documentId"); documentID != "" {
		fields["document_id"] = documentID
	}
	if status < 500 {
		telemetry.Warn("http.error", fields)
	} else {
		telemetry.Error("http.error", fields)
	}

	resp := NewError(code, message, requestID)
	resp.Error.Details = details
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(status, resp)
}
