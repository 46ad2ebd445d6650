package rules

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"redact-backend/internal/shared/server/middleware"
	"redact-backend/internal/shared/server/respond"
	"redact-backend/internal/shared/telemetry"
)

const maxConfigUpload = 1 << 20

// Handler exposes an owner's redaction config over HTTP. Each request
// resolves through its own cache, so a save is visible to the next read even
// when the store's timestamps cannot tell the two versions apart.
type Handler struct {
	Source Source
	Writer Writer
}

// NewHandler constructs a Handler.
func NewHandler(source Source, writer Writer) *Handler {
	return &Handler{Source: source, Writer: writer}
}

// RegisterRoutes attaches config routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/config", h.get)
	rg.PUT("/config", h.put)
}

type configResponse struct {
	OwnerID      string `json:"ownerId"`
	LastModified string `json:"lastModified,omitempty"`
	Config       Config `json:"config"`
}

func toResponse(cfg Config) configResponse {
	resp := configResponse{OwnerID: cfg.OwnerID, Config: cfg}
	if resp.Config.Patterns == nil {
		resp.Config.Patterns = map[string]bool{}
	}
	if resp.Config.Replacements == nil {
		resp.Config.Replacements = []Replacement{}
	}
	if resp.Config.ConditionalRules == nil {
		resp.Config.ConditionalRules = []ConditionalRule{}
	}
	if !cfg.LastModified.IsZero() {
		resp.LastModified = cfg.LastModified.UTC().Format("2006-01-02T15:04:05.000000Z07:00")
	}
	return resp
}

func (h *Handler) get(c *gin.Context) {
	ownerID := middleware.OwnerIDFromContext(c)

	cfg, err := NewResolver(h.Source, NewCache()).GetConfig(c.Request.Context(), ownerID)
	if err != nil {
		telemetry.Error("rules.config.get_failed", map[string]any{"owner_id": ownerID, "error": err})
		respond.Error(c, http.StatusServiceUnavailable, "storage_unavailable", "config store unavailable", nil)
		return
	}
	respond.OK(c, toResponse(cfg))
}

func (h *Handler) put(c *gin.Context) {
	ownerID := middleware.OwnerIDFromContext(c)
	if h.Writer == nil {
		respond.Error(c, http.StatusNotImplemented, "not_supported", "config store is read-only", nil)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxConfigUpload+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read body", nil)
		return
	}
	if len(raw) > maxConfigUpload {
		respond.Error(c, http.StatusRequestEntityTooLarge, "too_large", "config exceeds 1MB", nil)
		return
	}

	cfg, err := ParseJSON(raw)
	if err == nil {
		err = Validate(cfg)
	}
	if err != nil {
		if errors.Is(err, ErrInvalidConfig) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read config", nil)
		return
	}

	lastModified, err := h.Writer.Save(c.Request.Context(), ownerID, cfg)
	if err != nil {
		telemetry.Error("rules.config.save_failed", map[string]any{"owner_id": ownerID, "error": err})
		respond.Error(c, http.StatusServiceUnavailable, "storage_unavailable", "failed to save config", nil)
		return
	}
	cfg.OwnerID = ownerID
	cfg.LastModified = lastModified
	telemetry.Info("rules.config.saved", map[string]any{
		"owner_id":      ownerID,
		"last_modified": lastModified,
		"replacements":  len(cfg.Replacements),
		"conditional":   len(cfg.ConditionalRules),
	})
	respond.OK(c, toResponse(cfg))
}
