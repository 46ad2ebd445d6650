package deadletter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"redact-backend/internal/shared/server/middleware"
	"redact-backend/internal/shared/server/respond"
)

// Handler lists an owner's dead letters.
type Handler struct {
	Repo Repo
}

type deadLetterResponse struct {
	ID        string    `json:"id"`
	ObjectKey string    `json:"objectKey"`
	Error     string    `json:"error"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"createdAt"`
}

// RegisterRoutes attaches GET /dead-letters.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/dead-letters", h.list)
}

func (h *Handler) list(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	items, err := h.Repo.ListByOwner(c.Request.Context(), middleware.OwnerIDFromContext(c), limit)
	if err != nil {
		respond.Error(c, http.StatusServiceUnavailable, "storage_unavailable", "failed to list dead letters", nil)
		return
	}
	out := make([]deadLetterResponse, 0, len(items))
	for _, dl := range items {
		out = append(out, deadLetterResponse{
			ID:        dl.ID,
			ObjectKey: dl.ObjectKey,
			Error:     dl.Error,
			Attempts:  dl.Attempts,
			CreatedAt: dl.CreatedAt,
		})
	}
	respond.OK(c, out)
}
