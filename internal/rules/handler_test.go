package rules

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"redact-backend/internal/retry"
	"redact-backend/internal/shared/server/middleware"
	"redact-backend/internal/shared/storage/object/memory"
)

func newConfigRouter(t *testing.T) *gin.Engine {
	t.Helper()
	src := &ObjectSource{Store: memory.New(), Retry: retry.Policy{MaxAttempts: 1}}
	return newConfigRouterWith(src, src)
}

func newConfigRouterWith(source Source, writer Writer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(source, writer)

	r := gin.New()
	r.Use(middleware.Owner())
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doConfig(r *gin.Engine, method, owner, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/v1/config", strings.NewReader(body))
	req.Header.Set("X-Owner-Id", owner)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerGetDefault(t *testing.T) {
	r := newConfigRouter(t)

	rec := doConfig(r, http.MethodGet, "owner-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		OwnerID string `json:"ownerId"`
		Config  struct {
			Replacements []Replacement `json:"replacements"`
		} `json:"config"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.OwnerID != "owner-1" || resp.Config.Replacements == nil || len(resp.Config.Replacements) != 0 {
		t.Fatalf("unexpected default response: %s", rec.Body.String())
	}
}

func TestHandlerPutThenGet(t *testing.T) {
	r := newConfigRouter(t)

	rec := doConfig(r, http.MethodPut, "owner-1", `{"replacements":[{"find":"Acme","replace":"[CLIENT]"}],"patterns":{"email":true}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doConfig(r, http.MethodGet, "owner-1", "")
	if !strings.Contains(rec.Body.String(), `"find":"Acme"`) {
		t.Fatalf("saved config not returned: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"lastModified"`) {
		t.Fatalf("expected lastModified: %s", rec.Body.String())
	}

	rec = doConfig(r, http.MethodGet, "owner-2", "")
	if strings.Contains(rec.Body.String(), "Acme") {
		t.Fatalf("config leaked across owners: %s", rec.Body.String())
	}
}

func TestHandlerPutRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed", body: `{"replacements":`},
		{name: "unknown pattern", body: `{"patterns":{"passport":true}}`},
		{name: "empty find", body: `{"replacements":[{"find":"","replace":"x"}]}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			r := newConfigRouter(t)
			rec := doConfig(r, http.MethodPut, "owner-1", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

// secondSource reports versions at one-second granularity, like S3
// LastModified.
type secondSource struct {
	*ObjectSource
}

func (s secondSource) Version(ctx context.Context, ownerID string) (time.Time, error) {
	v, err := s.ObjectSource.Version(ctx, ownerID)
	return v.Truncate(time.Second), err
}

func (s secondSource) Load(ctx context.Context, ownerID string) (Record, error) {
	rec, err := s.ObjectSource.Load(ctx, ownerID)
	rec.LastModified = rec.LastModified.Truncate(time.Second)
	return rec, err
}

func TestHandlerGetSeesSaveWithinSameSecond(t *testing.T) {
	src := secondSource{&ObjectSource{Store: memory.New(), Retry: retry.Policy{MaxAttempts: 1}}}
	r := newConfigRouterWith(src, src)

	for _, find := range []string{"first", "second"} {
		rec := doConfig(r, http.MethodPut, "owner-1", `{"replacements":[{"find":"`+find+`","replace":"x"}]}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("put %s: %d %s", find, rec.Code, rec.Body.String())
		}
		rec = doConfig(r, http.MethodGet, "owner-1", "")
		if !strings.Contains(rec.Body.String(), `"find":"`+find+`"`) {
			t.Fatalf("expected %q after save, got %s", find, rec.Body.String())
		}
	}
}
