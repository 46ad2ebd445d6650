package main

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"

	"redact-backend/internal/shared/config"
)

func v2Request(method, path string, headers map[string]string) events.APIGatewayV2HTTPRequest {
	req := events.APIGatewayV2HTTPRequest{
		Version:  "2.0",
		RawPath:  path,
		Headers:  headers,
		RouteKey: "$default",
	}
	req.RequestContext.HTTP.Method = method
	req.RequestContext.HTTP.Path = path
	return req
}

func TestProxyServesHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	p := &proxy{load: func() config.Config {
		return config.Config{Env: "dev", ObjectStoreType: "local", LocalStoreDir: dir, MaxUploadBytes: 1 << 20}
	}}

	resp, err := p.handle(context.Background(), v2Request(http.MethodGet, "/api/v1/health", nil))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}
}

func TestProxyReportsBootstrapFailure(t *testing.T) {
	p := &proxy{load: func() config.Config {
		return config.Config{Env: "production", ObjectStoreType: "local", LocalStoreDir: t.TempDir()}
	}}

	resp, err := p.handle(context.Background(), v2Request(http.MethodGet, "/api/v1/health", nil))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable || !strings.Contains(resp.Body, "service_unavailable") {
		t.Fatalf("unexpected response: %d %s", resp.StatusCode, resp.Body)
	}
}
