package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"redact-backend/internal/bootstrap"
	"redact-backend/internal/shared/config"
	"redact-backend/internal/shared/server/respond"
	"redact-backend/internal/shared/telemetry"
)

// proxy builds the app on the first invocation and reuses it for the life of
// the execution environment.
type proxy struct {
	load func() config.Config

	once    sync.Once
	err     error
	adapter *ginadapter.GinLambdaV2
}

func (p *proxy) init() {
	app, err := bootstrap.Build(p.load())
	if err != nil {
		p.err = err
		telemetry.Error("lambda_http.bootstrap_failed", map[string]any{"error": err.Error()})
		return
	}
	p.adapter = ginadapter.NewV2(app.Router)
}

func (p *proxy) handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	p.once.Do(p.init)
	if p.err != nil {
		return errorResponse(http.StatusServiceUnavailable, "service_unavailable", "service is starting up"), nil
	}
	return p.adapter.ProxyWithContext(ctx, req)
}

func errorResponse(status int, code, message string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.NewError(code, message, ""))
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func main() {
	p := &proxy{load: config.Load}
	lambda.Start(p.handle)
}
