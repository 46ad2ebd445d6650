// Package collab holds HTTP clients for the external collaborators the
// pipeline calls: the OCR service and the optional summarizer.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"redact-backend/internal/retry"
)

const (
	defaultTimeout  = 120 * time.Second
	maxResponseSize = 16 << 20
)

// Options configures a collaborator client.
type Options struct {
	Endpoint string
	// TokenURL, ClientID and ClientSecret enable OAuth2 client credentials.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// RequestsPerSec limits outgoing calls; zero disables limiting.
	RequestsPerSec float64
	Timeout        time.Duration
	HTTPClient     *http.Client
}

type client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func newClient(ctx context.Context, name string, opts Options) (*client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%s endpoint is required", name)
	}

	base := opts.HTTPClient
	if base == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		base = &http.Client{Timeout: timeout}
	}

	httpClient := base
	if strings.TrimSpace(opts.TokenURL) != "" {
		cc := clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
			Scopes:       opts.Scopes,
		}
		httpClient = cc.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
		httpClient.Timeout = base.Timeout
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSec > 0 {
		burst := int(opts.RequestsPerSec)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSec), burst)
	}

	return &client{endpoint: endpoint, httpClient: httpClient, limiter: limiter}, nil
}

// post sends body to the endpoint and returns the response payload. 429 and
// 5xx responses and transport failures are marked transient.
func (c *client) post(ctx context.Context, contentType string, body []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, retry.Transient(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, retry.Transient(fmt.Errorf("collaborator request: %w", err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("collaborator response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, retry.Transient(fmt.Errorf("collaborator status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("collaborator status %d: %s", resp.StatusCode, snippet(payload))
	}
	return payload, nil
}

func decode(payload []byte, out any) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("collaborator response parse: %w", err)
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
