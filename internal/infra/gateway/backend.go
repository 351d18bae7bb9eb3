// Package gateway implements the resilient client facade for the
// backend orchestration gateway.
//
// This package contains:
//   - Backend interface: transport abstraction over real and mock endpoints
//   - Dispatcher: single logical call with transient-only retry
//   - Classify: pure outcome classification
//   - HealthCache: TTL + single-flight health probe caching
//   - Tracker: debounced background availability polling
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opsgate/console/internal/core/config"
)

// Request describes one logical gateway call. It is constructed fresh
// per call and never mutated after dispatch.
type Request struct {
	Method  string
	Path    string
	Body    any
	Options Options
}

// Options carries the free-form option set attached to a request.
type Options struct {
	Client    string
	Operation string
	TenantID  string
	UserID    string
	RequestID string
	Query     url.Values
}

// Response is the raw transport result of a single attempt.
type Response struct {
	Status      int
	Body        []byte
	ContentType string
}

// Backend issues a single HTTP exchange against an endpoint. The
// dispatcher selects one implementation at startup; call sites never
// learn which is active.
type Backend interface {
	// Name identifies the backend ("gateway" or "mock")
	Name() string

	// RoundTrip performs one attempt and returns status + body, or a
	// transport-level error
	RoundTrip(ctx context.Context, req Request) (*Response, error)
}

// BackendNameMock identifies the test-double backend.
const BackendNameMock = "mock"

// httpBackend talks to an HTTP endpoint. Both the real gateway and the
// test double use it; only the base URL and name differ.
type httpBackend struct {
	name       string
	base       *url.URL
	httpClient *http.Client
}

// NewBackend selects the backend implementation from configuration.
// A malformed base URL is a fatal configuration error.
func NewBackend(cfg config.GatewayConfig) (Backend, error) {
	name, raw := "gateway", cfg.BaseURL
	if cfg.UseMock {
		name, raw = BackendNameMock, cfg.MockURL
	}

	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse backend URL %q: %w", raw, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend URL %q: missing scheme or host", raw)
	}

	return &httpBackend{
		name: name,
		base: base,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Name returns the backend identifier.
func (b *httpBackend) Name() string {
	return b.name
}

// RoundTrip performs one HTTP exchange.
func (b *httpBackend) RoundTrip(ctx context.Context, req Request) (*Response, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		switch v := req.Body.(type) {
		case []byte:
			bodyReader = bytes.NewReader(v)
		case string:
			bodyReader = bytes.NewReader([]byte(v))
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("marshal request body: %w", err)
			}
			bodyReader = bytes.NewReader(encoded)
		}
	}

	u := *b.base
	u.Path = joinPath(b.base.Path, StripQuery(req.Path))
	if len(req.Options.Query) > 0 {
		u.RawQuery = req.Options.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	setCorrelationHeaders(httpReq, req.Options)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{
		Status:      resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func setCorrelationHeaders(req *http.Request, opts Options) {
	if opts.TenantID != "" {
		req.Header.Set("X-Tenant-ID", opts.TenantID)
	}
	if opts.UserID != "" {
		req.Header.Set("X-User-ID", opts.UserID)
	}
	if opts.RequestID != "" {
		req.Header.Set("X-Request-ID", opts.RequestID)
	}
}

func joinPath(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
