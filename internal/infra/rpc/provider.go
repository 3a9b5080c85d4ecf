// Package rpc implements the JSON-RPC HTTP transport to the upstream data
// provider, plus the failure classification and backoff policy the retrieval
// engine drives its retries with.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/MoonletLabs/tempo-analytics/internal/metrics"
)

// Error is a typed upstream failure. It carries enough structure for
// classification without forcing every caller to parse provider prose.
type Error struct {
	HTTPStatus int
	Code       int // JSON-RPC error code, 0 if none
	Message    string
	RetryAfter time.Duration // provider-stated wait, 0 if none
}

func (e *Error) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
	case e.HTTPStatus != 0:
		return fmt.Sprintf("http %d: %s", e.HTTPStatus, e.Message)
	default:
		return e.Message
	}
}

// Provider is the upstream call surface the chain client consumes.
type Provider interface {
	Name() string
	Call(ctx context.Context, method string, params []any) (json.RawMessage, error)
}

// HTTPProvider implements Provider for JSON-RPC over HTTP.
type HTTPProvider struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

// NewHTTPProvider creates a new HTTP-based JSON-RPC provider.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Name returns the configured provider name.
func (p *HTTPProvider) Name() string { return p.name }

// Call makes a single JSON-RPC call and returns the raw result payload.
func (p *HTTPProvider) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	start := time.Now()
	metrics.UpstreamCalls.WithLabelValues(p.name, method).Inc()

	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues(p.name, "network").Inc()
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	metrics.UpstreamLatency.WithLabelValues(p.name, method).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues(p.name, "network").Inc()
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.UpstreamErrors.WithLabelValues(p.name, "rate_limited").Inc()
		return nil, &Error{
			HTTPStatus: resp.StatusCode,
			Message:    string(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamErrors.WithLabelValues(p.name, "http").Inc()
		return nil, &Error{HTTPStatus: resp.StatusCode, Message: string(body)}
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		metrics.UpstreamErrors.WithLabelValues(p.name, "rpc").Inc()
		return nil, &Error{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}

	return rpcResp.Result, nil
}

// parseRetryAfter handles the delay-seconds form of the Retry-After header.
// Date forms are rare on JSON-RPC endpoints and fall back to zero.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
