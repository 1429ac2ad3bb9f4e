package ethrpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// EndpointSource supplies the endpoint for a configured provider.
// Implemented by the registry.
type EndpointSource interface {
	Endpoint(p Provider) (Endpoint, error)
}

// HTTPTransport is the production Transport: one JSON-RPC POST per
// call, with a per-provider circuit breaker so a flapping endpoint
// fails fast instead of burning the whole request deadline. An open
// breaker surfaces as an *HTTPOutcallError like any other transport
// fault, so aggregation still records an outcome for that provider.
type HTTPTransport struct {
	endpoints EndpointSource
	client    *http.Client

	mu       sync.Mutex
	breakers map[Provider]*gobreaker.CircuitBreaker
}

func NewHTTPTransport(endpoints EndpointSource, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{
		endpoints: endpoints,
		client:    client,
		breakers:  make(map[Provider]*gobreaker.CircuitBreaker),
	}
}

func (t *HTTPTransport) ResolveEndpoint(p Provider) (Endpoint, error) {
	return t.endpoints.Endpoint(p)
}

func (t *HTTPTransport) Call(ctx context.Context, p Provider, body []byte, sizeHint ResponseSizeEstimate) ([]byte, error) {
	endpoint, err := t.ResolveEndpoint(p)
	if err != nil {
		return nil, err
	}

	result, err := t.breaker(p).Execute(func() (interface{}, error) {
		return t.post(ctx, endpoint, body, sizeHint)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &HTTPOutcallError{Message: fmt.Sprintf("circuit breaker rejected call to %s: %v", p, err)}
		}
		var outcall *HTTPOutcallError
		if errors.As(err, &outcall) {
			return nil, outcall
		}
		return nil, &HTTPOutcallError{Message: err.Error()}
	}
	return result.([]byte), nil
}

func (t *HTTPTransport) post(ctx context.Context, endpoint Endpoint, body []byte, sizeHint ResponseSizeEstimate) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &HTTPOutcallError{Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range endpoint.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &HTTPOutcallError{Message: err.Error()}
	}
	defer resp.Body.Close()

	limit := sizeHint.Headroom()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &HTTPOutcallError{Status: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err)}
	}
	if int64(len(raw)) > limit {
		return nil, &HTTPOutcallError{Status: resp.StatusCode, Message: fmt.Sprintf("response exceeds size budget of %d bytes", limit)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPOutcallError{Status: resp.StatusCode, Message: truncate(string(raw), 256)}
	}
	return raw, nil
}

func (t *HTTPTransport) breaker(p Provider) *gobreaker.CircuitBreaker {
	t.mu.Lock()
	defer t.mu.Unlock()

	cb, ok := t.breakers[p]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        p.String(),
			MaxRequests: 3,
			Interval:    5 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		})
		t.breakers[p] = cb
	}
	return cb
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
