package ethrpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type staticEndpoints map[Provider]Endpoint

func (s staticEndpoints) Endpoint(p Provider) (Endpoint, error) {
	endpoint, ok := s[p]
	if !ok {
		return Endpoint{}, &ProviderError{Provider: p, Message: "no endpoint configured"}
	}
	return endpoint, nil
}

func TestCall_OK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("malformed request body: %v", err)
		}
		if req["method"] != "eth_getBlockByNumber" {
			t.Errorf("unexpected method %v", req["method"])
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  map[string]string{"number": "0x10", "hash": "0xabc"},
		})
	}))
	defer server.Close()

	tr := NewHTTPTransport(staticEndpoints{"p1": {URL: server.URL}}, nil)
	block, err := Call[Block](context.Background(), tr, "p1", "eth_getBlockByNumber", []any{"latest", false}, 1024)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if block.Number != 16 || block.Hash != "0xabc" {
		t.Errorf("unexpected block: %+v", block)
	}
}

func TestCall_JSONRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"header not found"}}`))
	}))
	defer server.Close()

	tr := NewHTTPTransport(staticEndpoints{"p1": {URL: server.URL}}, nil)
	_, err := Call[Block](context.Background(), tr, "p1", "eth_getBlockByNumber", []any{"latest", false}, 1024)

	var jsonRPC *JSONRPCError
	if !errors.As(err, &jsonRPC) {
		t.Fatalf("expected JSONRPCError, got %v", err)
	}
	if jsonRPC.Code != -32000 || jsonRPC.Message != "header not found" {
		t.Errorf("unexpected error: %v", jsonRPC)
	}
}

func TestCall_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	tr := NewHTTPTransport(staticEndpoints{"p1": {URL: server.URL}}, nil)
	_, err := Call[Block](context.Background(), tr, "p1", "eth_getBlockByNumber", []any{"latest", false}, 1024)

	var outcall *HTTPOutcallError
	if !errors.As(err, &outcall) {
		t.Fatalf("expected HTTPOutcallError, got %v", err)
	}
	if outcall.Status != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", outcall.Status)
	}
}

func TestCall_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	tr := NewHTTPTransport(staticEndpoints{"p1": {URL: server.URL}}, nil)
	_, err := Call[Block](context.Background(), tr, "p1", "eth_getBlockByNumber", []any{"latest", false}, 1024)

	var outcall *HTTPOutcallError
	if !errors.As(err, &outcall) {
		t.Fatalf("expected HTTPOutcallError, got %v", err)
	}
}

func TestCall_UnknownProvider(t *testing.T) {
	tr := NewHTTPTransport(staticEndpoints{}, nil)
	_, err := Call[Block](context.Background(), tr, "ghost", "eth_getBlockByNumber", []any{"latest", false}, 1024)

	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if providerErr.Provider != "ghost" {
		t.Errorf("unexpected provider: %v", providerErr.Provider)
	}
}

func TestCall_ResponseExceedsSizeBudget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"` + strings.Repeat("a", 4096) + `"}`))
	}))
	defer server.Close()

	tr := NewHTTPTransport(staticEndpoints{"p1": {URL: server.URL}}, nil)
	_, err := Call[string](context.Background(), tr, "p1", "eth_chainId", []any{}, 50)

	var outcall *HTTPOutcallError
	if !errors.As(err, &outcall) {
		t.Fatalf("expected HTTPOutcallError, got %v", err)
	}
	if !strings.Contains(outcall.Message, "size budget") {
		t.Errorf("unexpected message: %v", outcall.Message)
	}
}

func TestCall_CircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	tr := NewHTTPTransport(staticEndpoints{"p1": {URL: server.URL}}, nil)
	for i := 0; i < 3; i++ {
		_, err := Call[string](context.Background(), tr, "p1", "eth_chainId", []any{}, 64)
		var outcall *HTTPOutcallError
		if !errors.As(err, &outcall) || outcall.Status != http.StatusInternalServerError {
			t.Fatalf("call %d: expected a 500 outcall error, got %v", i, err)
		}
	}

	// Breaker is open now: the failure is still an outcall error, but
	// the backend is no longer contacted.
	_, err := Call[string](context.Background(), tr, "p1", "eth_chainId", []any{}, 64)
	var outcall *HTTPOutcallError
	if !errors.As(err, &outcall) {
		t.Fatalf("expected HTTPOutcallError, got %v", err)
	}
	if !strings.Contains(outcall.Message, "circuit breaker") {
		t.Errorf("expected a circuit breaker rejection, got %v", outcall.Message)
	}
}
