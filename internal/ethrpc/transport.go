package ethrpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// ResponseSizeEstimate is an advisory hint of the expected response
// size in bytes. The transport uses it to size its read budget; it
// carries no correctness semantics.
type ResponseSizeEstimate uint64

// Headroom leaves room for responses that are somewhat larger than the
// caller's estimate without letting a single provider stream unbounded
// data.
func (e ResponseSizeEstimate) Headroom() int64 {
	return int64(e) * 2
}

// Endpoint is a resolved, callable provider endpoint.
type Endpoint struct {
	URL     string
	Headers map[string]string
}

// Transport performs one outbound call to one named provider. It owns
// any timeout policy; time bounds surface as *HTTPOutcallError. It does
// no retrying, caching or pooling beyond what net/http provides.
type Transport interface {
	// ResolveEndpoint maps a provider identity to a callable endpoint.
	// Pure and local; failure is a *ProviderError.
	ResolveEndpoint(p Provider) (Endpoint, error)

	// Call performs one round trip, POSTing body to the provider and
	// returning the raw response bytes. Failures are *ProviderError or
	// *HTTPOutcallError.
	Call(ctx context.Context, p Provider, body []byte, sizeHint ResponseSizeEstimate) ([]byte, error)
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *JSONRPCError   `json:"error"`
}

// Call issues one JSON-RPC query to one provider through the given
// transport and decodes the result into T. Remote protocol errors come
// back as *JSONRPCError, transport faults as *HTTPOutcallError, and
// resolution defects as *ProviderError.
func Call[T any](ctx context.Context, tr Transport, p Provider, method string, params any, sizeHint ResponseSizeEstimate) (T, error) {
	var zero T

	body, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return zero, &HTTPOutcallError{Message: fmt.Sprintf("encode %s request: %v", method, err)}
	}

	raw, err := tr.Call(ctx, p, body, sizeHint)
	if err != nil {
		return zero, err
	}

	var resp jsonRPCResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return zero, &HTTPOutcallError{Message: fmt.Sprintf("malformed json-rpc response: %v", err)}
	}
	if resp.Error != nil {
		return zero, resp.Error
	}
	if len(resp.Result) == 0 {
		return zero, &HTTPOutcallError{Message: "json-rpc response carries neither result nor error"}
	}

	var result T
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return zero, &HTTPOutcallError{Message: fmt.Sprintf("decode %s result: %v", method, err)}
	}
	return result, nil
}
