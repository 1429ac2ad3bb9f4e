package ethrpc

import (
	"errors"
	"fmt"
)

// JSONRPCError is an application-level error reported by the remote
// protocol itself: the provider accepted the request, processed it, and
// answered with an error object. It is a meaningful signal about the
// query, not a transport fault.
type JSONRPCError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

// HTTPOutcallError means the transport failed to obtain a well-formed
// protocol response: connection failure, timeout, unexpected HTTP
// status, malformed body, or an open circuit breaker. Status is zero
// when no HTTP response was received at all.
type HTTPOutcallError struct {
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

func (e *HTTPOutcallError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("http outcall failed (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http outcall failed: %s", e.Message)
}

// ProviderError is a local configuration defect: the provider identity
// cannot be resolved to a callable endpoint. It never originates from
// network conditions.
type ProviderError struct {
	Provider Provider `json:"provider"`
	Message  string   `json:"message"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %q: %s", e.Provider, e.Message)
}

// Consistent reports whether two per-provider errors count as "the same
// failure" when deciding if a set of failing providers agrees.
//
// Two errors are consistent iff they are the same variant and:
//   - JSONRPCError: the codes match. Message text is ignored because
//     providers word the same protocol error differently.
//   - HTTPOutcallError: status and message match.
//   - ProviderError: never. Two misconfigured identities are two
//     distinct local defects, not one shared failure.
//
// Anything outside the taxonomy is never consistent, which makes the
// aggregation fail closed on unclassified errors.
func Consistent(a, b error) bool {
	var ja, jb *JSONRPCError
	if errors.As(a, &ja) && errors.As(b, &jb) {
		return ja.Code == jb.Code
	}
	var ha, hb *HTTPOutcallError
	if errors.As(a, &ha) && errors.As(b, &hb) {
		return ha.Status == hb.Status && ha.Message == hb.Message
	}
	return false
}
