package ethrpc

import "testing"

// Consistent directly controls whether provider disagreement is
// surfaced or hidden, so its exact semantics are pinned here.
func TestConsistent(t *testing.T) {
	tests := []struct {
		name string
		a, b error
		want bool
	}{
		{
			name: "same json-rpc code, same message",
			a:    &JSONRPCError{Code: 32000, Message: "execution reverted"},
			b:    &JSONRPCError{Code: 32000, Message: "execution reverted"},
			want: true,
		},
		{
			name: "same json-rpc code, different wording",
			a:    &JSONRPCError{Code: 32000, Message: "reverted"},
			b:    &JSONRPCError{Code: 32000, Message: "execution reverted: out of gas"},
			want: true,
		},
		{
			name: "different json-rpc codes",
			a:    &JSONRPCError{Code: 32000, Message: "x"},
			b:    &JSONRPCError{Code: 32601, Message: "x"},
			want: false,
		},
		{
			name: "same outcall status and message",
			a:    &HTTPOutcallError{Status: 503, Message: "unavailable"},
			b:    &HTTPOutcallError{Status: 503, Message: "unavailable"},
			want: true,
		},
		{
			name: "same outcall status, different message",
			a:    &HTTPOutcallError{Status: 503, Message: "unavailable"},
			b:    &HTTPOutcallError{Status: 503, Message: "overloaded"},
			want: false,
		},
		{
			name: "json-rpc vs outcall",
			a:    &JSONRPCError{Code: 32000, Message: "x"},
			b:    &HTTPOutcallError{Status: 503, Message: "x"},
			want: false,
		},
		{
			name: "provider errors are never mutually consistent",
			a:    &ProviderError{Provider: "a", Message: "no endpoint configured"},
			b:    &ProviderError{Provider: "a", Message: "no endpoint configured"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Consistent(tt.a, tt.b); got != tt.want {
				t.Errorf("Consistent(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := Consistent(tt.b, tt.a); got != tt.want {
				t.Errorf("Consistent(%v, %v) = %v, want %v (must be symmetric)", tt.b, tt.a, got, tt.want)
			}
		})
	}
}
