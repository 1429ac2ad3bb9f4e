// Package multicall aggregates the outcomes of querying several
// mutually untrusted providers for the same fact and reduces them to
// either a single trusted value or a structured disagreement report.
// It never fabricates agreement: any divergence the active policy
// cannot resolve is escalated to the caller with the exact conflicting
// evidence.
package multicall

import (
	"errors"
	"sort"

	"github.com/vnmchuo/rpc-quorum/internal/ethrpc"
)

// Entry is one provider's outcome for a query: either Value or Err.
type Entry[T any] struct {
	Provider ethrpc.Provider
	Value    T
	Err      error
}

// Results aggregates the responses of different providers to the same
// query. Guaranteed non-empty, always iterated in provider identity
// order regardless of the order responses arrived. Built once per
// query and consumed by exactly one reduction.
type Results[T any] struct {
	entries []Entry[T]
}

// FromEntries builds an aggregate from per-provider outcomes, sorting
// by provider identity and keeping the last outcome when a provider
// appears twice. An empty input is a defect in the caller — the
// provider list is guaranteed non-empty by configuration — so it
// panics rather than returning an error.
func FromEntries[T any](entries []Entry[T]) Results[T] {
	byProvider := make(map[ethrpc.Provider]Entry[T], len(entries))
	for _, e := range entries {
		byProvider[e.Provider] = e
	}
	if len(byProvider) == 0 {
		panic("BUG: multicall results cannot be empty")
	}
	sorted := make([]Entry[T], 0, len(byProvider))
	for _, e := range byProvider {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Provider < sorted[j].Provider
	})
	return Results[T]{entries: sorted}
}

// Entries returns the aggregated outcomes in provider identity order.
func (r Results[T]) Entries() []Entry[T] {
	out := make([]Entry[T], len(r.entries))
	copy(out, r.entries)
	return out
}

func (r Results[T]) Len() int {
	return len(r.entries)
}

// AllOK classifies the aggregate: either every provider produced a
// usable value (returned in provider identity order), or the aggregate
// collapses to a terminal error.
//
// Errors are folded through a single candidate slot: the first error
// seen is held, and each later error is compared against the currently
// held one with ethrpc.Consistent. An inconsistent pair fails
// immediately with an *InconsistentResultsError carrying exactly those
// two entries. A consistent newcomer replaces the held candidate, so
// consistency is checked between adjacent errors only, not pairwise —
// a deliberately non-transitive chain (see the package tests).
func (r Results[T]) AllOK() ([]Entry[T], error) {
	var ok []Entry[T]
	var held *Entry[T]
	for i := range r.entries {
		e := r.entries[i]
		if e.Err == nil {
			ok = append(ok, e)
			continue
		}
		if held == nil {
			held = &e
			continue
		}
		if !ethrpc.Consistent(held.Err, e.Err) {
			return nil, &InconsistentResultsError[T]{
				Results: FromEntries([]Entry[T]{*held, e}),
			}
		}
		held = &e
	}
	if held == nil {
		return ok, nil
	}
	var jsonRPC *ethrpc.JSONRPCError
	if errors.As(held.Err, &jsonRPC) {
		// Normalize: the terminal error carries the protocol error
		// itself, not whatever wrapping the transport added.
		return nil, &ConsistentError{Err: &ethrpc.JSONRPCError{Code: jsonRPC.Code, Message: jsonRPC.Message}}
	}
	return nil, &ConsistentError{Err: held.Err}
}
