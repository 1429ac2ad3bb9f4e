package multicall

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vnmchuo/rpc-quorum/internal/ethrpc"
)

// ConsistentError is the terminal outcome when every provider that
// erred, erred the same way (per ethrpc.Consistent) and no trusted
// value could be produced.
type ConsistentError struct {
	Err error
}

func (e *ConsistentError) Error() string {
	return fmt.Sprintf("providers failed consistently: %v", e.Err)
}

func (e *ConsistentError) Unwrap() error {
	return e.Err
}

// InconsistentResultsError is the terminal outcome when providers
// disagree — by value or by error — in a way the active reduction
// policy refuses to resolve. Results carries the specific conflicting
// entries, not necessarily all providers.
type InconsistentResultsError[T any] struct {
	Results Results[T]
}

func (e *InconsistentResultsError[T]) Error() string {
	var b strings.Builder
	b.WriteString("providers returned inconsistent results:")
	for _, entry := range e.Results.Entries() {
		if entry.Err != nil {
			fmt.Fprintf(&b, " %s=err(%v)", entry.Provider, entry.Err)
		} else {
			fmt.Fprintf(&b, " %s=ok(%v)", entry.Provider, entry.Value)
		}
	}
	return b.String()
}

// EvidenceEntry is one conflicting per-provider outcome with the value
// erased to any, for callers that only render or inspect the conflict.
type EvidenceEntry struct {
	Provider ethrpc.Provider
	Value    any
	Err      error
}

// Evidence implements Inconsistency.
func (e *InconsistentResultsError[T]) Evidence() []EvidenceEntry {
	entries := e.Results.Entries()
	out := make([]EvidenceEntry, len(entries))
	for i, entry := range entries {
		out[i] = EvidenceEntry{Provider: entry.Provider, Err: entry.Err}
		if entry.Err == nil {
			out[i].Value = entry.Value
		}
	}
	return out
}

// Inconsistency is the type-erased view of an InconsistentResultsError,
// usable as an errors.As target without knowing T.
type Inconsistency interface {
	error
	Evidence() []EvidenceEntry
}

// HasHTTPOutcallErrorMatching reports whether the terminal error err
// contains a transport-level failure matching pred, scanning either
// the single consistent error or every entry of an inconsistent
// aggregate. Callers use it to decide whether a failure is retryable
// at a higher level.
func HasHTTPOutcallErrorMatching(err error, pred func(*ethrpc.HTTPOutcallError) bool) bool {
	var consistent *ConsistentError
	if errors.As(err, &consistent) {
		var outcall *ethrpc.HTTPOutcallError
		return errors.As(consistent.Err, &outcall) && pred(outcall)
	}
	var inconsistent Inconsistency
	if errors.As(err, &inconsistent) {
		for _, entry := range inconsistent.Evidence() {
			var outcall *ethrpc.HTTPOutcallError
			if errors.As(entry.Err, &outcall) && pred(outcall) {
				return true
			}
		}
	}
	return false
}
