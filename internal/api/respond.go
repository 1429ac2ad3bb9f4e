package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/vnmchuo/rpc-quorum/internal/ethrpc"
	"github.com/vnmchuo/rpc-quorum/internal/multicall"
	"github.com/vnmchuo/rpc-quorum/internal/usage"
)

// writeReductionError maps a failed consensus query onto HTTP:
// disagreement becomes 409 with the conflicting per-provider evidence,
// everything else (consistent upstream errors, single-provider errors
// from sequential dispatch) becomes 502 with a retryability flag so
// callers can tell a transient network fault from a real refusal.
func (h *Handler) writeReductionError(w http.ResponseWriter, err error, tenantID, requestID, method string, started time.Time) {
	var inconsistent multicall.Inconsistency
	if errors.As(err, &inconsistent) {
		evidence := inconsistent.Evidence()
		okCount := 0
		results := make([]map[string]any, 0, len(evidence))
		for _, e := range evidence {
			entry := map[string]any{"provider": e.Provider}
			if e.Err != nil {
				entry["error"] = e.Err.Error()
			} else {
				entry["value"] = e.Value
				okCount++
			}
			results = append(results, entry)
		}
		h.logQuery(tenantID, requestID, method, usage.OutcomeInconsistent, okCount, started)
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":   "providers returned inconsistent results",
			"results": results,
		})
		return
	}

	retryable := multicall.HasHTTPOutcallErrorMatching(err, func(*ethrpc.HTTPOutcallError) bool { return true })
	var outcall *ethrpc.HTTPOutcallError
	if errors.As(err, &outcall) {
		retryable = true
	}
	h.logQuery(tenantID, requestID, method, usage.OutcomeConsistent, 0, started)
	writeJSON(w, http.StatusBadGateway, map[string]any{
		"error":     err.Error(),
		"retryable": retryable,
	})
}
