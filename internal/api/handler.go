package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vnmchuo/rpc-quorum/internal/auth"
	"github.com/vnmchuo/rpc-quorum/internal/ethrpc"
	"github.com/vnmchuo/rpc-quorum/internal/usage"
	"github.com/vnmchuo/rpc-quorum/internal/worker"
	"github.com/vnmchuo/rpc-quorum/pkg/ratelimit"
)

// RPC is the consensus client surface the handlers depend on.
type RPC interface {
	GetLogs(ctx context.Context, q ethrpc.FilterQuery) ([]ethrpc.LogEntry, error)
	GetBlockByNumber(ctx context.Context, spec ethrpc.BlockSpec) (ethrpc.Block, error)
	GetTransactionReceipt(ctx context.Context, txHash ethrpc.Hash) (*ethrpc.TransactionReceipt, error)
	FeeHistory(ctx context.Context, params ethrpc.FeeHistoryParams) (ethrpc.FeeHistory, error)
	SendRawTransaction(ctx context.Context, rawTxHex string) (ethrpc.Hash, error)
	FinalizedTransactionCount(ctx context.Context, address ethrpc.Address) (ethrpc.Quantity, error)
	LatestTransactionCount(ctx context.Context, address ethrpc.Address) (ethrpc.Quantity, error)
	Network() ethrpc.Network
	Providers() []ethrpc.Provider
}

// ResultCache replays previously agreed answers for immutable queries.
// Implemented by rpccache.Cache.
type ResultCache interface {
	Get(ctx context.Context, key string, v any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

type Handler struct {
	rpc     RPC
	usage   usage.Store
	limiter *ratelimit.Limiter
	cache   ResultCache
	poller  *worker.HeadPoller
	tracer  trace.Tracer
}

func NewHandler(rpc RPC, usageStore usage.Store, limiter *ratelimit.Limiter, cache ResultCache, poller *worker.HeadPoller, tracer trace.Tracer) *Handler {
	return &Handler{
		rpc:     rpc,
		usage:   usageStore,
		limiter: limiter,
		cache:   cache,
		poller:  poller,
		tracer:  tracer,
	}
}

func (h *Handler) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := h.prepare(w, r, "api.get_logs")
	if !ok {
		return
	}

	query, err := parseFilterQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	started := time.Now()
	logs, err := h.rpc.GetLogs(r.Context(), query)
	if err != nil {
		h.writeReductionError(w, err, tenantID, requestID, "eth_getLogs", started)
		return
	}
	h.logQuery(tenantID, requestID, "eth_getLogs", usage.OutcomeOK, len(h.rpc.Providers()), started)

	if logs == nil {
		logs = []ethrpc.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (h *Handler) HandleGetBlock(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := h.prepare(w, r, "api.get_block")
	if !ok {
		return
	}

	spec, byNumber, err := parseBlockSpec(chi.URLParam(r, "spec"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// Blocks fetched by number are immutable once finalized; replay a
	// previously agreed answer when we have one.
	cacheKey := fmt.Sprintf("block:%s:%s", h.rpc.Network(), spec)
	if byNumber {
		var cached ethrpc.Block
		if hit, err := h.cache.Get(r.Context(), cacheKey, &cached); err == nil && hit {
			writeJSON(w, http.StatusOK, map[string]any{"block": cached, "cached": true})
			return
		}
	}

	started := time.Now()
	block, err := h.rpc.GetBlockByNumber(r.Context(), spec)
	if err != nil {
		h.writeReductionError(w, err, tenantID, requestID, "eth_getBlockByNumber", started)
		return
	}
	h.logQuery(tenantID, requestID, "eth_getBlockByNumber", usage.OutcomeOK, len(h.rpc.Providers()), started)

	if byNumber {
		_ = h.cache.Set(r.Context(), cacheKey, block)
	}
	writeJSON(w, http.StatusOK, map[string]any{"block": block})
}

func (h *Handler) HandleGetReceipt(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := h.prepare(w, r, "api.get_receipt")
	if !ok {
		return
	}

	txHash := ethrpc.Hash(chi.URLParam(r, "hash"))
	if !strings.HasPrefix(string(txHash), "0x") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "transaction hash must be 0x-prefixed"})
		return
	}

	cacheKey := fmt.Sprintf("receipt:%s:%s", h.rpc.Network(), txHash)
	var cached ethrpc.TransactionReceipt
	if hit, err := h.cache.Get(r.Context(), cacheKey, &cached); err == nil && hit {
		writeJSON(w, http.StatusOK, map[string]any{"receipt": cached, "cached": true})
		return
	}

	started := time.Now()
	receipt, err := h.rpc.GetTransactionReceipt(r.Context(), txHash)
	if err != nil {
		h.writeReductionError(w, err, tenantID, requestID, "eth_getTransactionReceipt", started)
		return
	}
	h.logQuery(tenantID, requestID, "eth_getTransactionReceipt", usage.OutcomeOK, len(h.rpc.Providers()), started)

	if receipt == nil {
		// Every provider agrees the transaction is not mined yet.
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "transaction not found"})
		return
	}
	_ = h.cache.Set(r.Context(), cacheKey, receipt)
	writeJSON(w, http.StatusOK, map[string]any{"receipt": receipt})
}

func (h *Handler) HandleFeeHistory(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := h.prepare(w, r, "api.fee_history")
	if !ok {
		return
	}

	params, err := parseFeeHistoryParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	started := time.Now()
	history, err := h.rpc.FeeHistory(r.Context(), params)
	if err != nil {
		h.writeReductionError(w, err, tenantID, requestID, "eth_feeHistory", started)
		return
	}
	h.logQuery(tenantID, requestID, "eth_feeHistory", usage.OutcomeOK, len(h.rpc.Providers()), started)

	writeJSON(w, http.StatusOK, map[string]any{"fee_history": history})
}

func (h *Handler) HandleSendTransaction(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := h.prepare(w, r, "api.send_transaction")
	if !ok {
		return
	}

	var body struct {
		Raw string `json:"raw"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: want {\"raw\": \"0x...\"}"})
		return
	}

	started := time.Now()
	txHash, err := h.rpc.SendRawTransaction(r.Context(), body.Raw)
	if err != nil {
		h.writeReductionError(w, err, tenantID, requestID, "eth_sendRawTransaction", started)
		return
	}
	h.logQuery(tenantID, requestID, "eth_sendRawTransaction", usage.OutcomeOK, 1, started)

	writeJSON(w, http.StatusOK, map[string]any{"transaction_hash": txHash})
}

func (h *Handler) HandleGetNonce(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := h.prepare(w, r, "api.get_nonce")
	if !ok {
		return
	}

	address := ethrpc.Address(chi.URLParam(r, "address"))
	if !strings.HasPrefix(string(address), "0x") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address must be 0x-prefixed"})
		return
	}

	block := r.URL.Query().Get("block")
	if block == "" {
		block = "finalized"
	}

	started := time.Now()
	var nonce ethrpc.Quantity
	var err error
	switch block {
	case "finalized":
		nonce, err = h.rpc.FinalizedTransactionCount(r.Context(), address)
	case "latest":
		nonce, err = h.rpc.LatestTransactionCount(r.Context(), address)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "block must be \"finalized\" or \"latest\""})
		return
	}
	if err != nil {
		h.writeReductionError(w, err, tenantID, requestID, "eth_getTransactionCount", started)
		return
	}
	h.logQuery(tenantID, requestID, "eth_getTransactionCount", usage.OutcomeOK, len(h.rpc.Providers()), started)

	writeJSON(w, http.StatusOK, map[string]any{"address": address, "block": block, "nonce": nonce})
}

func (h *Handler) HandleHead(w http.ResponseWriter, r *http.Request) {
	head, seen := h.poller.Snapshot()
	if !seen {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no agreed head observed yet"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"head": head, "network": h.rpc.Network()})
}

func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := auth.GetTenantID(ctx)
	if tenantID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	now := time.Now()
	from := now.AddDate(0, 0, -30) // Default: last 30 days
	to := now

	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		var err error
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid 'from' date format (use RFC3339)"})
			return
		}
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		var err error
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid 'to' date format (use RFC3339)"})
			return
		}
	}

	logs, err := h.usage.GetQueriesByTenant(ctx, tenantID, from, to)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	disagreements, err := h.usage.CountDisagreementsByTenant(ctx, tenantID, from, to)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id":     tenantID,
		"total_queries": len(logs),
		"disagreements": disagreements,
		"logs":          logs,
		"from":          from,
		"to":            to,
	})
}

// prepare authenticates, rate-limits and traces a request. On failure
// it has already written the response.
func (h *Handler) prepare(w http.ResponseWriter, r *http.Request, spanName string) (tenantID, requestID string, ok bool) {
	ctx := r.Context()
	tenantID = auth.GetTenantID(ctx)
	if tenantID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return "", "", false
	}

	requestID = auth.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	_, span := h.tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("request_id", requestID),
		attribute.String("network", string(h.rpc.Network())),
	)

	allowed, err := h.limiter.Allow(ctx, tenantID)
	if err != nil || !allowed {
		w.Header().Set("Retry-After", "60s")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error":       "rate limit exceeded",
			"retry_after": "60s",
		})
		return "", "", false
	}

	return tenantID, requestID, true
}

func (h *Handler) logQuery(tenantID, requestID, method, outcome string, okCount int, started time.Time) {
	go func() {
		_ = h.usage.LogQuery(context.Background(), &usage.QueryLog{
			TenantID:  tenantID,
			RequestID: requestID,
			Method:    method,
			Network:   string(h.rpc.Network()),
			Providers: len(h.rpc.Providers()),
			OKCount:   okCount,
			Outcome:   outcome,
			LatencyMs: time.Since(started).Milliseconds(),
		})
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseBlockSpec(raw string) (spec ethrpc.BlockSpec, byNumber bool, err error) {
	switch raw {
	case "latest", "finalized", "safe":
		return ethrpc.BlockByTag(raw), false, nil
	case "":
		return ethrpc.BlockSpec{}, false, errors.New("block spec is required")
	}
	n, err := parseBlockNumber(raw)
	if err != nil {
		return ethrpc.BlockSpec{}, false, err
	}
	return ethrpc.BlockByNumber(n), true, nil
}

func parseBlockNumber(raw string) (ethrpc.Quantity, error) {
	base := 10
	digits := raw
	if strings.HasPrefix(raw, "0x") {
		base = 16
		digits = raw[2:]
	}
	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid block number %q", raw)
	}
	return ethrpc.Quantity(n), nil
}

func parseFilterQuery(r *http.Request) (ethrpc.FilterQuery, error) {
	q := r.URL.Query()

	from, err := parseBlockNumber(q.Get("fromBlock"))
	if err != nil {
		return ethrpc.FilterQuery{}, fmt.Errorf("fromBlock: %w", err)
	}
	to, err := parseBlockNumber(q.Get("toBlock"))
	if err != nil {
		return ethrpc.FilterQuery{}, fmt.Errorf("toBlock: %w", err)
	}

	query := ethrpc.FilterQuery{
		FromBlock: ethrpc.BlockByNumber(from),
		ToBlock:   ethrpc.BlockByNumber(to),
	}
	for _, addr := range strings.Split(q.Get("address"), ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			query.Addresses = append(query.Addresses, ethrpc.Address(addr))
		}
	}
	if len(query.Addresses) == 0 {
		return ethrpc.FilterQuery{}, errors.New("at least one address is required")
	}
	if topic := q.Get("topic0"); topic != "" {
		query.Topics = [][]ethrpc.Hash{{ethrpc.Hash(topic)}}
	}
	return query, nil
}

func parseFeeHistoryParams(r *http.Request) (ethrpc.FeeHistoryParams, error) {
	q := r.URL.Query()

	blockCount := ethrpc.Quantity(5)
	if raw := q.Get("blocks"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 16)
		if err != nil || n == 0 {
			return ethrpc.FeeHistoryParams{}, fmt.Errorf("invalid blocks %q", raw)
		}
		blockCount = ethrpc.Quantity(n)
	}

	percentiles := []float64{50}
	if raw := q.Get("percentiles"); raw != "" {
		percentiles = percentiles[:0]
		for _, p := range strings.Split(raw, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil || v < 0 || v > 100 {
				return ethrpc.FeeHistoryParams{}, fmt.Errorf("invalid percentile %q", p)
			}
			percentiles = append(percentiles, v)
		}
	}

	return ethrpc.FeeHistoryParams{
		BlockCount:        blockCount,
		HighestBlock:      ethrpc.BlockByTag("latest"),
		RewardPercentiles: percentiles,
	}, nil
}
