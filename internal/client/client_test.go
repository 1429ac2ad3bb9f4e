package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/vnmchuo/rpc-quorum/internal/ethrpc"
	"github.com/vnmchuo/rpc-quorum/internal/multicall"
)

// fakeTransport scripts one canned response per provider and counts how
// often each provider was contacted.
type fakeTransport struct {
	mu        sync.Mutex
	responses map[ethrpc.Provider]fakeResponse
	calls     map[ethrpc.Provider]int
}

type fakeResponse struct {
	result any
	err    error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		responses: make(map[ethrpc.Provider]fakeResponse),
		calls:     make(map[ethrpc.Provider]int),
	}
}

func (f *fakeTransport) respondWith(p ethrpc.Provider, result any) {
	f.responses[p] = fakeResponse{result: result}
}

func (f *fakeTransport) failWith(p ethrpc.Provider, err error) {
	f.responses[p] = fakeResponse{err: err}
}

func (f *fakeTransport) ResolveEndpoint(p ethrpc.Provider) (ethrpc.Endpoint, error) {
	return ethrpc.Endpoint{URL: "https://" + p.String() + ".test"}, nil
}

func (f *fakeTransport) Call(ctx context.Context, p ethrpc.Provider, body []byte, sizeHint ethrpc.ResponseSizeEstimate) ([]byte, error) {
	f.mu.Lock()
	f.calls[p]++
	resp, ok := f.responses[p]
	f.mu.Unlock()
	if !ok {
		return nil, &ethrpc.ProviderError{Provider: p, Message: "no scripted response"}
	}
	if resp.err != nil {
		// JSON-RPC errors travel inside a 200 response body.
		var jsonRPC *ethrpc.JSONRPCError
		if errors.As(resp.err, &jsonRPC) {
			return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"error":{"code":%d,"message":%q}}`, jsonRPC.Code, jsonRPC.Message)), nil
		}
		return nil, resp.err
	}
	result, err := json.Marshal(resp.result)
	if err != nil {
		return nil, err
	}
	return []byte(`{"jsonrpc":"2.0","id":1,"result":` + string(result) + `}`), nil
}

func (f *fakeTransport) callCount(p ethrpc.Provider) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[p]
}

type staticProviders []ethrpc.Provider

func (s staticProviders) Providers(network ethrpc.Network) ([]ethrpc.Provider, error) {
	if len(s) == 0 {
		return nil, errors.New("no providers for network " + string(network))
	}
	return s, nil
}

func newTestClient(t *testing.T, tr ethrpc.Transport, providers ...ethrpc.Provider) *Client {
	t.Helper()
	c, err := New(ethrpc.NetworkMainnet, staticProviders(providers), tr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_NoProviders(t *testing.T) {
	if _, err := New(ethrpc.NetworkMainnet, staticProviders(nil), newFakeTransport()); err == nil {
		t.Fatal("expected error for empty provider set")
	}
}

func TestNew_WithProvidersOverride(t *testing.T) {
	c, err := New(ethrpc.NetworkMainnet, staticProviders{"a", "b", "c"}, newFakeTransport(),
		WithProviders([]ethrpc.Provider{"b"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := c.Providers()
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("unexpected providers: %v", got)
	}
}

func TestSendRawTransaction_SkipsFailingProvider(t *testing.T) {
	tr := newFakeTransport()
	tr.failWith("p1", &ethrpc.JSONRPCError{Code: -32010, Message: "already known"})
	tr.respondWith("p2", ethrpc.Hash("0xdead"))
	tr.respondWith("p3", ethrpc.Hash("0xbeef"))

	c := newTestClient(t, tr, "p1", "p2", "p3")
	hash, err := c.SendRawTransaction(context.Background(), "0x02f8...")
	if err != nil {
		t.Fatalf("SendRawTransaction: %v", err)
	}
	if hash != "0xdead" {
		t.Errorf("expected p2's answer, got %v", hash)
	}
	if tr.callCount("p3") != 0 {
		t.Error("p3 was contacted after a provider already answered")
	}
}

func TestSendRawTransaction_AllFail_LastErrorWins(t *testing.T) {
	tr := newFakeTransport()
	tr.failWith("p1", &ethrpc.HTTPOutcallError{Status: 503, Message: "p1 down"})
	tr.failWith("p2", &ethrpc.JSONRPCError{Code: -32000, Message: "p2 rejected"})

	c := newTestClient(t, tr, "p1", "p2")
	_, err := c.SendRawTransaction(context.Background(), "0x02f8...")
	if err == nil {
		t.Fatal("expected error when every provider fails")
	}
	var jsonRPC *ethrpc.JSONRPCError
	if !errors.As(err, &jsonRPC) || jsonRPC.Message != "p2 rejected" {
		t.Errorf("expected the last provider's error, got %v", err)
	}
}

func TestGetTransactionCount_CollectsAllProviders(t *testing.T) {
	tr := newFakeTransport()
	tr.respondWith("p1", ethrpc.Quantity(9))
	tr.respondWith("p2", ethrpc.Quantity(5))
	tr.respondWith("p3", ethrpc.Quantity(7))

	c := newTestClient(t, tr, "p3", "p1", "p2")
	results := c.GetTransactionCount(context.Background(), "0xaddr", ethrpc.BlockByTag("latest"))
	if results.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", results.Len())
	}
	// Aggregate ordering follows provider identity, not dispatch order.
	entries := results.Entries()
	wantOrder := []ethrpc.Provider{"p1", "p2", "p3"}
	for i, want := range wantOrder {
		if entries[i].Provider != want {
			t.Errorf("entry %d: expected %v, got %v", i, want, entries[i].Provider)
		}
	}
	for _, p := range wantOrder {
		if tr.callCount(p) != 1 {
			t.Errorf("provider %v contacted %d times", p, tr.callCount(p))
		}
	}
}

func TestLatestTransactionCount_TakesMinimum(t *testing.T) {
	tr := newFakeTransport()
	tr.respondWith("p1", ethrpc.Quantity(9))
	tr.respondWith("p2", ethrpc.Quantity(5))
	tr.respondWith("p3", ethrpc.Quantity(7))

	c := newTestClient(t, tr, "p1", "p2", "p3")
	nonce, err := c.LatestTransactionCount(context.Background(), "0xaddr")
	if err != nil {
		t.Fatalf("LatestTransactionCount: %v", err)
	}
	if nonce != 5 {
		t.Errorf("expected minimum nonce 5, got %d", nonce)
	}
}

func TestFinalizedTransactionCount_DisagreementSurfaces(t *testing.T) {
	tr := newFakeTransport()
	tr.respondWith("p1", ethrpc.Quantity(5))
	tr.respondWith("p2", ethrpc.Quantity(6))

	c := newTestClient(t, tr, "p1", "p2")
	_, err := c.FinalizedTransactionCount(context.Background(), "0xaddr")

	var inconsistency multicall.Inconsistency
	if !errors.As(err, &inconsistency) {
		t.Fatalf("expected an inconsistency, got %v", err)
	}
	if got := len(inconsistency.Evidence()); got != 2 {
		t.Errorf("expected 2 evidence entries, got %d", got)
	}
}

func TestGetBlockByNumber_Unanimous(t *testing.T) {
	block := ethrpc.Block{Number: 100, Hash: "0xaaa", ParentHash: "0x999", Timestamp: 1700000000, BaseFeePerGas: 12}
	tr := newFakeTransport()
	tr.respondWith("p1", block)
	tr.respondWith("p2", block)

	c := newTestClient(t, tr, "p1", "p2")
	got, err := c.GetBlockByNumber(context.Background(), ethrpc.BlockByNumber(100))
	if err != nil {
		t.Fatalf("GetBlockByNumber: %v", err)
	}
	if got != block {
		t.Errorf("unexpected block: %+v", got)
	}
}

func TestGetTransactionReceipt_AgreedNil(t *testing.T) {
	tr := newFakeTransport()
	tr.respondWith("p1", (*ethrpc.TransactionReceipt)(nil))
	tr.respondWith("p2", (*ethrpc.TransactionReceipt)(nil))

	c := newTestClient(t, tr, "p1", "p2")
	receipt, err := c.GetTransactionReceipt(context.Background(), "0xtx")
	if err != nil {
		t.Fatalf("GetTransactionReceipt: %v", err)
	}
	if receipt != nil {
		t.Errorf("expected agreed-nil receipt, got %+v", receipt)
	}
}

func TestFeeHistory_StrictMajority(t *testing.T) {
	agreed := ethrpc.FeeHistory{OldestBlock: 90, BaseFeePerGas: []ethrpc.Quantity{10, 11}, GasUsedRatio: []float64{0.5, 0.6}}
	lagging := ethrpc.FeeHistory{OldestBlock: 89, BaseFeePerGas: []ethrpc.Quantity{9, 10}, GasUsedRatio: []float64{0.4, 0.5}}

	tr := newFakeTransport()
	tr.respondWith("p1", agreed)
	tr.respondWith("p2", lagging)
	tr.respondWith("p3", agreed)

	c := newTestClient(t, tr, "p1", "p2", "p3")
	got, err := c.FeeHistory(context.Background(), ethrpc.FeeHistoryParams{
		BlockCount:        2,
		HighestBlock:      ethrpc.BlockByTag("latest"),
		RewardPercentiles: []float64{50},
	})
	if err != nil {
		t.Fatalf("FeeHistory: %v", err)
	}
	if !got.Equal(agreed) {
		t.Errorf("expected the majority window, got %+v", got)
	}
}
