package registry

import (
	"errors"
	"sort"
	"testing"

	"github.com/vnmchuo/rpc-quorum/internal/ethrpc"
)

func TestDefault_NetworksPopulated(t *testing.T) {
	r := Default()

	for _, network := range []ethrpc.Network{ethrpc.NetworkMainnet, ethrpc.NetworkSepolia} {
		providers, err := r.Providers(network)
		if err != nil {
			t.Fatalf("Providers(%s): %v", network, err)
		}
		if len(providers) < 2 {
			t.Errorf("network %s needs at least two providers for cross-checking, got %d", network, len(providers))
		}
		if !sort.SliceIsSorted(providers, func(i, j int) bool { return providers[i] < providers[j] }) {
			t.Errorf("network %s providers not sorted: %v", network, providers)
		}
		for _, p := range providers {
			endpoint, err := r.Endpoint(p)
			if err != nil {
				t.Errorf("Endpoint(%s): %v", p, err)
			}
			if endpoint.URL == "" {
				t.Errorf("provider %s has no URL", p)
			}
		}
	}
}

func TestRegister_Validation(t *testing.T) {
	r := Default()

	if err := r.Register(ethrpc.NetworkMainnet, "", ethrpc.Endpoint{URL: "https://x"}); err == nil {
		t.Error("expected error for empty provider name")
	}
	if err := r.Register(ethrpc.NetworkMainnet, "x", ethrpc.Endpoint{}); err == nil {
		t.Error("expected error for empty endpoint URL")
	}
}

func TestRegister_UpdatesEndpointKeepsNetwork(t *testing.T) {
	r := Default()

	if err := r.Register(ethrpc.NetworkMainnet, "ankr", ethrpc.Endpoint{URL: "https://rpc.example/eth"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	endpoint, err := r.Endpoint("ankr")
	if err != nil {
		t.Fatalf("Endpoint: %v", err)
	}
	if endpoint.URL != "https://rpc.example/eth" {
		t.Errorf("endpoint not updated: %v", endpoint.URL)
	}

	before, _ := r.Providers(ethrpc.NetworkMainnet)
	if err := r.Register(ethrpc.NetworkMainnet, "ankr", ethrpc.Endpoint{URL: "https://rpc.example/eth2"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	after, _ := r.Providers(ethrpc.NetworkMainnet)
	if len(before) != len(after) {
		t.Errorf("re-registering a known provider changed the list: %v -> %v", before, after)
	}
}

func TestRegister_CrossNetworkRebindRejected(t *testing.T) {
	r := Default()

	err := r.Register(ethrpc.NetworkSepolia, "ankr", ethrpc.Endpoint{URL: "https://rpc.example/sepolia"})
	if err == nil {
		t.Fatal("expected error rebinding a mainnet provider to sepolia")
	}
}

func TestProviders_UnknownNetwork(t *testing.T) {
	r := Default()
	if _, err := r.Providers("hoodi"); err == nil {
		t.Error("expected error for a network with no providers")
	}
}

func TestEndpoint_UnknownProvider(t *testing.T) {
	r := Default()
	_, err := r.Endpoint("ghost")

	var providerErr *ethrpc.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if providerErr.Provider != "ghost" {
		t.Errorf("unexpected provider in error: %v", providerErr.Provider)
	}
}
