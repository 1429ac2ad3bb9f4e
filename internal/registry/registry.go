// Package registry owns the configured set of RPC providers: which
// identities exist, which network each belongs to, and how an identity
// resolves to a callable endpoint. The per-network lists are ordered,
// deduplicated and guaranteed non-empty.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vnmchuo/rpc-quorum/internal/ethrpc"
)

type Registry struct {
	mu        sync.RWMutex
	networks  map[ethrpc.Network][]ethrpc.Provider
	endpoints map[ethrpc.Provider]ethrpc.Endpoint
}

// Default returns a registry preloaded with the built-in public
// providers for each supported network.
func Default() *Registry {
	r := &Registry{
		networks:  make(map[ethrpc.Network][]ethrpc.Provider),
		endpoints: make(map[ethrpc.Provider]ethrpc.Endpoint),
	}
	r.mustRegister(ethrpc.NetworkMainnet, "ankr", ethrpc.Endpoint{URL: "https://rpc.ankr.com/eth"})
	r.mustRegister(ethrpc.NetworkMainnet, "llama-nodes", ethrpc.Endpoint{URL: "https://eth.llamarpc.com"})
	r.mustRegister(ethrpc.NetworkMainnet, "public-node", ethrpc.Endpoint{URL: "https://ethereum-rpc.publicnode.com"})
	r.mustRegister(ethrpc.NetworkSepolia, "ankr-sepolia", ethrpc.Endpoint{URL: "https://rpc.ankr.com/eth_sepolia"})
	r.mustRegister(ethrpc.NetworkSepolia, "public-node-sepolia", ethrpc.Endpoint{URL: "https://ethereum-sepolia-rpc.publicnode.com"})
	return r
}

// Register binds a provider identity to a network and an endpoint. A
// known identity keeps its network and gets the new endpoint; binding
// an identity to a second network is an error.
func (r *Registry) Register(network ethrpc.Network, p ethrpc.Provider, endpoint ethrpc.Endpoint) error {
	if p == "" {
		return fmt.Errorf("provider name is required")
	}
	if endpoint.URL == "" {
		return fmt.Errorf("provider %q: endpoint URL is required", p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for n, providers := range r.networks {
		for _, existing := range providers {
			if existing == p && n != network {
				return fmt.Errorf("provider %q already registered on network %q", p, n)
			}
		}
	}
	if _, known := r.endpoints[p]; !known {
		providers := append(r.networks[network], p)
		sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
		r.networks[network] = providers
	}
	r.endpoints[p] = endpoint
	return nil
}

func (r *Registry) mustRegister(network ethrpc.Network, p ethrpc.Provider, endpoint ethrpc.Endpoint) {
	if err := r.Register(network, p, endpoint); err != nil {
		panic(fmt.Sprintf("BUG: built-in provider registration failed: %v", err))
	}
}

// Providers returns the ordered provider list for a network.
func (r *Registry) Providers(network ethrpc.Network) ([]ethrpc.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := r.networks[network]
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers configured for network %q", network)
	}
	out := make([]ethrpc.Provider, len(providers))
	copy(out, providers)
	return out, nil
}

// Endpoint implements ethrpc.EndpointSource.
func (r *Registry) Endpoint(p ethrpc.Provider) (ethrpc.Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	endpoint, ok := r.endpoints[p]
	if !ok {
		return ethrpc.Endpoint{}, &ethrpc.ProviderError{Provider: p, Message: "no endpoint configured"}
	}
	return endpoint, nil
}
