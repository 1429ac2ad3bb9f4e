// Package client orchestrates the same logical JSON-RPC query across
// the configured provider set of one network, either sequentially
// (first usable answer wins, single-point-of-failure accepted) or as a
// parallel fan-out whose complete outcome set feeds the multicall
// reductions.
package client

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/vnmchuo/rpc-quorum/internal/ethrpc"
	"github.com/vnmchuo/rpc-quorum/internal/multicall"
)

type Client struct {
	network   ethrpc.Network
	providers []ethrpc.Provider
	transport ethrpc.Transport
	debug     bool
}

type Option func(*Client)

// WithProviders overrides the registry-supplied provider list with an
// explicit subset.
func WithProviders(providers []ethrpc.Provider) Option {
	return func(c *Client) {
		c.providers = providers
	}
}

// WithDebugLogging enables detail-level dispatch logs.
func WithDebugLogging() Option {
	return func(c *Client) {
		c.debug = true
	}
}

// ProviderSource supplies the ordered provider list for a network.
// Implemented by the registry.
type ProviderSource interface {
	Providers(network ethrpc.Network) ([]ethrpc.Provider, error)
}

func New(network ethrpc.Network, source ProviderSource, transport ethrpc.Transport, opts ...Option) (*Client, error) {
	providers, err := source.Providers(network)
	if err != nil {
		return nil, err
	}
	c := &Client{
		network:   network,
		providers: providers,
		transport: transport,
	}
	for _, opt := range opts {
		opt(c)
	}
	if len(c.providers) == 0 {
		return nil, errors.New("client requires at least one provider")
	}
	return c, nil
}

func (c *Client) Network() ethrpc.Network {
	return c.network
}

// Providers returns the ordered provider list the client dispatches to.
func (c *Client) Providers() []ethrpc.Provider {
	out := make([]ethrpc.Provider, len(c.providers))
	copy(out, c.providers)
	return out
}

func (c *Client) debugf(format string, args ...any) {
	if c.debug {
		log.Printf(format, args...)
	}
}

// sequentialCallUntilOK queries providers strictly in list order and
// returns the first usable value without contacting any further
// provider. Every non-success overwrites the running candidate error,
// so if all providers fail, the last error seen is returned. Use only
// for queries where a single honest answer suffices.
func sequentialCallUntilOK[T any](ctx context.Context, c *Client, method string, params any, sizeHint ethrpc.ResponseSizeEstimate) (T, error) {
	var lastErr error
	for _, p := range c.providers {
		c.debugf("[sequential_call] calling provider %s for %s", p, method)
		value, err := ethrpc.Call[T](ctx, c.transport, p, method, params, sizeHint)
		if err == nil {
			return value, nil
		}
		var jsonRPC *ethrpc.JSONRPCError
		if errors.As(err, &jsonRPC) {
			log.Printf("[client] provider %s answered %s with json-rpc error: %v", p, method, err)
		} else {
			log.Printf("[client] provider %s failed on %s: %v", p, method, err)
		}
		lastErr = err
	}
	if lastErr == nil {
		panic("BUG: no providers in rpc client")
	}
	var zero T
	return zero, lastErr
}

// parallelCall dispatches the query to every provider concurrently and
// waits for all of them: no short circuit on first success or failure,
// and no cancellation of in-flight calls, because every downstream
// reduction needs the complete outcome set. The aggregate is ordered
// by provider identity, not completion.
func parallelCall[T any](ctx context.Context, c *Client, method string, params any, sizeHint ethrpc.ResponseSizeEstimate) multicall.Results[T] {
	entries := make([]multicall.Entry[T], len(c.providers))
	var wg sync.WaitGroup
	for i, p := range c.providers {
		c.debugf("[parallel_call] calling provider %s for %s", p, method)
		wg.Add(1)
		go func(i int, p ethrpc.Provider) {
			defer wg.Done()
			value, err := ethrpc.Call[T](ctx, c.transport, p, method, params, sizeHint)
			entries[i] = multicall.Entry[T]{Provider: p, Value: value, Err: err}
		}(i, p)
	}
	wg.Wait()
	return multicall.FromEntries(entries)
}
