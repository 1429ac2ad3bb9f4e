package ethrpc

// Network identifies the chain deployment a provider belongs to.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkSepolia Network = "sepolia"
)

// Provider is the opaque identity of one independently operated RPC
// endpoint. Providers are totally ordered by their string value so that
// aggregates iterate deterministically regardless of response arrival
// order.
type Provider string

func (p Provider) String() string {
	return string(p)
}
