// Package worker runs the background head poller: a loop that keeps a
// cross-checked view of the finalized chain head so request handlers
// and health checks can read it without paying a fan-out per lookup.
package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/vnmchuo/rpc-quorum/internal/ethrpc"
	"github.com/vnmchuo/rpc-quorum/internal/multicall"
)

// HeadSource is the consensus query the poller runs each tick.
// Implemented by the rpc client.
type HeadSource interface {
	GetBlockByNumber(ctx context.Context, spec ethrpc.BlockSpec) (ethrpc.Block, error)
}

// Head is the most recent finalized block every provider agreed on.
type Head struct {
	Block      ethrpc.Block `json:"block"`
	ObservedAt time.Time    `json:"observed_at"`
}

type HeadPoller struct {
	source   HeadSource
	interval time.Duration

	mu   sync.RWMutex
	head Head
	seen bool
}

func NewHeadPoller(source HeadSource, interval time.Duration) *HeadPoller {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &HeadPoller{source: source, interval: interval}
}

// Run polls until ctx is cancelled. Each tick asks for the finalized
// block through the consensus client; a disagreement is surfaced in
// the logs and the previous agreed head is kept.
func (p *HeadPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *HeadPoller) poll(ctx context.Context) {
	block, err := p.source.GetBlockByNumber(ctx, ethrpc.BlockByTag("finalized"))
	if err != nil {
		var inconsistent multicall.Inconsistency
		switch {
		case errors.As(err, &inconsistent):
			log.Printf("[head_poller] providers disagree on the finalized head: %v", err)
		case multicall.HasHTTPOutcallErrorMatching(err, func(*ethrpc.HTTPOutcallError) bool { return true }):
			log.Printf("[head_poller] transient transport failure, keeping previous head: %v", err)
		default:
			log.Printf("[head_poller] finalized head query failed: %v", err)
		}
		return
	}

	p.mu.Lock()
	p.head = Head{Block: block, ObservedAt: time.Now()}
	p.seen = true
	p.mu.Unlock()
}

// Snapshot returns the last agreed head; false until the first
// successful poll.
func (p *HeadPoller) Snapshot() (Head, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.head, p.seen
}
