package usage

import (
	"context"
	"time"
)

// Outcome classifies how a cross-checked query ended.
const (
	OutcomeOK           = "ok"
	OutcomeConsistent   = "consistent_error"
	OutcomeInconsistent = "inconsistent"
)

// QueryLog is one accounting row per gateway query: which method was
// asked, how many providers answered usably, and how the reduction
// ended.
type QueryLog struct {
	ID        string
	TenantID  string
	RequestID string
	Method    string
	Network   string
	Providers int
	OKCount   int
	Outcome   string
	LatencyMs int64
	CreatedAt time.Time
}

type Store interface {
	LogQuery(ctx context.Context, log *QueryLog) error
	GetQueriesByTenant(ctx context.Context, tenantID string, from, to time.Time) ([]*QueryLog, error)
	CountDisagreementsByTenant(ctx context.Context, tenantID string, from, to time.Time) (int64, error)
}
