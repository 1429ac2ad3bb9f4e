package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) Store {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) LogQuery(ctx context.Context, log *QueryLog) error {
	query := `
		INSERT INTO query_logs (tenant_id, request_id, method, network, providers, ok_count, outcome, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := s.db.QueryRow(ctx, query,
		log.TenantID, log.RequestID, log.Method, log.Network,
		log.Providers, log.OKCount, log.Outcome, log.LatencyMs,
	).Scan(&log.ID, &log.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to log query: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetQueriesByTenant(ctx context.Context, tenantID string, from, to time.Time) ([]*QueryLog, error) {
	query := `
		SELECT id, tenant_id, request_id, method, network, providers, ok_count, outcome, latency_ms, created_at
		FROM query_logs
		WHERE tenant_id = $1 AND created_at BETWEEN $2 AND $3
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage logs: %w", err)
	}
	defer rows.Close()

	var logs []*QueryLog
	for rows.Next() {
		var l QueryLog
		err := rows.Scan(
			&l.ID, &l.TenantID, &l.RequestID, &l.Method, &l.Network,
			&l.Providers, &l.OKCount, &l.Outcome, &l.LatencyMs, &l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query log: %w", err)
		}
		logs = append(logs, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating query logs: %w", err)
	}

	return logs, nil
}

func (s *PostgresStore) CountDisagreementsByTenant(ctx context.Context, tenantID string, from, to time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM query_logs
		WHERE tenant_id = $1 AND outcome = $2 AND created_at BETWEEN $3 AND $4
	`
	var total int64
	err := s.db.QueryRow(ctx, query, tenantID, OutcomeInconsistent, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count disagreements: %w", err)
	}

	return total, nil
}
