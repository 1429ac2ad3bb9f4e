package registry

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vnmchuo/rpc-quorum/internal/ethrpc"
)

// ProviderConfig is one provider row from the providers table.
type ProviderConfig struct {
	Network ethrpc.Network
	Name    ethrpc.Provider
	URL     string
	Active  bool
}

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore loads operator-managed provider configuration that
// supplements or overrides the built-in provider lists.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]ProviderConfig, error) {
	query := `
		SELECT network, name, url, active
		FROM providers
		WHERE active = true
		ORDER BY network, name
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}
	defer rows.Close()

	var configs []ProviderConfig
	for rows.Next() {
		var c ProviderConfig
		if err := rows.Scan(&c.Network, &c.Name, &c.URL, &c.Active); err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating providers: %w", err)
	}
	return configs, nil
}

// Apply registers every loaded config on the registry.
func Apply(r *Registry, configs []ProviderConfig) error {
	for _, c := range configs {
		if err := r.Register(c.Network, c.Name, ethrpc.Endpoint{URL: c.URL}); err != nil {
			return err
		}
	}
	return nil
}
