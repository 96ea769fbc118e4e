// File: internal/integration/postgres.go
package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// DBPool abstracts the pgxpool.Pool so the store can be mocked in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// integrationColumns is the denormalized projection every store query uses.
const integrationColumns = `
	i.id, i.name, i.purpose, p.name, m.model_name,
	i.api_key, COALESCE(i.base_url, p.base_url, ''),
	m.max_tokens, m.temperature,
	i.priority, i.is_default, i.active,
	i.fallback_integration_id, i.max_requests_per_hour, i.created_at`

const integrationJoins = `
	FROM integrations i
	JOIN llm_models m ON m.id = i.model_id
	JOIN llm_providers p ON p.id = m.provider_id`

// PostgresStore reads integrations from the llm_providers / llm_models /
// integrations tables.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store and verifies the connection.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{
		pool: pool,
		log:  logger.Named("integration_store"),
	}, nil
}

// ListActiveByPurpose implements Store.
func (s *PostgresStore) ListActiveByPurpose(ctx context.Context, purpose string) ([]Integration, error) {
	query := "SELECT" + integrationColumns + integrationJoins + `
	WHERE i.active AND i.purpose = $1
	ORDER BY i.priority DESC, i.created_at ASC`

	rows, err := s.pool.Query(ctx, query, purpose)
	if err != nil {
		return nil, fmt.Errorf("failed to query integrations for purpose %q: %w", purpose, err)
	}
	defer rows.Close()
	return scanIntegrations(rows)
}

// ListActiveDefaults implements Store.
func (s *PostgresStore) ListActiveDefaults(ctx context.Context) ([]Integration, error) {
	query := "SELECT" + integrationColumns + integrationJoins + `
	WHERE i.active AND i.is_default
	ORDER BY i.priority DESC, i.created_at ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query default integrations: %w", err)
	}
	defer rows.Close()
	return scanIntegrations(rows)
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Integration, error) {
	query := "SELECT" + integrationColumns + integrationJoins + `
	WHERE i.id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	in, err := scanIntegration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("integration %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch integration %s: %w", id, err)
	}
	return in, nil
}

func scanIntegrations(rows pgx.Rows) ([]Integration, error) {
	var out []Integration
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan integration row: %w", err)
		}
		out = append(out, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("integration rows failed: %w", err)
	}
	return out, nil
}

func scanIntegration(row pgx.Row) (*Integration, error) {
	var in Integration
	err := row.Scan(
		&in.ID, &in.Name, &in.Purpose, &in.Provider, &in.Model,
		&in.APIKey, &in.BaseURL,
		&in.MaxTokens, &in.Temperature,
		&in.Priority, &in.IsDefault, &in.Active,
		&in.FallbackID, &in.MaxRequestsPerHour, &in.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &in, nil
}
