// Package store reads the pre-materialized name/namespace snapshot the
// external indexer maintains. Every query is a parameterized, read-only
// select against the network's schema; validity filtering is the resolver's
// job, not the store's.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strata-Labs/bnsv2-api/internal/names"
	"github.com/Strata-Labs/bnsv2-api/internal/platform/config"
	"github.com/Strata-Labs/bnsv2-api/pkg/platform/sentinel"
)

// Postgres is the read-only snapshot store.
type Postgres struct {
	pool     *pgxpool.Pool
	networks config.Networks
}

// New connects a pgx pool to the snapshot database.
func New(ctx context.Context, databaseURL string, networks config.Networks) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect snapshot store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping snapshot store: %w", err)
	}
	return &Postgres{pool: pool, networks: networks}, nil
}

// NewWithPool wraps an existing pool, for tests.
func NewWithPool(pool *pgxpool.Pool, networks config.Networks) *Postgres {
	return &Postgres{pool: pool, networks: networks}
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Health pings the store; the background probe and /healthz use it.
func (p *Postgres) Health(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// schema resolves the network selector to its backing schema. Schema names
// come from operator config, never request input, and are still quoted
// through pgx.Identifier because they cannot be bind parameters.
func (p *Postgres) schema(network string) (string, error) {
	nw, ok := p.networks[network]
	if !ok {
		return "", fmt.Errorf("unknown network %q", network)
	}
	return pgx.Identifier{nw.Schema}.Sanitize(), nil
}

const nameColumns = `name_string, namespace_string, owner, registered_at,
	renewal_height, stx_burn, revoked, imported_at, preordered_by, zonefile, id`

func scanName(row pgx.Row) (names.NameRecord, error) {
	var n names.NameRecord
	err := row.Scan(&n.Name, &n.Namespace, &n.Owner, &n.RegisteredAt,
		&n.RenewalHeight, &n.StxBurn, &n.Revoked, &n.ImportedAt,
		&n.PreorderedBy, &n.Zonefile, &n.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return names.NameRecord{}, sentinel.ErrNotFound
	}
	if err != nil {
		return names.NameRecord{}, fmt.Errorf("scan name record: %w", err)
	}
	return n, nil
}

// GetName fetches one name record by (name, namespace).
func (p *Postgres) GetName(ctx context.Context, network, name, namespace string) (names.NameRecord, error) {
	schema, err := p.schema(network)
	if err != nil {
		return names.NameRecord{}, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s.names WHERE name_string = $1 AND namespace_string = $2`,
		nameColumns, schema)
	return scanName(p.pool.QueryRow(ctx, query, name, namespace))
}

// GetNameByID fetches one name record by its monotonic token id.
func (p *Postgres) GetNameByID(ctx context.Context, network string, id uint64) (names.NameRecord, error) {
	schema, err := p.schema(network)
	if err != nil {
		return names.NameRecord{}, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s.names WHERE id = $1`, nameColumns, schema)
	return scanName(p.pool.QueryRow(ctx, query, id))
}

// GetNamespace fetches one namespace record.
func (p *Postgres) GetNamespace(ctx context.Context, network, namespace string) (names.NamespaceRecord, error) {
	schema, err := p.schema(network)
	if err != nil {
		return names.NamespaceRecord{}, err
	}
	query := fmt.Sprintf(`SELECT namespace_string, launched_at, lifetime, namespace_manager, price_function
		FROM %s.namespaces WHERE namespace_string = $1`, schema)

	var ns names.NamespaceRecord
	err = p.pool.QueryRow(ctx, query, namespace).Scan(
		&ns.Namespace, &ns.LaunchedAt, &ns.Lifetime, &ns.Manager, &ns.PriceFunction)
	if errors.Is(err, pgx.ErrNoRows) {
		return names.NamespaceRecord{}, sentinel.ErrNotFound
	}
	if err != nil {
		return names.NamespaceRecord{}, fmt.Errorf("scan namespace record: %w", err)
	}
	return ns, nil
}

func (p *Postgres) queryNames(ctx context.Context, query string, args ...any) ([]names.NameRecord, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query names: %w", err)
	}
	defer rows.Close()

	var out []names.NameRecord
	for rows.Next() {
		n, err := scanName(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate names: %w", err)
	}
	return out, nil
}

// ListNames pages through all names ordered by token id.
func (p *Postgres) ListNames(ctx context.Context, network string, limit, offset int) ([]names.NameRecord, error) {
	schema, err := p.schema(network)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s.names ORDER BY id LIMIT $1 OFFSET $2`, nameColumns, schema)
	return p.queryNames(ctx, query, limit, offset)
}

// ListNamespaceNames pages through one namespace's names.
func (p *Postgres) ListNamespaceNames(ctx context.Context, network, namespace string, limit, offset int) ([]names.NameRecord, error) {
	schema, err := p.schema(network)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s.names WHERE namespace_string = $1
		ORDER BY id LIMIT $2 OFFSET $3`, nameColumns, schema)
	return p.queryNames(ctx, query, namespace, limit, offset)
}

// ListNamesByAddress pages through the names an address owns.
func (p *Postgres) ListNamesByAddress(ctx context.Context, network, address string, limit, offset int) ([]names.NameRecord, error) {
	schema, err := p.schema(network)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s.names WHERE owner = $1
		ORDER BY id LIMIT $2 OFFSET $3`, nameColumns, schema)
	return p.queryNames(ctx, query, address, limit, offset)
}

// ListNamespaces pages through all namespaces.
func (p *Postgres) ListNamespaces(ctx context.Context, network string, limit, offset int) ([]names.NamespaceRecord, error) {
	schema, err := p.schema(network)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT namespace_string, launched_at, lifetime, namespace_manager, price_function
		FROM %s.namespaces ORDER BY namespace_string LIMIT $1 OFFSET $2`, schema)

	rows, err := p.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query namespaces: %w", err)
	}
	defer rows.Close()

	var out []names.NamespaceRecord
	for rows.Next() {
		var ns names.NamespaceRecord
		if err := rows.Scan(&ns.Namespace, &ns.LaunchedAt, &ns.Lifetime, &ns.Manager, &ns.PriceFunction); err != nil {
			return nil, fmt.Errorf("scan namespace record: %w", err)
		}
		out = append(out, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate namespaces: %w", err)
	}
	return out, nil
}

// CountNames counts a namespace's names.
func (p *Postgres) CountNames(ctx context.Context, network, namespace string) (uint64, error) {
	schema, err := p.schema(network)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s.names WHERE namespace_string = $1`, schema)

	var count uint64
	if err := p.pool.QueryRow(ctx, query, namespace).Scan(&count); err != nil {
		return 0, fmt.Errorf("count names: %w", err)
	}
	return count, nil
}

// NamespaceStats aggregates the character-class counts the rarity scorer
// weighs a name against.
func (p *Postgres) NamespaceStats(ctx context.Context, network, namespace string) (names.NamespaceStats, error) {
	schema, err := p.schema(network)
	if err != nil {
		return names.NamespaceStats{}, err
	}
	query := fmt.Sprintf(`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE name_string ~ '^[0-9]+$'),
			COUNT(*) FILTER (WHERE name_string ~ '^[a-z]+$'),
			COUNT(*) FILTER (WHERE name_string ~ '[^0-9a-zA-Z]')
		FROM %s.names WHERE namespace_string = $1`, schema)

	var stats names.NamespaceStats
	err = p.pool.QueryRow(ctx, query, namespace).Scan(
		&stats.Total, &stats.AllDigits, &stats.AllLetters, &stats.NonAlphanumeric)
	if err != nil {
		return names.NamespaceStats{}, fmt.Errorf("aggregate namespace stats: %w", err)
	}
	return stats, nil
}
