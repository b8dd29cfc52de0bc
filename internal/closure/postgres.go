package closure

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/authz-engine/pep-core/pkg/types"
)

// PostgresRepository reads the closure projection tables from PostgreSQL.
// The tables are populated and maintained by an external synchronization
// process; this repository only issues point-lookup scans over the
// (ancestor_id) and (descendant_id) indexes.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository wraps an open database handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// TenantDescendants implements Repository.
func (r *PostgresRepository) TenantDescendants(ctx context.Context, root uuid.UUID, barrier types.BarrierMode, status []string) ([]uuid.UUID, error) {
	query := `
		SELECT descendant_id
		FROM tenant_closure
		WHERE ancestor_id = $1
	`
	args := []any{root.String()}
	argIndex := 2

	if barrier == types.BarrierModeAll {
		query += fmt.Sprintf(" AND barrier = $%d", argIndex)
		args = append(args, 0)
		argIndex++
	}
	if len(status) > 0 {
		query += fmt.Sprintf(" AND descendant_status = ANY($%d)", argIndex)
		args = append(args, pq.Array(status))
	}

	return r.scanIDs(ctx, query, args...)
}

// TenantAncestors implements Repository.
func (r *PostgresRepository) TenantAncestors(ctx context.Context, tenant uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT ancestor_id
		FROM tenant_closure
		WHERE descendant_id = $1
	`
	return r.scanIDs(ctx, query, tenant.String())
}

// GroupDescendants implements Repository.
func (r *PostgresRepository) GroupDescendants(ctx context.Context, root uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT descendant_id
		FROM resource_group_closure
		WHERE ancestor_id = $1
	`
	return r.scanIDs(ctx, query, root.String())
}

// GroupMembers implements Repository.
func (r *PostgresRepository) GroupMembers(ctx context.Context, groupIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(groupIDs))
	for i, id := range groupIDs {
		ids[i] = id.String()
	}
	query := `
		SELECT DISTINCT resource_id
		FROM resource_group_membership
		WHERE group_id = ANY($1)
	`
	return r.scanIDs(ctx, query, pq.Array(ids))
}

func (r *PostgresRepository) scanIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("closure query failed: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan closure row: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid id in closure table: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closure rows: %w", err)
	}
	return out, nil
}
