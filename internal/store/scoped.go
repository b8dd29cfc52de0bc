// Package store applies compiled access scopes to SQL statements. Reads get
// the scope appended to their WHERE clause; mutations get it combined with
// the primary-key match in the same statement, so an ownership change after
// evaluation surfaces as zero rows affected rather than an unauthorized
// write.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/authz-engine/pep-core/internal/enforce"
	"github.com/authz-engine/pep-core/internal/metrics"
	"github.com/authz-engine/pep-core/pkg/scope"
)

// DBTX is the subset of database/sql used here; *sql.DB and *sql.Tx both
// satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Table maps authorization properties to columns of one protected table.
type Table struct {
	// Name is the SQL table name.
	Name string
	// PKColumn is the primary key column matched by scoped mutations.
	PKColumn string
	// Columns maps authorization property names to column names. Properties
	// the PDP may constrain on must appear here; an unmapped property in a
	// compiled scope is an error, not an ignored filter.
	Columns map[string]string
}

// Resolve implements scope.ColumnResolver for this table.
func (t Table) Resolve(property string) (string, bool) {
	col, ok := t.Columns[property]
	return col, ok
}

// ScopedTable executes scope-constrained statements against one table.
type ScopedTable struct {
	db      DBTX
	table   Table
	logger  *zap.Logger
	metrics metrics.Metrics
}

// NewScopedTable wires a scoped executor for one table.
func NewScopedTable(db DBTX, table Table, logger *zap.Logger, m metrics.Metrics) *ScopedTable {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoOpMetrics()
	}
	return &ScopedTable{db: db, table: table, logger: logger, metrics: m}
}

// SelectWhere renders the scope as a WHERE fragment for a read query whose
// own placeholders end just before startArg. An unconstrained scope returns
// an empty fragment; a deny-all scope returns a fragment matching nothing,
// so list endpoints degrade to empty results instead of erroring.
func (st *ScopedTable) SelectWhere(sc scope.AccessScope, startArg int) (string, []any, error) {
	where, args, err := sc.SQL(st.table.Resolve, startArg)
	if err != nil {
		if err == scope.ErrUnconditional {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("rendering scope for %s: %w", st.table.Name, err)
	}
	return where, args, nil
}

// List runs a scoped SELECT. baseQuery must end at its WHERE clause (or have
// none); the scope condition is appended with AND when conditions already
// exist, or as the sole condition otherwise.
func (st *ScopedTable) List(ctx context.Context, baseQuery string, baseArgs []any, sc scope.AccessScope) (*sql.Rows, error) {
	where, scopeArgs, err := st.SelectWhere(sc, len(baseArgs)+1)
	if err != nil {
		return nil, err
	}

	query := baseQuery
	if where != "" {
		if strings.Contains(strings.ToUpper(baseQuery), " WHERE ") {
			query += " AND " + where
		} else {
			query += " WHERE " + where
		}
	}

	rows, err := st.db.QueryContext(ctx, query, append(baseArgs, scopeArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("scoped query on %s failed: %w", st.table.Name, err)
	}
	return rows, nil
}

// Get runs a scoped point read by primary key. The scope is part of the
// statement, so a row outside the caller's scope scans as sql.ErrNoRows,
// indistinguishable from a row that does not exist.
func (st *ScopedTable) Get(ctx context.Context, selectCols string, id uuid.UUID, sc scope.AccessScope) (*sql.Row, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", selectCols, st.table.Name, st.table.PKColumn)
	args := []any{id.String()}

	where, scopeArgs, err := st.SelectWhere(sc, 2)
	if err != nil {
		return nil, err
	}
	if where != "" {
		query += " AND " + where
		args = append(args, scopeArgs...)
	}

	return st.db.QueryRowContext(ctx, query, args...), nil
}

// Update applies a scoped UPDATE to one row. The SET columns are taken in
// sorted order for deterministic SQL. Zero rows affected means the row does
// not exist or sits outside the scope; either way the caller gets not-found.
func (st *ScopedTable) Update(ctx context.Context, id uuid.UUID, sc scope.AccessScope, set map[string]any) error {
	if len(set) == 0 {
		return fmt.Errorf("update on %s: no columns to set", st.table.Name)
	}

	cols := make([]string, 0, len(set))
	for col := range set {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var sb strings.Builder
	args := make([]any, 0, len(set)+1)
	argIndex := 1

	fmt.Fprintf(&sb, "UPDATE %s SET ", st.table.Name)
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s = $%d", col, argIndex)
		args = append(args, set[col])
		argIndex++
	}
	fmt.Fprintf(&sb, " WHERE %s = $%d", st.table.PKColumn, argIndex)
	args = append(args, id.String())
	argIndex++

	return st.execScoped(ctx, "update", sb.String(), args, argIndex, sc)
}

// Delete applies a scoped DELETE to one row, with the same zero-rows
// semantics as Update.
func (st *ScopedTable) Delete(ctx context.Context, id uuid.UUID, sc scope.AccessScope) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", st.table.Name, st.table.PKColumn)
	return st.execScoped(ctx, "delete", query, []any{id.String()}, 2, sc)
}

// PrefetchProperties reads the row's mapped authorization properties by
// primary key, unscoped. It feeds the mutation protocol's evaluation step;
// the scope produced from that evaluation is what actually gates the write.
func (st *ScopedTable) PrefetchProperties(ctx context.Context, id uuid.UUID) (map[string]any, error) {
	props := make([]string, 0, len(st.table.Columns))
	for property := range st.table.Columns {
		props = append(props, property)
	}
	sort.Strings(props)

	cols := make([]string, len(props))
	for i, property := range props {
		cols[i] = st.table.Columns[property]
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		strings.Join(cols, ", "), st.table.Name, st.table.PKColumn)

	row := st.db.QueryRowContext(ctx, query, id.String())
	values := make([]any, len(cols))
	for i := range values {
		values[i] = new(sql.NullString)
	}
	if err := row.Scan(values...); err != nil {
		if err == sql.ErrNoRows {
			return nil, enforce.ErrPrefetchMiss
		}
		return nil, fmt.Errorf("prefetch on %s failed: %w", st.table.Name, err)
	}

	out := make(map[string]any, len(props))
	for i, property := range props {
		if ns := values[i].(*sql.NullString); ns.Valid {
			out[property] = ns.String
		}
	}
	return out, nil
}

// Prefetcher adapts the table to the mutation guard.
func (st *ScopedTable) Prefetcher() enforce.Prefetcher {
	return enforce.PrefetchFunc(st.PrefetchProperties)
}

func (st *ScopedTable) execScoped(ctx context.Context, operation, query string, args []any, argIndex int, sc scope.AccessScope) error {
	where, scopeArgs, err := sc.SQL(st.table.Resolve, argIndex)
	if err != nil && err != scope.ErrUnconditional {
		return fmt.Errorf("rendering scope for %s: %w", st.table.Name, err)
	}
	if err == nil {
		// Scope and primary key match in one statement. This is the TOCTOU
		// guarantee; splitting them into check-then-write would reopen the
		// race the mutation protocol exists to close.
		query += " AND " + where
		args = append(args, scopeArgs...)
	}

	res, err := st.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("scoped %s on %s failed: %w", operation, st.table.Name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("scoped %s on %s: rows affected: %w", operation, st.table.Name, err)
	}
	if affected == 0 {
		st.metrics.RecordMutation(operation, "not_found")
		return enforce.ErrNotFound
	}
	st.metrics.RecordMutation(operation, "applied")
	return nil
}
