package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/authz-engine/pep-core/internal/enforce"
	"github.com/authz-engine/pep-core/internal/metrics"
	"github.com/authz-engine/pep-core/pkg/scope"
)

// Document is the reference protected resource.
type Document struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentsTable maps the documents table for scope rendering.
var DocumentsTable = Table{
	Name:     "documents",
	PKColumn: "id",
	Columns: map[string]string{
		scope.PropertyOwnerTenantID: "tenant_id",
		scope.PropertyResourceID:    "id",
		scope.PropertyOwnerID:       "owner_id",
	},
}

const documentColumns = "id, tenant_id, owner_id, title, body, created_at, updated_at"

// DocumentStore persists documents with scope-constrained access.
type DocumentStore struct {
	db     DBTX
	scoped *ScopedTable
	logger *zap.Logger
}

// NewDocumentStore wires the store.
func NewDocumentStore(db DBTX, logger *zap.Logger, m metrics.Metrics) *DocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentStore{
		db:     db,
		scoped: NewScopedTable(db, DocumentsTable, logger, m),
		logger: logger,
	}
}

// List returns the documents visible under the scope.
func (s *DocumentStore) List(ctx context.Context, sc scope.AccessScope) ([]Document, error) {
	base := fmt.Sprintf("SELECT %s FROM documents", documentColumns)
	rows, err := s.scoped.List(ctx, base, nil, sc)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return out, nil
}

// Get returns one document if it exists inside the scope, otherwise
// enforce.ErrNotFound regardless of whether the row exists at all.
func (s *DocumentStore) Get(ctx context.Context, id uuid.UUID, sc scope.AccessScope) (*Document, error) {
	row, err := s.scoped.Get(ctx, documentColumns, id, sc)
	if err != nil {
		return nil, err
	}
	doc, err := scanDocument(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, enforce.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// Insert stores a new document. Authorization happens before this call via
// the create protocol; the insert itself is unconditional.
func (s *DocumentStore) Insert(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (id, tenant_id, owner_id, title, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		doc.ID.String(), doc.TenantID.String(), doc.OwnerID.String(),
		doc.Title, doc.Body, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Update applies a scoped update; zero matched rows yields
// enforce.ErrNotFound.
func (s *DocumentStore) Update(ctx context.Context, id uuid.UUID, sc scope.AccessScope, set map[string]any) error {
	set["updated_at"] = time.Now().UTC()
	return s.scoped.Update(ctx, id, sc, set)
}

// Delete applies a scoped delete with the same zero-rows semantics.
func (s *DocumentStore) Delete(ctx context.Context, id uuid.UUID, sc scope.AccessScope) error {
	return s.scoped.Delete(ctx, id, sc)
}

// Prefetcher exposes the scoping-attribute reader for the mutation guard.
func (s *DocumentStore) Prefetcher() enforce.Prefetcher {
	return s.scoped.Prefetcher()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (Document, error) {
	var doc Document
	var id, tenantID, ownerID string
	if err := r.Scan(&id, &tenantID, &ownerID, &doc.Title, &doc.Body, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Document{}, err
		}
		return Document{}, fmt.Errorf("failed to scan document: %w", err)
	}

	var err error
	if doc.ID, err = uuid.Parse(id); err != nil {
		return Document{}, fmt.Errorf("invalid document id: %w", err)
	}
	if doc.TenantID, err = uuid.Parse(tenantID); err != nil {
		return Document{}, fmt.Errorf("invalid tenant id: %w", err)
	}
	if doc.OwnerID, err = uuid.Parse(ownerID); err != nil {
		return Document{}, fmt.Errorf("invalid owner id: %w", err)
	}
	return doc, nil
}
