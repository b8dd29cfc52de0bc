// Package closure implements the tenant/group closure query engine. It reads
// denormalized ancestor-descendant projection tables owned by an external
// synchronization process and materializes subtree and membership ID sets for
// the hierarchical predicate types. The engine never writes these tables.
package closure

import (
	"context"

	"github.com/google/uuid"

	"github.com/authz-engine/pep-core/pkg/types"
)

// TenantClosureRow is one ancestor-descendant pair in the tenant hierarchy.
// A self-referential row (Ancestor == Descendant, Barrier 0) exists for every
// tenant. Barrier records barrier edges strictly between ancestor and
// descendant: a barrier tenant's own subtree rows carry Barrier 0 when the
// barrier tenant is the query root.
type TenantClosureRow struct {
	Ancestor   uuid.UUID
	Descendant uuid.UUID
	// Barrier is 0 or 1 today; the column is a reserved bitmask.
	Barrier          int
	DescendantStatus string
}

// GroupClosureRow is one ancestor-descendant pair in the resource-group
// hierarchy. Groups carry no barrier or status.
type GroupClosureRow struct {
	Ancestor   uuid.UUID
	Descendant uuid.UUID
}

// MembershipRow links a resource to a group (many-to-many).
type MembershipRow struct {
	ResourceID uuid.UUID
	GroupID    uuid.UUID
}

// Repository is the read-only view of the closure and membership tables.
// Implementations are injected into the engine; they are never process-wide
// mutable singletons.
type Repository interface {
	// TenantDescendants scans ancestor -> descendants from root, applying
	// barrier filtering per mode and status filtering when status is
	// non-empty.
	TenantDescendants(ctx context.Context, root uuid.UUID, barrier types.BarrierMode, status []string) ([]uuid.UUID, error)
	// TenantAncestors scans descendant -> ancestors, the reverse walk.
	TenantAncestors(ctx context.Context, tenant uuid.UUID) ([]uuid.UUID, error)
	// GroupDescendants returns the group IDs in the subtree rooted at root,
	// including root itself.
	GroupDescendants(ctx context.Context, root uuid.UUID) ([]uuid.UUID, error)
	// GroupMembers returns the resource IDs that belong to any of the given
	// groups.
	GroupMembers(ctx context.Context, groupIDs []uuid.UUID) ([]uuid.UUID, error)
}
