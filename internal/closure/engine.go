package closure

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/authz-engine/pep-core/pkg/types"
)

// Engine answers subtree and membership questions for the constraint
// compiler. It satisfies registry.BuildEnv. The engine is stateless; all
// state lives in the injected repository.
type Engine struct {
	repo Repository
}

// NewEngine wraps a repository.
func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo}
}

// TenantSubtree returns the tenant IDs visible from root under the given
// barrier mode and optional status filter. The root is always part of its
// own subtree (self-row, barrier 0).
func (e *Engine) TenantSubtree(ctx context.Context, root uuid.UUID, barrier types.BarrierMode, status []string) ([]uuid.UUID, error) {
	switch barrier {
	case types.BarrierModeAll, types.BarrierModeNone:
	default:
		return nil, fmt.Errorf("unknown barrier mode %q", barrier)
	}
	ids, err := e.repo.TenantDescendants(ctx, root, barrier, status)
	if err != nil {
		return nil, fmt.Errorf("tenant subtree scan for %s: %w", root, err)
	}
	return ids, nil
}

// TenantAncestors returns the chain of tenants above the given tenant, the
// tenant itself included. Used to resolve which subtree roots a tenant falls
// under, for example when a caller pins a tenant context to a root it does
// not belong to.
func (e *Engine) TenantAncestors(ctx context.Context, tenant uuid.UUID) ([]uuid.UUID, error) {
	ids, err := e.repo.TenantAncestors(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("tenant ancestor scan for %s: %w", tenant, err)
	}
	return ids, nil
}

// GroupMembers returns the resource IDs belonging to any of the groups.
func (e *Engine) GroupMembers(ctx context.Context, groupIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	ids, err := e.repo.GroupMembers(ctx, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("group membership scan: %w", err)
	}
	return ids, nil
}

// GroupSubtreeMembers returns the resource IDs belonging to any group in the
// subtree rooted at root.
func (e *Engine) GroupSubtreeMembers(ctx context.Context, root uuid.UUID) ([]uuid.UUID, error) {
	groups, err := e.repo.GroupDescendants(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("group subtree scan for %s: %w", root, err)
	}
	if len(groups) == 0 {
		return nil, nil
	}
	members, err := e.repo.GroupMembers(ctx, groups)
	if err != nil {
		return nil, fmt.Errorf("group subtree membership scan: %w", err)
	}
	return members, nil
}
