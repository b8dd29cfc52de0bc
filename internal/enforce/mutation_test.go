package enforce

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/authz-engine/pep-core/pkg/scope"
	"github.com/authz-engine/pep-core/pkg/types"
)

func tenantScopedPDP(tenantID uuid.UUID) *fakePDP {
	return &fakePDP{resp: allowWithConstraints(types.Constraint{
		Predicates: []types.Predicate{types.Eq(scope.PropertyOwnerTenantID, tenantID.String())},
	})}
}

func staticPrefetch(props map[string]any) Prefetcher {
	return PrefetchFunc(func(_ context.Context, _ uuid.UUID) (map[string]any, error) {
		return props, nil
	})
}

func TestPrepareUpdateReturnsScopeAndForwardsPrefetchedAttributes(t *testing.T) {
	tenantID := uuid.New()
	client := tenantScopedPDP(tenantID)
	e := newEnforcer(client, zap.NewNop())

	guard := NewMutationGuard(e, staticPrefetch(map[string]any{
		scope.PropertyOwnerTenantID: tenantID.String(),
	}), documentType, zap.NewNop())

	resourceID := uuid.New()
	got, err := guard.PrepareUpdate(context.Background(), types.SecurityContext{SubjectID: uuid.New()}, resourceID, nil)

	require.NoError(t, err)
	assert.True(t, got.ContainsUUID(scope.PropertyOwnerTenantID, tenantID))

	// The evaluation must carry the prefetched ownership, not caller claims,
	// and must demand constraints.
	req := client.lastReq
	require.NotNil(t, req)
	assert.Equal(t, tenantID.String(), req.Resource.Properties[scope.PropertyOwnerTenantID])
	assert.Equal(t, &resourceID, req.Resource.ID)
	assert.True(t, req.Context.RequireConstraints)
}

func TestPrepareDeleteMissingResourceIsNotFound(t *testing.T) {
	e := newEnforcer(tenantScopedPDP(uuid.New()), zap.NewNop())
	guard := NewMutationGuard(e, PrefetchFunc(func(_ context.Context, _ uuid.UUID) (map[string]any, error) {
		return nil, ErrPrefetchMiss
	}), documentType, zap.NewNop())

	_, err := guard.PrepareDelete(context.Background(), types.SecurityContext{SubjectID: uuid.New()}, uuid.New(), nil)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPrepareUpdateWithoutPrefetcher(t *testing.T) {
	tenantID := uuid.New()
	client := tenantScopedPDP(tenantID)
	e := newEnforcer(client, zap.NewNop())
	guard := NewMutationGuard(e, nil, documentType, zap.NewNop())

	got, err := guard.PrepareUpdate(context.Background(), types.SecurityContext{SubjectID: uuid.New()}, uuid.New(), nil)

	require.NoError(t, err)
	assert.True(t, got.ContainsUUID(scope.PropertyOwnerTenantID, tenantID))
	// Without a prefetcher the evaluation carries no resource properties.
	require.NotNil(t, client.lastReq)
	assert.Empty(t, client.lastReq.Resource.Properties)
}

func TestPrepareUpdateUnscopedAllowDenied(t *testing.T) {
	// A PDP answering "allow, no constraints" must not authorize a mutation:
	// require_constraints turns it into a deny.
	client := &fakePDP{resp: &types.EvaluationResponse{Decision: true}}
	e := newEnforcer(client, zap.NewNop())
	guard := NewMutationGuard(e, staticPrefetch(map[string]any{}), documentType, zap.NewNop())

	_, err := guard.PrepareUpdate(context.Background(), types.SecurityContext{SubjectID: uuid.New()}, uuid.New(), nil)

	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeCreateInsideScope(t *testing.T) {
	tenantID := uuid.New()
	e := newEnforcer(tenantScopedPDP(tenantID), zap.NewNop())
	guard := NewMutationGuard(e, staticPrefetch(nil), documentType, zap.NewNop())

	err := guard.AuthorizeCreate(context.Background(), types.SecurityContext{SubjectID: uuid.New()}, map[string]any{
		scope.PropertyOwnerTenantID: tenantID.String(),
	}, nil)

	assert.NoError(t, err)
}

func TestAuthorizeCreateOutsideScopeForbidden(t *testing.T) {
	e := newEnforcer(tenantScopedPDP(uuid.New()), zap.NewNop())
	guard := NewMutationGuard(e, staticPrefetch(nil), documentType, zap.NewNop())

	// Proposing a resource owned by a different tenant than the compiled
	// scope admits.
	err := guard.AuthorizeCreate(context.Background(), types.SecurityContext{SubjectID: uuid.New()}, map[string]any{
		scope.PropertyOwnerTenantID: uuid.New().String(),
	}, nil)

	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeCreateMissingScopedPropertyForbidden(t *testing.T) {
	e := newEnforcer(tenantScopedPDP(uuid.New()), zap.NewNop())
	guard := NewMutationGuard(e, staticPrefetch(nil), documentType, zap.NewNop())

	// The proposed attributes never mention owner_tenant_id at all; the
	// constraint cannot be verified and creation fails closed.
	err := guard.AuthorizeCreate(context.Background(), types.SecurityContext{SubjectID: uuid.New()}, map[string]any{
		"title": "quarterly report",
	}, nil)

	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeCreateUnscopedAllowDenied(t *testing.T) {
	// "Allow, no constraints" authorizes a create no more than it does an
	// update: the evaluation demands constraints, so the naked allow is a
	// deny even when the caller proposes a foreign tenant.
	client := &fakePDP{resp: &types.EvaluationResponse{Decision: true}}
	e := newEnforcer(client, zap.NewNop())
	guard := NewMutationGuard(e, staticPrefetch(nil), documentType, zap.NewNop())

	err := guard.AuthorizeCreate(context.Background(), types.SecurityContext{SubjectID: uuid.New()}, map[string]any{
		scope.PropertyOwnerTenantID: uuid.New().String(),
	}, nil)

	assert.ErrorIs(t, err, ErrForbidden)
	require.NotNil(t, client.lastReq)
	assert.True(t, client.lastReq.Context.RequireConstraints)
}
