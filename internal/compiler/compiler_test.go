package compiler

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/authz-engine/pep-core/internal/registry"
	"github.com/authz-engine/pep-core/pkg/scope"
	"github.com/authz-engine/pep-core/pkg/types"
)

var defaultSupported = []string{
	scope.PropertyOwnerTenantID,
	scope.PropertyResourceID,
	scope.PropertyOwnerID,
}

func newTestCompiler(t *testing.T) *Compiler {
	t.Helper()
	return New(registry.New(), zap.NewNop())
}

func TestCompileEmptyListDenies(t *testing.T) {
	c := newTestCompiler(t)

	result, err := c.Compile(context.Background(), nil, defaultSupported, nil)

	assert.ErrorIs(t, err, ErrNoConstraints)
	assert.True(t, result.IsDenyAll())
}

func TestCompileUnknownPredicateTypeFailsClosed(t *testing.T) {
	c := newTestCompiler(t)
	tenantID := uuid.New()

	tests := []struct {
		name        string
		constraints []types.Constraint
		wantDeny    bool
	}{
		{
			name: "only constraint has unknown type",
			constraints: []types.Constraint{
				{Predicates: []types.Predicate{
					{Op: "vendor_geo_fence", Property: scope.PropertyOwnerTenantID},
				}},
			},
			wantDeny: true,
		},
		{
			name: "unknown type voids its constraint but not its siblings",
			constraints: []types.Constraint{
				{Predicates: []types.Predicate{
					{Op: "vendor_geo_fence", Property: scope.PropertyOwnerTenantID},
				}},
				{Predicates: []types.Predicate{
					types.Eq(scope.PropertyOwnerTenantID, tenantID.String()),
				}},
			},
			wantDeny: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := c.Compile(context.Background(), tt.constraints, defaultSupported, nil)
			if tt.wantDeny {
				assert.ErrorIs(t, err, ErrAllConstraintsFailed)
				assert.True(t, result.IsDenyAll())
				return
			}
			require.NoError(t, err)
			require.Len(t, result.Constraints(), 1)
			assert.True(t, result.ContainsUUID(scope.PropertyOwnerTenantID, tenantID))
		})
	}
}

func TestCompileUnsupportedPropertyFailsConstraint(t *testing.T) {
	c := newTestCompiler(t)
	tenantID := uuid.New()

	// The property check precedes type dispatch: even a perfectly valid eq
	// predicate fails when the caller never declared the property.
	constraints := []types.Constraint{
		{Predicates: []types.Predicate{
			types.Eq("department", "engineering"),
			types.Eq(scope.PropertyOwnerTenantID, tenantID.String()),
		}},
	}

	result, err := c.Compile(context.Background(), constraints, defaultSupported, nil)

	assert.ErrorIs(t, err, ErrAllConstraintsFailed)
	assert.True(t, result.IsDenyAll())
}

func TestCompileAndOrSemantics(t *testing.T) {
	c := newTestCompiler(t)

	tenantA := uuid.New()
	tenantB := uuid.New()
	ownerA := uuid.New()
	ownerB := uuid.New()

	// (tenant=A AND owner=ownerA) OR (tenant=B AND owner=ownerB)
	constraints := []types.Constraint{
		{Predicates: []types.Predicate{
			types.Eq(scope.PropertyOwnerTenantID, tenantA.String()),
			types.Eq(scope.PropertyOwnerID, ownerA.String()),
		}},
		{Predicates: []types.Predicate{
			types.Eq(scope.PropertyOwnerTenantID, tenantB.String()),
			types.Eq(scope.PropertyOwnerID, ownerB.String()),
		}},
	}

	result, err := c.Compile(context.Background(), constraints, defaultSupported, nil)
	require.NoError(t, err)
	require.Len(t, result.Constraints(), 2)

	row := func(tenant, owner uuid.UUID) scope.Row {
		return scope.Row{
			scope.PropertyOwnerTenantID: scope.UUIDValue(tenant),
			scope.PropertyOwnerID:       scope.UUIDValue(owner),
		}
	}

	assert.True(t, result.Matches(row(tenantA, ownerA)))
	assert.True(t, result.Matches(row(tenantB, ownerB)))
	// Cross pairings satisfy one filter of each group but no full group.
	assert.False(t, result.Matches(row(tenantA, ownerB)))
	assert.False(t, result.Matches(row(tenantB, ownerA)))
	assert.False(t, result.Matches(row(uuid.New(), uuid.New())))
}

func TestCompileEmptyConstraintFailsClosed(t *testing.T) {
	c := newTestCompiler(t)

	result, err := c.Compile(context.Background(), []types.Constraint{{}}, defaultSupported, nil)

	assert.ErrorIs(t, err, ErrAllConstraintsFailed)
	assert.True(t, result.IsDenyAll())
}

func TestCompileMalformedPredicateFailsConstraint(t *testing.T) {
	c := newTestCompiler(t)

	// eq with no value fails validation and takes its constraint down.
	constraints := []types.Constraint{
		{Predicates: []types.Predicate{
			{Op: types.OpEq, Property: scope.PropertyOwnerTenantID},
		}},
	}

	result, err := c.Compile(context.Background(), constraints, defaultSupported, nil)

	assert.ErrorIs(t, err, ErrAllConstraintsFailed)
	assert.True(t, result.IsDenyAll())
}

func TestCompileHierarchicalPredicateWithoutClosureFailsClosed(t *testing.T) {
	c := newTestCompiler(t)
	root := uuid.New()

	constraints := []types.Constraint{
		{Predicates: []types.Predicate{
			types.InTenantSubtree(scope.PropertyOwnerTenantID, root, types.BarrierModeAll),
		}},
	}

	result, err := c.Compile(context.Background(), constraints, defaultSupported, nil)

	assert.ErrorIs(t, err, ErrAllConstraintsFailed)
	assert.True(t, result.IsDenyAll())
}

func TestCompileInPredicate(t *testing.T) {
	c := newTestCompiler(t)
	a, b := uuid.New(), uuid.New()

	constraints := []types.Constraint{
		{Predicates: []types.Predicate{
			types.In(scope.PropertyOwnerTenantID, a.String(), b.String()),
		}},
	}

	result, err := c.Compile(context.Background(), constraints, defaultSupported, nil)
	require.NoError(t, err)

	assert.True(t, result.ContainsUUID(scope.PropertyOwnerTenantID, a))
	assert.True(t, result.ContainsUUID(scope.PropertyOwnerTenantID, b))
	assert.False(t, result.ContainsUUID(scope.PropertyOwnerTenantID, uuid.New()))
}
