package closure

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authz-engine/pep-core/pkg/types"
)

// barrierFixture builds the reference hierarchy: T2 sits behind a barrier
// under T1, T3 under T2, T4 directly under T1 with no barrier.
//
//	T1 ── T4
//	 └─[barrier]─ T2 ── T3
func barrierFixture() (t1, t2, t3, t4 uuid.UUID, repo *MemoryRepository) {
	t1, t2, t3, t4 = uuid.New(), uuid.New(), uuid.New(), uuid.New()

	repo = NewMemoryRepository()
	repo.LoadTenantRows([]TenantClosureRow{
		{Ancestor: t1, Descendant: t1, Barrier: 0, DescendantStatus: "active"},
		{Ancestor: t1, Descendant: t2, Barrier: 1, DescendantStatus: "active"},
		{Ancestor: t1, Descendant: t3, Barrier: 1, DescendantStatus: "active"},
		{Ancestor: t1, Descendant: t4, Barrier: 0, DescendantStatus: "active"},
		{Ancestor: t2, Descendant: t2, Barrier: 0, DescendantStatus: "active"},
		{Ancestor: t2, Descendant: t3, Barrier: 0, DescendantStatus: "active"},
		{Ancestor: t3, Descendant: t3, Barrier: 0, DescendantStatus: "active"},
		{Ancestor: t4, Descendant: t4, Barrier: 0, DescendantStatus: "active"},
	})
	return
}

func TestTenantSubtreeBarrierSemantics(t *testing.T) {
	t1, t2, t3, t4, repo := barrierFixture()
	engine := NewEngine(repo)
	ctx := context.Background()

	tests := []struct {
		name    string
		root    uuid.UUID
		barrier types.BarrierMode
		want    []uuid.UUID
	}{
		{
			name:    "root with barriers respected stops at the barrier edge",
			root:    t1,
			barrier: types.BarrierModeAll,
			want:    []uuid.UUID{t1, t4},
		},
		{
			name:    "barrier tenant sees its own subtree",
			root:    t2,
			barrier: types.BarrierModeAll,
			want:    []uuid.UUID{t2, t3},
		},
		{
			name:    "ignoring barriers yields the full subtree",
			root:    t1,
			barrier: types.BarrierModeNone,
			want:    []uuid.UUID{t1, t2, t3, t4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.TenantSubtree(ctx, tt.root, tt.barrier, nil)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestTenantSubtreeStatusFilter(t *testing.T) {
	t1 := uuid.New()
	suspended := uuid.New()

	repo := NewMemoryRepository()
	repo.LoadTenantRows([]TenantClosureRow{
		{Ancestor: t1, Descendant: t1, DescendantStatus: "active"},
		{Ancestor: t1, Descendant: suspended, DescendantStatus: "suspended"},
	})
	engine := NewEngine(repo)

	got, err := engine.TenantSubtree(context.Background(), t1, types.BarrierModeAll, []string{"active"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{t1}, got)

	got, err = engine.TenantSubtree(context.Background(), t1, types.BarrierModeAll, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestTenantSubtreeUnknownBarrierMode(t *testing.T) {
	engine := NewEngine(NewMemoryRepository())

	_, err := engine.TenantSubtree(context.Background(), uuid.New(), "sometimes", nil)
	assert.Error(t, err)
}

func TestTenantSubtreeUnknownRootIsEmpty(t *testing.T) {
	_, _, _, _, repo := barrierFixture()
	engine := NewEngine(repo)

	got, err := engine.TenantSubtree(context.Background(), uuid.New(), types.BarrierModeAll, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTenantAncestors(t *testing.T) {
	t1, t2, t3, _, repo := barrierFixture()
	engine := NewEngine(repo)

	got, err := engine.TenantAncestors(context.Background(), t3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{t1, t2, t3}, got)

	got, err = engine.TenantAncestors(context.Background(), t1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{t1}, got)
}

func TestGroupMembers(t *testing.T) {
	g1, g2 := uuid.New(), uuid.New()
	r1, r2, r3 := uuid.New(), uuid.New(), uuid.New()

	repo := NewMemoryRepository()
	repo.LoadMemberships([]MembershipRow{
		{ResourceID: r1, GroupID: g1},
		{ResourceID: r2, GroupID: g1},
		{ResourceID: r2, GroupID: g2}, // in both groups, returned once
		{ResourceID: r3, GroupID: g2},
	})
	engine := NewEngine(repo)

	got, err := engine.GroupMembers(context.Background(), []uuid.UUID{g1, g2})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{r1, r2, r3}, got)

	got, err = engine.GroupMembers(context.Background(), []uuid.UUID{g1})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{r1, r2}, got)

	got, err = engine.GroupMembers(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGroupSubtreeMembers(t *testing.T) {
	parent, child := uuid.New(), uuid.New()
	r1, r2 := uuid.New(), uuid.New()

	repo := NewMemoryRepository()
	repo.LoadGroupRows([]GroupClosureRow{
		{Ancestor: parent, Descendant: parent},
		{Ancestor: parent, Descendant: child},
		{Ancestor: child, Descendant: child},
	})
	repo.LoadMemberships([]MembershipRow{
		{ResourceID: r1, GroupID: parent},
		{ResourceID: r2, GroupID: child},
	})
	engine := NewEngine(repo)

	got, err := engine.GroupSubtreeMembers(context.Background(), parent)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{r1, r2}, got)

	got, err = engine.GroupSubtreeMembers(context.Background(), child)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{r2}, got)
}

func TestGroupSubtreeMembersEmptySubtree(t *testing.T) {
	engine := NewEngine(NewMemoryRepository())

	got, err := engine.GroupSubtreeMembers(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, got)
}
