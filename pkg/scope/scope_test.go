package scope

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestZeroValueDeniesEverything(t *testing.T) {
	var s AccessScope

	assert.True(t, s.IsDenyAll())
	assert.False(t, s.IsUnconstrained())
	assert.False(t, s.Matches(Row{PropertyOwnerID: StringValue("anyone")}))
}

func TestAllowAllAndDenyAllAreDistinct(t *testing.T) {
	assert.True(t, AllowAll().IsUnconstrained())
	assert.False(t, AllowAll().IsDenyAll())

	assert.True(t, DenyAll().IsDenyAll())
	assert.False(t, DenyAll().IsUnconstrained())
}

func TestFromConstraintsDiscardsEmptyGroups(t *testing.T) {
	kept := NewConstraint(Eq(PropertyOwnerID, StringValue("u1")))

	s := FromConstraints(NewConstraint(), kept, NewConstraint())
	assert.Len(t, s.Constraints(), 1)

	// Only empty groups means the scope collapses to deny-all, never to
	// allow-all.
	empty := FromConstraints(NewConstraint(), NewConstraint())
	assert.True(t, empty.IsDenyAll())
}

func TestForTenantsCollectsValues(t *testing.T) {
	t1, t2 := uuid.New(), uuid.New()

	s := ForTenants(t1, t2)
	assert.ElementsMatch(t, []uuid.UUID{t1, t2}, s.AllUUIDValuesFor(PropertyOwnerTenantID))
	assert.True(t, s.ContainsUUID(PropertyOwnerTenantID, t1))
	assert.False(t, s.ContainsUUID(PropertyOwnerTenantID, uuid.New()))
	assert.True(t, s.HasProperty(PropertyOwnerTenantID))
	assert.False(t, s.HasProperty(PropertyOwnerID))
}

func TestValueAsUUIDParsesStringForm(t *testing.T) {
	id := uuid.New()

	u, ok := StringValue(id.String()).AsUUID()
	assert.True(t, ok)
	assert.Equal(t, id, u)

	_, ok = StringValue("not-a-uuid").AsUUID()
	assert.False(t, ok)

	_, ok = IntValue(7).AsUUID()
	assert.False(t, ok)
}
