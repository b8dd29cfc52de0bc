package enforce

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/authz-engine/pep-core/pkg/types"
)

func TestNegotiatorNormalizesGroupHierarchy(t *testing.T) {
	n := NewNegotiator(types.CapabilityGroupHierarchy)

	assert.True(t, n.Supports(types.CapabilityGroupHierarchy))
	assert.True(t, n.Supports(types.CapabilityGroupMembership))
	assert.False(t, n.Supports(types.CapabilityTenantHierarchy))
}

func TestNegotiatorEmptyDeclaresNothing(t *testing.T) {
	n := NewNegotiator()

	assert.Empty(t, n.Declare())
}

func TestNegotiatorReplaceSwapsAndNormalizes(t *testing.T) {
	n := NewNegotiator(types.CapabilityTenantHierarchy)

	n.Replace(types.CapabilityGroupHierarchy)

	assert.False(t, n.Supports(types.CapabilityTenantHierarchy))
	assert.True(t, n.Supports(types.CapabilityGroupMembership))
	assert.Equal(t, []types.Capability{
		types.CapabilityGroupMembership,
		types.CapabilityGroupHierarchy,
	}, n.Declare())
}

func TestNegotiatorDeclareIsStable(t *testing.T) {
	n := NewNegotiator(types.CapabilityGroupMembership, types.CapabilityTenantHierarchy)

	first := n.Declare()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, n.Declare())
	}
}
