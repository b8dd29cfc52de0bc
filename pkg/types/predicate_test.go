package types

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicateDecodeKnownTags(t *testing.T) {
	root := uuid.New()

	tests := []struct {
		name  string
		input string
		check func(t *testing.T, p Predicate)
	}{
		{
			name:  "eq",
			input: `{"op":"eq","property":"owner_tenant_id","value":"t1"}`,
			check: func(t *testing.T, p Predicate) {
				assert.Equal(t, OpEq, p.Op)
				assert.Equal(t, "owner_tenant_id", p.Property)
				assert.Equal(t, "t1", p.Value)
			},
		},
		{
			name:  "in",
			input: `{"op":"in","property":"owner_id","values":["a","b"]}`,
			check: func(t *testing.T, p Predicate) {
				assert.Equal(t, OpIn, p.Op)
				assert.Equal(t, []any{"a", "b"}, p.Values)
			},
		},
		{
			name: "tenant subtree",
			input: `{"op":"in_tenant_subtree","property":"owner_tenant_id","root_tenant_id":"` +
				root.String() + `","barrier_mode":"all","tenant_status":["active"]}`,
			check: func(t *testing.T, p Predicate) {
				assert.Equal(t, OpInTenantSubtree, p.Op)
				require.NotNil(t, p.RootTenantID)
				assert.Equal(t, root, *p.RootTenantID)
				assert.Equal(t, BarrierModeAll, p.BarrierMode)
				assert.Equal(t, []string{"active"}, p.TenantStatus)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Predicate
			require.NoError(t, json.Unmarshal([]byte(tt.input), &p))
			tt.check(t, p)
		})
	}
}

func TestPredicateMissingOpRejected(t *testing.T) {
	var p Predicate
	err := json.Unmarshal([]byte(`{"property":"owner_id","value":"x"}`), &p)
	assert.Error(t, err)
}

func TestPredicateUnknownTagSurvivesWithExtras(t *testing.T) {
	input := `{"op":"vendor_geo_fence","property":"location","radius_km":25,"center":"POINT(1 2)"}`

	var p Predicate
	require.NoError(t, json.Unmarshal([]byte(input), &p))

	assert.Equal(t, "vendor_geo_fence", p.Op)
	assert.Equal(t, "location", p.Property)
	require.Contains(t, p.Extra, "radius_km")
	require.Contains(t, p.Extra, "center")

	// Round trip keeps the vendor fields.
	out, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, float64(25), decoded["radius_km"])
	assert.Equal(t, "POINT(1 2)", decoded["center"])
}

func TestResponseConstraintsAbsentVsEmpty(t *testing.T) {
	var absent EvaluationResponse
	require.NoError(t, json.Unmarshal([]byte(`{"decision":true,"context":{}}`), &absent))
	assert.False(t, absent.HasConstraints())

	var empty EvaluationResponse
	require.NoError(t, json.Unmarshal([]byte(`{"decision":true,"context":{"constraints":[]}}`), &empty))
	assert.True(t, empty.HasConstraints())
	assert.Empty(t, empty.ConstraintList())

	var populated EvaluationResponse
	require.NoError(t, json.Unmarshal([]byte(
		`{"decision":true,"context":{"constraints":[{"predicates":[{"op":"eq","property":"owner_id","value":"x"}]}]}}`,
	), &populated))
	require.True(t, populated.HasConstraints())
	require.Len(t, populated.ConstraintList(), 1)
	assert.Equal(t, OpEq, populated.ConstraintList()[0].Predicates[0].Op)
}

func TestRequestContextNeverSerializesBearerToken(t *testing.T) {
	req := EvaluationRequest{
		Subject: Subject{ID: uuid.New()},
		Action:  Action{Name: "list"},
		Context: RequestContext{
			RequireConstraints: true,
			BearerToken:        "super-secret",
		},
	}

	out, err := json.Marshal(req)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "super-secret")
}

func TestCapabilitySet(t *testing.T) {
	s := NewCapabilitySet(CapabilityGroupHierarchy)

	assert.True(t, s.Has(CapabilityGroupMembership), "hierarchy implies membership")
	assert.Equal(t, []Capability{CapabilityGroupMembership, CapabilityGroupHierarchy}, s.List())

	assert.Empty(t, NewCapabilitySet().List())
}
