package types

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Built-in predicate type tags. Vendor predicates use their own tags and are
// dispatched through the registry; unknown tags survive decoding so the
// compiler can fail them closed instead of erroring at the transport layer.
const (
	OpEq              = "eq"
	OpIn              = "in"
	OpInTenantSubtree = "in_tenant_subtree"
	OpInGroup         = "in_group"
	OpInGroupSubtree  = "in_group_subtree"
)

// Predicate is a single filter condition over a declared resource property.
// It is a tagged variant: Op selects which of the optional fields are
// meaningful. Field-level validation lives with the registered handler for
// the tag, not here.
//
// Unknown fields in the JSON form are ignored for forward compatibility with
// newer PDPs; unknown Op tags are preserved verbatim.
type Predicate struct {
	Op string `json:"op"`
	// Property is the logical resource property the predicate filters on.
	// All predicate types carry one.
	Property string `json:"property,omitempty"`

	// Value is used by eq.
	Value any `json:"value,omitempty"`
	// Values is used by in.
	Values []any `json:"values,omitempty"`

	// RootTenantID, BarrierMode and TenantStatus are used by
	// in_tenant_subtree.
	RootTenantID *uuid.UUID  `json:"root_tenant_id,omitempty"`
	BarrierMode  BarrierMode `json:"barrier_mode,omitempty"`
	TenantStatus []string    `json:"tenant_status,omitempty"`

	// GroupIDs is used by in_group.
	GroupIDs []uuid.UUID `json:"group_ids,omitempty"`
	// RootGroupID is used by in_group_subtree.
	RootGroupID *uuid.UUID `json:"root_group_id,omitempty"`

	// Extra holds fields of vendor predicate types that the core shape does
	// not model. Vendor handlers read their fields from here.
	Extra map[string]json.RawMessage `json:"-"`
}

// Constraint is an ordered, non-empty AND-group of predicates. A constraint
// with zero predicates is malformed and treated as unsatisfiable, never as
// "no restriction".
type Constraint struct {
	Predicates []Predicate `json:"predicates"`
}

// Eq builds an equality predicate.
func Eq(property string, value any) Predicate {
	return Predicate{Op: OpEq, Property: property, Value: value}
}

// In builds a set-membership predicate.
func In(property string, values ...any) Predicate {
	return Predicate{Op: OpIn, Property: property, Values: values}
}

// InTenantSubtree builds a tenant-subtree predicate rooted at root.
func InTenantSubtree(property string, root uuid.UUID, barrier BarrierMode) Predicate {
	return Predicate{Op: OpInTenantSubtree, Property: property, RootTenantID: &root, BarrierMode: barrier}
}

// InGroup builds a group-membership predicate.
func InGroup(property string, groupIDs ...uuid.UUID) Predicate {
	return Predicate{Op: OpInGroup, Property: property, GroupIDs: groupIDs}
}

// InGroupSubtree builds a group-subtree predicate rooted at root.
func InGroupSubtree(property string, root uuid.UUID) Predicate {
	return Predicate{Op: OpInGroupSubtree, Property: property, RootGroupID: &root}
}

// predicateCore mirrors Predicate's known JSON fields for (un)marshalling.
type predicateCore struct {
	Op           string      `json:"op"`
	Property     string      `json:"property,omitempty"`
	Value        any         `json:"value,omitempty"`
	Values       []any       `json:"values,omitempty"`
	RootTenantID *uuid.UUID  `json:"root_tenant_id,omitempty"`
	BarrierMode  BarrierMode `json:"barrier_mode,omitempty"`
	TenantStatus []string    `json:"tenant_status,omitempty"`
	GroupIDs     []uuid.UUID `json:"group_ids,omitempty"`
	RootGroupID  *uuid.UUID  `json:"root_group_id,omitempty"`
}

var knownPredicateFields = map[string]bool{
	"op": true, "property": true, "value": true, "values": true,
	"root_tenant_id": true, "barrier_mode": true, "tenant_status": true,
	"group_ids": true, "root_group_id": true,
}

// UnmarshalJSON decodes the known fields and stashes anything else in Extra
// so vendor handlers can reach their own fields.
func (p *Predicate) UnmarshalJSON(data []byte) error {
	var core predicateCore
	if err := json.Unmarshal(data, &core); err != nil {
		return fmt.Errorf("decoding predicate: %w", err)
	}
	if core.Op == "" {
		return fmt.Errorf("predicate missing op tag")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding predicate fields: %w", err)
	}
	var extra map[string]json.RawMessage
	for k, v := range raw {
		if !knownPredicateFields[k] {
			if extra == nil {
				extra = make(map[string]json.RawMessage)
			}
			extra[k] = v
		}
	}

	*p = Predicate{
		Op:           core.Op,
		Property:     core.Property,
		Value:        core.Value,
		Values:       core.Values,
		RootTenantID: core.RootTenantID,
		BarrierMode:  core.BarrierMode,
		TenantStatus: core.TenantStatus,
		GroupIDs:     core.GroupIDs,
		RootGroupID:  core.RootGroupID,
		Extra:        extra,
	}
	return nil
}

// MarshalJSON emits the known fields plus any vendor extras.
func (p Predicate) MarshalJSON() ([]byte, error) {
	core := predicateCore{
		Op:           p.Op,
		Property:     p.Property,
		Value:        p.Value,
		Values:       p.Values,
		RootTenantID: p.RootTenantID,
		BarrierMode:  p.BarrierMode,
		TenantStatus: p.TenantStatus,
		GroupIDs:     p.GroupIDs,
		RootGroupID:  p.RootGroupID,
	}
	if len(p.Extra) == 0 {
		return json.Marshal(core)
	}

	base, err := json.Marshal(core)
	if err != nil {
		return nil, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range p.Extra {
		if !knownPredicateFields[k] {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}
