// Package scope provides the compiled, store-agnostic representation of
// "which rows are authorized": an AccessScope is either allow-all, deny-all,
// or an OR of AND-groups of column-level filters. The calling store layer
// translates it into a WHERE-equivalent condition; it is never applied as a
// post-filter over unrestricted data.
package scope

import (
	"fmt"

	"github.com/google/uuid"
)

// Well-known authorization property names, shared between the constraint
// compiler and store-layer column mapping.
const (
	// PropertyOwnerTenantID is the tenant-ownership property; it typically
	// maps to a tenant_id column.
	PropertyOwnerTenantID = "owner_tenant_id"
	// PropertyResourceID is the resource identity property; it typically
	// maps to the primary key column.
	PropertyResourceID = "id"
	// PropertyOwnerID is the owning-user property.
	PropertyOwnerID = "owner_id"
)

type valueKind int

const (
	kindUUID valueKind = iota
	kindString
	kindInt
	kindBool
)

// Value is a typed scalar used in scope filters. JSON conversion happens at
// the PDP boundary, not here.
type Value struct {
	kind valueKind
	u    uuid.UUID
	s    string
	i    int64
	b    bool
}

// UUIDValue wraps a UUID.
func UUIDValue(u uuid.UUID) Value { return Value{kind: kindUUID, u: u} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: kindString, s: s} }

// IntValue wraps an integer.
func IntValue(i int64) Value { return Value{kind: kindInt, i: i} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{kind: kindBool, b: b} }

// AsUUID extracts a UUID: directly for UUID values, by parsing for string
// values that hold a UUID.
func (v Value) AsUUID() (uuid.UUID, bool) {
	switch v.kind {
	case kindUUID:
		return v.u, true
	case kindString:
		if u, err := uuid.Parse(v.s); err == nil {
			return u, true
		}
	}
	return uuid.Nil, false
}

// Driver returns the value in a form suitable for database/sql parameters.
func (v Value) Driver() any {
	switch v.kind {
	case kindUUID:
		return v.u.String()
	case kindString:
		return v.s
	case kindInt:
		return v.i
	default:
		return v.b
	}
}

func (v Value) String() string {
	switch v.kind {
	case kindUUID:
		return v.u.String()
	case kindString:
		return v.s
	case kindInt:
		return fmt.Sprintf("%d", v.i)
	default:
		return fmt.Sprintf("%t", v.b)
	}
}

// FilterOp distinguishes equality from set membership.
type FilterOp int

const (
	// FilterEq matches property = value.
	FilterEq FilterOp = iota
	// FilterIn matches property IN (values).
	FilterIn
)

// Filter is a single typed predicate on a named resource property.
type Filter struct {
	op       FilterOp
	property string
	values   []Value
}

// Eq builds an equality filter.
func Eq(property string, value Value) Filter {
	return Filter{op: FilterEq, property: property, values: []Value{value}}
}

// In builds a set-membership filter.
func In(property string, values ...Value) Filter {
	return Filter{op: FilterIn, property: property, values: values}
}

// InUUIDs builds a set-membership filter over UUID values.
func InUUIDs(property string, ids ...uuid.UUID) Filter {
	values := make([]Value, len(ids))
	for i, id := range ids {
		values[i] = UUIDValue(id)
	}
	return Filter{op: FilterIn, property: property, values: values}
}

// Op returns the filter operation.
func (f Filter) Op() FilterOp { return f.op }

// Property returns the authorization property name.
func (f Filter) Property() string { return f.property }

// Values returns the filter values; equality filters hold exactly one.
func (f Filter) Values() []Value { return f.values }

// UUIDValues extracts the filter values as UUIDs, skipping non-UUID entries.
func (f Filter) UUIDValues() []uuid.UUID {
	var out []uuid.UUID
	for _, v := range f.values {
		if u, ok := v.AsUUID(); ok {
			out = append(out, u)
		}
	}
	return out
}

// Contains reports whether the filter admits the given value.
func (f Filter) Contains(v Value) bool {
	for _, fv := range f.values {
		if fv == v {
			return true
		}
	}
	return false
}

// Constraint is a conjunction of filters: one access path. All filters must
// match simultaneously for a row to be reachable through this path.
type Constraint struct {
	filters []Filter
}

// NewConstraint builds a constraint from filters.
func NewConstraint(filters ...Filter) Constraint {
	return Constraint{filters: filters}
}

// Filters returns the AND-ed filters.
func (c Constraint) Filters() []Filter { return c.filters }

// IsEmpty reports whether the constraint has no filters.
func (c Constraint) IsEmpty() bool { return len(c.filters) == 0 }

// AccessScope is a disjunction of constraints. Each constraint is an
// independent access path; an unconstrained scope bypasses row-level
// filtering as a legitimate authorization outcome, and the zero value denies
// everything.
type AccessScope struct {
	constraints   []Constraint
	unconstrained bool
}

// AllowAll returns the unconstrained scope.
func AllowAll() AccessScope {
	return AccessScope{unconstrained: true}
}

// DenyAll returns the unsatisfiable scope.
func DenyAll() AccessScope {
	return AccessScope{}
}

// FromConstraints builds a restricted scope (OR of the given constraints).
// Empty constraints are discarded; if none remain the result is deny-all,
// preserving the invariant that a restricted scope has at least one group
// with at least one filter.
func FromConstraints(constraints ...Constraint) AccessScope {
	kept := make([]Constraint, 0, len(constraints))
	for _, c := range constraints {
		if !c.IsEmpty() {
			kept = append(kept, c)
		}
	}
	return AccessScope{constraints: kept}
}

// Single builds a scope with one constraint.
func Single(c Constraint) AccessScope {
	return FromConstraints(c)
}

// ForTenants builds a scope restricted to the given owner tenants.
func ForTenants(ids ...uuid.UUID) AccessScope {
	return Single(NewConstraint(InUUIDs(PropertyOwnerTenantID, ids...)))
}

// ForTenant builds a scope restricted to one owner tenant.
func ForTenant(id uuid.UUID) AccessScope {
	return ForTenants(id)
}

// ForResources builds a scope restricted to the given resource IDs.
func ForResources(ids ...uuid.UUID) AccessScope {
	return Single(NewConstraint(InUUIDs(PropertyResourceID, ids...)))
}

// ForResource builds a scope restricted to one resource ID.
func ForResource(id uuid.UUID) AccessScope {
	return ForResources(id)
}

// Constraints returns the OR-ed constraint groups.
func (s AccessScope) Constraints() []Constraint { return s.constraints }

// IsUnconstrained reports whether the scope allows everything.
func (s AccessScope) IsUnconstrained() bool { return s.unconstrained }

// IsDenyAll reports whether the scope admits nothing: not unconstrained and
// no constraints.
func (s AccessScope) IsDenyAll() bool {
	return !s.unconstrained && len(s.constraints) == 0
}

// AllValuesFor collects every filter value for the property across all
// constraint groups.
func (s AccessScope) AllValuesFor(property string) []Value {
	var out []Value
	for _, c := range s.constraints {
		for _, f := range c.filters {
			if f.property == property {
				out = append(out, f.values...)
			}
		}
	}
	return out
}

// AllUUIDValuesFor collects every UUID filter value for the property.
func (s AccessScope) AllUUIDValuesFor(property string) []uuid.UUID {
	var out []uuid.UUID
	for _, v := range s.AllValuesFor(property) {
		if u, ok := v.AsUUID(); ok {
			out = append(out, u)
		}
	}
	return out
}

// ContainsValue reports whether any filter on the property admits the value.
func (s AccessScope) ContainsValue(property string, v Value) bool {
	for _, c := range s.constraints {
		for _, f := range c.filters {
			if f.property == property && f.Contains(v) {
				return true
			}
		}
	}
	return false
}

// ContainsUUID reports whether any filter on the property admits the UUID.
func (s AccessScope) ContainsUUID(property string, id uuid.UUID) bool {
	return s.ContainsValue(property, UUIDValue(id))
}

// HasProperty reports whether any constraint references the property.
func (s AccessScope) HasProperty(property string) bool {
	for _, c := range s.constraints {
		for _, f := range c.filters {
			if f.property == property {
				return true
			}
		}
	}
	return false
}
