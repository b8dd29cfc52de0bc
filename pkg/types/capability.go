package types

// CapabilitySet is the set of predicate families the caller's data layer can
// execute locally.
type CapabilitySet map[Capability]bool

// NewCapabilitySet builds a normalized set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = true
	}
	return s.Normalize()
}

// Normalize applies capability implications: group_hierarchy implies
// group_membership. Returns the receiver for chaining.
func (s CapabilitySet) Normalize() CapabilitySet {
	if s[CapabilityGroupHierarchy] {
		s[CapabilityGroupMembership] = true
	}
	return s
}

// Has reports whether the capability is declared.
func (s CapabilitySet) Has(c Capability) bool {
	return s[c]
}

// List returns the declared capabilities in a stable order suitable for the
// evaluation request wire format.
func (s CapabilitySet) List() []Capability {
	ordered := []Capability{
		CapabilityTenantHierarchy,
		CapabilityGroupMembership,
		CapabilityGroupHierarchy,
	}
	var out []Capability
	for _, c := range ordered {
		if s[c] {
			out = append(out, c)
		}
	}
	return out
}
