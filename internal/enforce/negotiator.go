package enforce

import (
	"sync"

	"github.com/authz-engine/pep-core/pkg/types"
)

// Negotiator declares which predicate families this deployment's data layer
// can execute, so the PDP can choose closure-table predicates over explicit
// ID expansion. The set is mutable only through Replace, which configuration
// reload uses; capabilities never change per request.
type Negotiator struct {
	mu  sync.RWMutex
	set types.CapabilitySet
}

// NewNegotiator builds a negotiator from the deployed capabilities. The set
// is normalized: group_hierarchy implies group_membership, since subtree
// expansion resolves through the membership table.
func NewNegotiator(caps ...types.Capability) *Negotiator {
	return &Negotiator{set: types.NewCapabilitySet(caps...).Normalize()}
}

// Declare returns the capability list to advertise in evaluation requests,
// in stable order.
func (n *Negotiator) Declare() []types.Capability {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.set.List()
}

// Supports reports whether a capability is declared.
func (n *Negotiator) Supports(c types.Capability) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.set.Has(c)
}

// Replace swaps the declared set, normalizing it. Used by configuration
// reload; in-flight evaluations keep the list they already read.
func (n *Negotiator) Replace(caps ...types.Capability) {
	set := types.NewCapabilitySet(caps...).Normalize()
	n.mu.Lock()
	n.set = set
	n.mu.Unlock()
}
