// Package types provides the shared wire types for the enforcement engine:
// evaluation requests and responses exchanged with the PDP, constraints,
// predicates and capability declarations. The model follows AuthZEN 1.0
// (subject + action + resource + context) with constraint extensions.
package types

import (
	"github.com/google/uuid"
)

// TenantMode selects how the tenant hierarchy is expanded during evaluation.
type TenantMode string

const (
	// TenantModeRootOnly restricts evaluation to the root tenant itself.
	TenantModeRootOnly TenantMode = "root_only"
	// TenantModeSubtree includes the root tenant and all descendants (default).
	TenantModeSubtree TenantMode = "subtree"
)

// BarrierMode controls whether barrier edges stop subtree expansion.
type BarrierMode string

const (
	// BarrierModeAll respects every barrier: expansion stops at barrier
	// edges (default).
	BarrierModeAll BarrierMode = "all"
	// BarrierModeNone ignores barriers and traverses the full subtree.
	BarrierModeNone BarrierMode = "none"
)

// Capability declares a predicate family the caller's data layer can execute.
type Capability string

const (
	CapabilityTenantHierarchy Capability = "tenant_hierarchy"
	CapabilityGroupMembership Capability = "group_membership"
	CapabilityGroupHierarchy  Capability = "group_hierarchy"
)

// Subject is the authenticated entity making the request.
type Subject struct {
	ID uuid.UUID `json:"id"`
	// Type is serialized as "type" to match the AuthZEN field name.
	Type string `json:"type,omitempty"`
	// Properties carries additional subject attributes; the subject's home
	// tenant travels here under "tenant_id".
	Properties map[string]any `json:"properties,omitempty"`
}

// Action is the operation being performed (list, get, create, update, delete).
type Action struct {
	Name string `json:"name"`
}

// Resource identifies what is being accessed.
type Resource struct {
	Type string `json:"type"`
	// ID is set for point reads and mutations of a single resource.
	ID *uuid.UUID `json:"id,omitempty"`
	// Properties carries resource attributes for ABAC evaluation, e.g. the
	// prefetched owning tenant during the mutation protocol.
	Properties map[string]any `json:"properties,omitempty"`
}

// TenantContext scopes the evaluation to a tenant hierarchy position.
type TenantContext struct {
	Mode TenantMode `json:"mode,omitempty"`
	// RootID is the tenant being operated on. When nil the PDP determines
	// the context tenant by its own rules.
	RootID       *uuid.UUID  `json:"root_id,omitempty"`
	BarrierMode  BarrierMode `json:"barrier_mode,omitempty"`
	TenantStatus []string    `json:"tenant_status,omitempty"`
}

// RequestContext is the context block of an evaluation request.
type RequestContext struct {
	TenantContext *TenantContext `json:"tenant_context,omitempty"`
	TokenScopes   []string       `json:"token_scopes,omitempty"`
	// RequireConstraints tells the PDP that the caller needs row-level
	// constraints. When true and the PDP returns none, enforcement denies.
	RequireConstraints bool `json:"require_constraints"`
	// Capabilities advertises which predicate families the caller can
	// execute locally, so the PDP can choose between closure-table
	// predicates and explicit-ID expansion.
	Capabilities        []Capability `json:"capabilities,omitempty"`
	SupportedProperties []string     `json:"supported_properties,omitempty"`
	// BearerToken is forwarded to the PDP out of band and must never be
	// serialized or logged.
	BearerToken string `json:"-"`
}

// EvaluationRequest is a single authorization question for the PDP.
type EvaluationRequest struct {
	Subject  Subject        `json:"subject"`
	Action   Action         `json:"action"`
	Resource Resource       `json:"resource"`
	Context  RequestContext `json:"context"`
}

// DenyReason explains an explicit deny. ErrorCode is a namespaced string for
// programmatic handling; Details is for internal logs only and must never be
// surfaced to the original caller.
type DenyReason struct {
	ErrorCode string `json:"error_code"`
	Details   string `json:"details,omitempty"`
}

// ResponseContext is the context block of an evaluation response.
type ResponseContext struct {
	// Constraints is nil when the PDP returned no constraints field at all,
	// and non-nil (possibly empty) when it did. The distinction matters:
	// a present-but-empty list is an OR over the empty set and denies.
	Constraints *[]Constraint `json:"constraints,omitempty"`
	DenyReason  *DenyReason   `json:"deny_reason,omitempty"`
}

// EvaluationResponse is the PDP's answer to one evaluation request.
type EvaluationResponse struct {
	Decision bool            `json:"decision"`
	Context  ResponseContext `json:"context"`
}

// HasConstraints reports whether the response carries a constraints field,
// even an empty one.
func (r *EvaluationResponse) HasConstraints() bool {
	return r.Context.Constraints != nil
}

// ConstraintList returns the constraints, or nil when the field was absent.
func (r *EvaluationResponse) ConstraintList() []Constraint {
	if r.Context.Constraints == nil {
		return nil
	}
	return *r.Context.Constraints
}
