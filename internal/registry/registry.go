// Package registry defines the known predicate shapes and dispatches each to
// its scope-builder. Built-in handlers are pre-registered; vendor handlers
// are added at startup. Resolution misses are reported to the caller, which
// must treat them as constraint-level failure, never as "skip this filter".
package registry

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/authz-engine/pep-core/pkg/scope"
	"github.com/authz-engine/pep-core/pkg/types"
)

// BuildEnv gives scope-builders access to the closure query engine. It is
// injected per compile call; handlers must not hold onto it. A nil BuildEnv
// means the caller has no closure tables, and hierarchical builders fail
// closed.
type BuildEnv interface {
	// TenantSubtree returns the descendant tenant IDs reachable from root,
	// honoring barrier and status filtering. The root itself is included.
	TenantSubtree(ctx context.Context, root uuid.UUID, barrier types.BarrierMode, status []string) ([]uuid.UUID, error)
	// GroupMembers returns the resource IDs belonging to any of the groups.
	GroupMembers(ctx context.Context, groupIDs []uuid.UUID) ([]uuid.UUID, error)
	// GroupSubtreeMembers returns the resource IDs belonging to any group in
	// the subtree rooted at root (root included).
	GroupSubtreeMembers(ctx context.Context, root uuid.UUID) ([]uuid.UUID, error)
}

// Handler validates a predicate's raw fields and builds its column-level
// filter. Both functions are pure apart from closure lookups, so each
// predicate type is unit-testable on its own.
type Handler struct {
	Validate func(p types.Predicate) error
	Build    func(ctx context.Context, p types.Predicate, env BuildEnv) (scope.Filter, error)
}

// Registry maps predicate type tags to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New returns a registry with the built-in predicate types registered.
func New() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.handlers[types.OpEq] = eqHandler()
	r.handlers[types.OpIn] = inHandler()
	r.handlers[types.OpInTenantSubtree] = tenantSubtreeHandler()
	r.handlers[types.OpInGroup] = groupHandler()
	r.handlers[types.OpInGroupSubtree] = groupSubtreeHandler()
	return r
}

// Register adds a vendor predicate type. Overriding a registered tag is
// rejected so a misconfigured plugin cannot weaken a built-in.
func (r *Registry) Register(tag string, h Handler) error {
	if tag == "" {
		return fmt.Errorf("predicate tag must not be empty")
	}
	if h.Validate == nil || h.Build == nil {
		return fmt.Errorf("predicate %q: handler requires both Validate and Build", tag)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[tag]; exists {
		return fmt.Errorf("predicate %q already registered", tag)
	}
	r.handlers[tag] = h
	return nil
}

// Resolve looks up the handler for a tag. A miss means the predicate type is
// unknown and its constraint must fail closed.
func (r *Registry) Resolve(tag string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[tag]
	return h, ok
}

// Tags returns the registered predicate tags.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.handlers))
	for tag := range r.handlers {
		tags = append(tags, tag)
	}
	return tags
}

// Built-in handlers.

func eqHandler() Handler {
	return Handler{
		Validate: func(p types.Predicate) error {
			if p.Property == "" {
				return fmt.Errorf("eq: missing property")
			}
			if p.Value == nil {
				return fmt.Errorf("eq: missing value")
			}
			return nil
		},
		Build: func(_ context.Context, p types.Predicate, _ BuildEnv) (scope.Filter, error) {
			v, err := ValueFromJSON(p.Value)
			if err != nil {
				return scope.Filter{}, fmt.Errorf("eq %q: %w", p.Property, err)
			}
			return scope.Eq(p.Property, v), nil
		},
	}
}

func inHandler() Handler {
	return Handler{
		Validate: func(p types.Predicate) error {
			if p.Property == "" {
				return fmt.Errorf("in: missing property")
			}
			if len(p.Values) == 0 {
				return fmt.Errorf("in: missing values")
			}
			return nil
		},
		Build: func(_ context.Context, p types.Predicate, _ BuildEnv) (scope.Filter, error) {
			values := make([]scope.Value, len(p.Values))
			for i, raw := range p.Values {
				v, err := ValueFromJSON(raw)
				if err != nil {
					return scope.Filter{}, fmt.Errorf("in %q: %w", p.Property, err)
				}
				values[i] = v
			}
			return scope.In(p.Property, values...), nil
		},
	}
}

func tenantSubtreeHandler() Handler {
	return Handler{
		Validate: func(p types.Predicate) error {
			if p.Property == "" {
				return fmt.Errorf("in_tenant_subtree: missing property")
			}
			if p.RootTenantID == nil {
				return fmt.Errorf("in_tenant_subtree: missing root_tenant_id")
			}
			switch p.BarrierMode {
			case "", types.BarrierModeAll, types.BarrierModeNone:
			default:
				return fmt.Errorf("in_tenant_subtree: unknown barrier_mode %q", p.BarrierMode)
			}
			return nil
		},
		Build: func(ctx context.Context, p types.Predicate, env BuildEnv) (scope.Filter, error) {
			if env == nil {
				return scope.Filter{}, fmt.Errorf("in_tenant_subtree: no tenant closure table available")
			}
			barrier := p.BarrierMode
			if barrier == "" {
				barrier = types.BarrierModeAll
			}
			ids, err := env.TenantSubtree(ctx, *p.RootTenantID, barrier, p.TenantStatus)
			if err != nil {
				return scope.Filter{}, fmt.Errorf("in_tenant_subtree: %w", err)
			}
			return scope.InUUIDs(p.Property, ids...), nil
		},
	}
}

func groupHandler() Handler {
	return Handler{
		Validate: func(p types.Predicate) error {
			if p.Property == "" {
				return fmt.Errorf("in_group: missing property")
			}
			if len(p.GroupIDs) == 0 {
				return fmt.Errorf("in_group: missing group_ids")
			}
			return nil
		},
		Build: func(ctx context.Context, p types.Predicate, env BuildEnv) (scope.Filter, error) {
			if env == nil {
				return scope.Filter{}, fmt.Errorf("in_group: no membership table available")
			}
			ids, err := env.GroupMembers(ctx, p.GroupIDs)
			if err != nil {
				return scope.Filter{}, fmt.Errorf("in_group: %w", err)
			}
			return scope.InUUIDs(p.Property, ids...), nil
		},
	}
}

func groupSubtreeHandler() Handler {
	return Handler{
		Validate: func(p types.Predicate) error {
			if p.Property == "" {
				return fmt.Errorf("in_group_subtree: missing property")
			}
			if p.RootGroupID == nil {
				return fmt.Errorf("in_group_subtree: missing root_group_id")
			}
			return nil
		},
		Build: func(ctx context.Context, p types.Predicate, env BuildEnv) (scope.Filter, error) {
			if env == nil {
				return scope.Filter{}, fmt.Errorf("in_group_subtree: no group closure table available")
			}
			ids, err := env.GroupSubtreeMembers(ctx, *p.RootGroupID)
			if err != nil {
				return scope.Filter{}, fmt.Errorf("in_group_subtree: %w", err)
			}
			return scope.InUUIDs(p.Property, ids...), nil
		},
	}
}

// ValueFromJSON converts a decoded JSON scalar into a scope value. Strings
// holding a UUID become UUID values; only integer numbers are accepted, and
// composite values are rejected.
func ValueFromJSON(raw any) (scope.Value, error) {
	switch v := raw.(type) {
	case string:
		if u, err := uuid.Parse(v); err == nil {
			return scope.UUIDValue(u), nil
		}
		return scope.StringValue(v), nil
	case bool:
		return scope.BoolValue(v), nil
	case float64:
		if v != math.Trunc(v) {
			return scope.Value{}, fmt.Errorf("non-integer number %v not supported in scope filters", v)
		}
		return scope.IntValue(int64(v)), nil
	case int:
		return scope.IntValue(int64(v)), nil
	case int64:
		return scope.IntValue(v), nil
	case uuid.UUID:
		return scope.UUIDValue(v), nil
	default:
		return scope.Value{}, fmt.Errorf("unsupported value type %T in scope filter", raw)
	}
}
