// Package compiler converts a decision's constraint list into one
// AccessScope: AND across predicates inside a constraint, OR across
// constraints, fail-closed on every unknown or malformed element.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/authz-engine/pep-core/internal/registry"
	"github.com/authz-engine/pep-core/pkg/scope"
	"github.com/authz-engine/pep-core/pkg/types"
)

// ErrAllConstraintsFailed means every constraint in the list reduced to
// false. The compiled result is deny; the error carries the reasons for the
// internal log record only.
var ErrAllConstraintsFailed = errors.New("all constraints failed compilation")

// ErrNoConstraints means the constraint list was present but empty: an OR
// over the empty set, which denies.
var ErrNoConstraints = errors.New("constraint list is empty")

// Compiler compiles PDP constraints against a predicate registry.
type Compiler struct {
	reg    *registry.Registry
	logger *zap.Logger
}

// New creates a compiler.
func New(reg *registry.Registry, logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{reg: reg, logger: logger}
}

// Compile turns the constraint list into an AccessScope. The list must be
// present; the absent-constraints cases belong to decision enforcement, not
// here. A constraint whose predicates cannot all be compiled contributes
// nothing to the OR; if no constraint survives, the result is deny-all and
// the returned error describes why for the internal log.
//
// env supplies closure-table access for hierarchical predicates and may be
// nil, in which case those predicates fail closed.
func (c *Compiler) Compile(ctx context.Context, constraints []types.Constraint, supported []string, env registry.BuildEnv) (scope.AccessScope, error) {
	if len(constraints) == 0 {
		return scope.DenyAll(), ErrNoConstraints
	}

	supportedSet := make(map[string]bool, len(supported))
	for _, p := range supported {
		supportedSet[p] = true
	}

	var compiled []scope.Constraint
	var failReasons []string

	for i, constraint := range constraints {
		sc, err := c.compileConstraint(ctx, constraint, supportedSet, env)
		if err != nil {
			// A failed constraint is dropped from the OR, never widened.
			c.logger.Warn("constraint compilation failed, dropping constraint",
				zap.Int("constraint_index", i),
				zap.Error(err),
			)
			failReasons = append(failReasons, err.Error())
			continue
		}
		compiled = append(compiled, sc)
	}

	if len(compiled) == 0 {
		return scope.DenyAll(), fmt.Errorf("%w: %s", ErrAllConstraintsFailed, strings.Join(failReasons, "; "))
	}
	return scope.FromConstraints(compiled...), nil
}

// compileConstraint compiles one AND-group. Any predicate failure fails the
// whole constraint.
func (c *Compiler) compileConstraint(ctx context.Context, constraint types.Constraint, supported map[string]bool, env registry.BuildEnv) (scope.Constraint, error) {
	if len(constraint.Predicates) == 0 {
		return scope.Constraint{}, fmt.Errorf("constraint has no predicates")
	}

	filters := make([]scope.Filter, 0, len(constraint.Predicates))
	for _, p := range constraint.Predicates {
		if !supported[p.Property] {
			// The PDP sent a property the caller never declared. That is a
			// contract violation on the PDP side, not caller input.
			c.logger.Error("predicate references unsupported property, PDP contract violation",
				zap.String("op", p.Op),
				zap.String("property", p.Property),
			)
			return scope.Constraint{}, fmt.Errorf("unsupported property %q", p.Property)
		}

		handler, ok := c.reg.Resolve(p.Op)
		if !ok {
			c.logger.Error("unknown predicate type, PDP contract violation",
				zap.String("op", p.Op),
				zap.String("property", p.Property),
			)
			return scope.Constraint{}, fmt.Errorf("unknown predicate type %q", p.Op)
		}
		if err := handler.Validate(p); err != nil {
			c.logger.Error("malformed predicate, PDP contract violation",
				zap.String("op", p.Op),
				zap.Error(err),
			)
			return scope.Constraint{}, fmt.Errorf("invalid predicate %q: %w", p.Op, err)
		}

		filter, err := handler.Build(ctx, p, env)
		if err != nil {
			return scope.Constraint{}, fmt.Errorf("building predicate %q: %w", p.Op, err)
		}
		filters = append(filters, filter)
	}

	return scope.NewConstraint(filters...), nil
}
