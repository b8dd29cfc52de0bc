// Package enforce turns PDP answers into enforced outcomes: an allow-all
// scope, a compiled restricted scope, or a denial. Every ambiguous or broken
// answer denies; the package never widens access to recover from a failure.
package enforce

import (
	"github.com/authz-engine/pep-core/pkg/types"
)

// Outcome classifies a PDP response before any constraint compilation.
type Outcome int

const (
	// OutcomeDeny rejects the operation outright.
	OutcomeDeny Outcome = iota
	// OutcomeAllowAll permits the operation without row-level scoping.
	OutcomeAllowAll
	// OutcomeCompile permits the operation subject to the compiled scope.
	OutcomeCompile
)

// Decide applies the decision table to a PDP response. The absent-vs-empty
// distinction on constraints is deliberate: an absent field means the PDP
// chose not to scope, an empty list means it scoped to nothing.
//
//	decision=false                          -> deny
//	decision=true, absent, require=true     -> deny (constraints demanded, none given)
//	decision=true, absent, require=false    -> allow all
//	decision=true, present, empty           -> deny (OR over empty set)
//	decision=true, present, non-empty       -> compile
func Decide(resp *types.EvaluationResponse, requireConstraints bool) Outcome {
	if resp == nil || !resp.Decision {
		return OutcomeDeny
	}
	if !resp.HasConstraints() {
		if requireConstraints {
			return OutcomeDeny
		}
		return OutcomeAllowAll
	}
	if len(resp.ConstraintList()) == 0 {
		return OutcomeDeny
	}
	return OutcomeCompile
}
