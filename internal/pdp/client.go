// Package pdp provides clients for the policy decision point. The engine
// treats the PDP as a remote collaborator: one evaluation call per request,
// no internal retries, and every transport or protocol failure reported with
// enough classification for the enforcer to deny and log it distinctly.
package pdp

import (
	"context"
	"errors"

	"github.com/authz-engine/pep-core/pkg/types"
)

// ErrUnreachable marks transport-level failures: connection refused, timeout,
// upstream 5xx. Enforcement treats it as deny and logs it as an availability
// incident rather than a policy decision.
var ErrUnreachable = errors.New("pdp unreachable")

// ErrMalformedResponse marks protocol-level failures: undecodable body,
// unexpected status, contract violations. Enforcement treats it as deny.
var ErrMalformedResponse = errors.New("malformed pdp response")

// Client evaluates authorization questions against a PDP.
type Client interface {
	// Evaluate asks one authorization question. The context bounds the call;
	// an expired context surfaces as ErrUnreachable.
	Evaluate(ctx context.Context, req *types.EvaluationRequest) (*types.EvaluationResponse, error)
	// EvaluateBatch asks several questions and returns answers in request
	// order. Any individual failure fails the whole batch.
	EvaluateBatch(ctx context.Context, reqs []types.EvaluationRequest) ([]types.EvaluationResponse, error)
	// Close releases transport resources.
	Close() error
}

// IsUnreachable reports whether the error is a transport-level PDP failure.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}
