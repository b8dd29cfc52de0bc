package types

import "github.com/google/uuid"

// SecurityContext is the authenticated caller identity, produced by the
// authentication layer and consumed opaquely by the enforcement engine.
// Token validation happens upstream; this type only carries the result.
type SecurityContext struct {
	SubjectID       uuid.UUID
	SubjectType     string
	SubjectTenantID uuid.UUID
	TokenScopes     []string

	// bearerToken is deliberately unexported: it is forwarded to the PDP
	// and must never leak through serialization or logging.
	bearerToken string
}

// Anonymous returns a context with no authenticated subject.
func Anonymous() SecurityContext {
	return SecurityContext{}
}

// WithBearerToken returns a copy carrying the original bearer token for PDP
// forwarding.
func (c SecurityContext) WithBearerToken(token string) SecurityContext {
	c.bearerToken = token
	return c
}

// BearerToken returns the bearer token, empty if none was attached.
func (c SecurityContext) BearerToken() string {
	return c.bearerToken
}

// IsAnonymous reports whether no subject is attached.
func (c SecurityContext) IsAnonymous() bool {
	return c.SubjectID == uuid.Nil
}
