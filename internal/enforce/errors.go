package enforce

import "errors"

// ErrForbidden is the only error callers see for any denial: policy deny,
// missing constraints, failed compilation, unreachable PDP. The reason is
// logged internally and never attached to the error, so a denial cannot leak
// whether a resource or tenant exists or why access was refused.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound is returned when a scoped operation matched zero rows. The
// caller cannot distinguish "does not exist" from "exists outside your
// scope"; that ambiguity is the point.
var ErrNotFound = errors.New("not found")
