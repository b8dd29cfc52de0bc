package scope

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ColumnResolver maps an authorization property name to a physical column
// for one table. Returning false fails the translation: an unmapped property
// must never silently widen a query.
type ColumnResolver func(property string) (string, bool)

// ErrUnconditional is returned by SQL for unconstrained scopes: there is no
// condition to attach, and callers must not fabricate one.
var ErrUnconditional = fmt.Errorf("scope is unconstrained; no condition to render")

// SQL renders the scope as a parenthesized WHERE fragment with positional
// parameters starting at startArg. Equality filters render as "col = $n";
// membership filters render as "col = ANY($n)" with a pq.Array parameter so
// the argument count stays independent of the value count.
//
// Deny-all renders as the constant FALSE with no parameters, so a scoped
// statement still executes and affects zero rows rather than branching into
// a separate code path.
func (s AccessScope) SQL(resolve ColumnResolver, startArg int) (string, []any, error) {
	if s.unconstrained {
		return "", nil, ErrUnconditional
	}
	if s.IsDenyAll() {
		return "(FALSE)", nil, nil
	}

	var groups []string
	var args []any
	n := startArg

	for _, c := range s.constraints {
		var parts []string
		for _, f := range c.filters {
			col, ok := resolve(f.property)
			if !ok {
				return "", nil, fmt.Errorf("no column mapping for property %q", f.property)
			}
			switch f.op {
			case FilterEq:
				parts = append(parts, fmt.Sprintf("%s = $%d", col, n))
				args = append(args, f.values[0].Driver())
				n++
			case FilterIn:
				parts = append(parts, fmt.Sprintf("%s = ANY($%d)", col, n))
				drivers := make([]any, len(f.values))
				for i, v := range f.values {
					drivers[i] = v.Driver()
				}
				args = append(args, pq.Array(drivers))
				n++
			default:
				return "", nil, fmt.Errorf("unknown filter op %d", f.op)
			}
		}
		groups = append(groups, "("+strings.Join(parts, " AND ")+")")
	}

	return "(" + strings.Join(groups, " OR ") + ")", args, nil
}
