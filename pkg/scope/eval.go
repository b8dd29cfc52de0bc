package scope

// Row is a property-to-value view of a single record, used for in-process
// scope evaluation.
type Row map[string]Value

// Matches evaluates the scope against a row: true for unconstrained scopes,
// false for deny-all, otherwise true if any constraint group matches the row
// in full. A filter on a property the row does not carry fails that group.
//
// This evaluator exists for in-process checks and tests; store queries apply
// the scope through the SQL builder instead, never as a post-filter.
func (s AccessScope) Matches(row Row) bool {
	if s.unconstrained {
		return true
	}
	for _, c := range s.constraints {
		if constraintMatches(c, row) {
			return true
		}
	}
	return false
}

func constraintMatches(c Constraint, row Row) bool {
	if c.IsEmpty() {
		return false
	}
	for _, f := range c.filters {
		v, ok := row[f.property]
		if !ok || !f.Contains(v) {
			return false
		}
	}
	return true
}
