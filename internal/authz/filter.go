package authz

// BuildFilter produces the row-level-security fragment for one request.
// It never returns an error and never panics: every input, including
// misconfigured or unrecognized ones, maps to a defined safe output.
//
// Decision table, evaluated in order:
//
//  1. nil auth context            -> empty clause, applied=false
//  2. policy all_records          -> empty clause, applied=true
//  3. unset policy, permissive    -> empty clause, applied=false
//  4. unset policy, failsafe      -> 1=0, applied=true
//  5. recognized ownership policy -> owner column = caller id, applied=true
//     (no caller identity         -> 1=0, applied=true)
//  6. anything else               -> 1=0, applied=true
//
// The fragment's single placeholder, when present, is written as $1 in
// the fragment's own coordinate space; Compose renumbers it to the
// caller's absolute position.
func BuildFilter(actx *RequestAuthContext, rule ResourceRule) Fragment {
	if actx == nil {
		return NewFragment(nil, false)
	}

	switch actx.Policy {
	case PolicyAllRecords:
		return NewFragment(nil, true)
	case PolicyUnset:
		if rule.Classification == Permissive {
			return NewFragment(nil, false)
		}
		// Failsafe, and equally any resource whose classification never
		// got configured: an unset policy grants nothing.
		return NewFragment(RawFalse(), true)
	}

	if column, ok := rule.OwnerColumns[actx.Policy]; ok {
		if actx.UserID <= 0 {
			// A named ownership policy with no identity to bind is a
			// runtime anomaly, not an invitation to allow everything.
			return NewFragment(RawFalse(), true)
		}
		return NewFragment(Equals(qualify(rule.Alias, column), actx.UserID), true)
	}

	// Unrecognized token. Unknown must never mean allow.
	return NewFragment(RawFalse(), true)
}

func qualify(alias, column string) string {
	if alias == "" {
		return column
	}
	return alias + "." + column
}
