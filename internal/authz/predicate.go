package authz

import (
	"fmt"
	"strconv"
	"strings"
)

// Predicate is a minimal tagged predicate tree. Fragments of SQL are
// never assembled by string surgery in the decision logic; predicates are
// rendered to clause text and positional values only at this boundary.
type Predicate interface {
	// render writes the predicate using placeholders starting at $start
	// and returns the bound values in placeholder order.
	render(start int) (string, []any)
}

type equalsPred struct {
	column string
	value  any
}

func (p equalsPred) render(start int) (string, []any) {
	return p.column + " = $" + strconv.Itoa(start), []any{p.value}
}

type rawFalsePred struct{}

func (rawFalsePred) render(int) (string, []any) { return "1=0", nil }

type andPred []Predicate

func (p andPred) render(start int) (string, []any) {
	parts := make([]string, 0, len(p))
	var values []any
	for _, child := range p {
		clause, vals := child.render(start + len(values))
		parts = append(parts, clause)
		values = append(values, vals...)
	}
	return strings.Join(parts, " AND "), values
}

// Equals matches a column against a single bound value.
func Equals(column string, value any) Predicate { return equalsPred{column: column, value: value} }

// RawFalse is the constant deny-all predicate.
func RawFalse() Predicate { return rawFalsePred{} }

// And conjoins predicates in order.
func And(preds ...Predicate) Predicate { return andPred(preds) }

// Fragment is one rendered predicate unit: clause text in its own $1..$n
// coordinate space, the bound values in placeholder order, and a flag
// recording whether row-level security was actually evaluated.
type Fragment struct {
	Clause  string
	Values  []any
	Applied bool
}

// NewFragment renders a predicate into a Fragment. A nil predicate yields
// an empty clause, which composes as a no-op.
func NewFragment(p Predicate, applied bool) Fragment {
	if p == nil {
		return Fragment{Applied: applied}
	}
	clause, values := p.render(1)
	return Fragment{Clause: clause, Values: values, Applied: applied}
}

// Compose merges the row-level-security fragment into a previously built
// predicate. existingClause holds the conditions already folded in by the
// query builder (search, field filters) without the WHERE keyword, using
// placeholders $1..$len(existingValues). The fragment's placeholders are
// renumbered to continue that sequence. RLS is always the last fragment
// appended, so only its own placeholders ever move.
//
// The returned clause is prefixed with WHERE when non-empty. The applied
// flag is the fragment's: it can be true with nothing appended (policy
// explicitly granted all records), which callers surface to distinguish
// "restriction evaluated" from "no restriction configured".
func Compose(existingClause string, existingValues []any, frag Fragment) (string, []any, bool, error) {
	clause := strings.TrimSpace(existingClause)
	clause = strings.TrimPrefix(clause, "WHERE ")
	values := existingValues

	if frag.Clause != "" {
		shifted, err := renumberPlaceholders(frag.Clause, len(existingValues))
		if err != nil {
			return "", nil, false, err
		}
		if clause == "" {
			clause = shifted
		} else {
			clause = clause + " AND " + shifted
		}
		values = append(append([]any{}, existingValues...), frag.Values...)
	}

	if err := checkPlaceholders(clause, len(values)); err != nil {
		return "", nil, false, err
	}
	if clause != "" {
		clause = "WHERE " + clause
	}
	return clause, values, frag.Applied, nil
}

// ShiftPlaceholders rewrites every $i in clause to $(i+offset). The
// data-access layer uses it to slot an already-composed predicate after
// parameters consumed by SET lists and similar prefixes.
func ShiftPlaceholders(clause string, offset int) (string, error) {
	return renumberPlaceholders(clause, offset)
}

// renumberPlaceholders rewrites every $i in clause to $(i+offset).
func renumberPlaceholders(clause string, offset int) (string, error) {
	if offset == 0 {
		return clause, nil
	}
	var b strings.Builder
	b.Grow(len(clause) + 4)
	for i := 0; i < len(clause); {
		if clause[i] != '$' {
			b.WriteByte(clause[i])
			i++
			continue
		}
		j := i + 1
		for j < len(clause) && clause[j] >= '0' && clause[j] <= '9' {
			j++
		}
		if j == i+1 {
			return "", fmt.Errorf("authz: bare $ in predicate fragment %q", clause)
		}
		n, err := strconv.Atoi(clause[i+1 : j])
		if err != nil {
			return "", fmt.Errorf("authz: malformed placeholder in %q: %w", clause, err)
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n + offset))
		i = j
	}
	return b.String(), nil
}

// checkPlaceholders enforces the round-trip invariant: the placeholders
// appearing in clause are exactly the contiguous sequence $1..$n with no
// gaps or repeats, where n is the number of bound values. A violation is
// a configuration defect, never plausible runtime input.
func checkPlaceholders(clause string, n int) error {
	seen := make(map[int]int)
	count := 0
	max := 0
	for i := 0; i < len(clause); {
		if clause[i] != '$' {
			i++
			continue
		}
		j := i + 1
		for j < len(clause) && clause[j] >= '0' && clause[j] <= '9' {
			j++
		}
		if j == i+1 {
			return fmt.Errorf("authz: bare $ in composed clause %q", clause)
		}
		idx, err := strconv.Atoi(clause[i+1 : j])
		if err != nil {
			return fmt.Errorf("authz: malformed placeholder in %q: %w", clause, err)
		}
		seen[idx]++
		count++
		if idx > max {
			max = idx
		}
		i = j
	}
	if count != n || max != n {
		return fmt.Errorf("authz: clause %q binds %d placeholders for %d values", clause, count, n)
	}
	for k := 1; k <= n; k++ {
		if seen[k] != 1 {
			return fmt.Errorf("authz: clause %q placeholder $%d repeated or missing", clause, k)
		}
	}
	return nil
}
