package entity

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ListQuery holds the parsed listing parameters for one request.
type ListQuery struct {
	Search  string
	Filters map[string]string
	SortBy  string
	SortDir string
	Page    int
	PerPage int
}

// QueryBuilder folds search and field-filter conditions into a single
// predicate, numbering placeholders from $1. It reports how many
// parameters it consumed so the row-level-security fragment can be
// renumbered past them; RLS is always composed after this builder has
// finished.
type QueryBuilder struct {
	meta       Metadata
	conditions []string
	values     []any
}

// NewQueryBuilder starts an empty predicate for the entity.
func NewQueryBuilder(meta Metadata) *QueryBuilder {
	return &QueryBuilder{meta: meta}
}

// stripDiacritics folds accented search input so "Renée" matches "Renee".
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ApplySearch adds an ILIKE condition per searchable column. Each column
// binds its own placeholder to keep the composed clause's placeholders
// contiguous and unrepeated.
func (b *QueryBuilder) ApplySearch(term string) {
	term = strings.TrimSpace(term)
	if term == "" || len(b.meta.Searchable) == 0 {
		return
	}
	if folded, _, err := transform.String(stripDiacritics, term); err == nil {
		term = folded
	}
	pattern := "%" + term + "%"

	parts := make([]string, 0, len(b.meta.Searchable))
	for _, column := range b.meta.Searchable {
		parts = append(parts, fmt.Sprintf("%s.%s ILIKE $%d", b.meta.Alias, column, len(b.values)+1))
		b.values = append(b.values, pattern)
	}
	b.conditions = append(b.conditions, "("+strings.Join(parts, " OR ")+")")
}

// ApplyFilters adds an equality condition per recognized filterable
// field. Unknown fields are ignored rather than interpolated; field
// names never reach the SQL text unless they are in the whitelist.
func (b *QueryBuilder) ApplyFilters(filters map[string]string) {
	for _, column := range b.meta.Filterable {
		value, ok := filters[column]
		if !ok || value == "" {
			continue
		}
		b.conditions = append(b.conditions,
			fmt.Sprintf("%s.%s = $%d", b.meta.Alias, column, len(b.values)+1))
		b.values = append(b.values, value)
	}
}

// Clause returns the folded predicate without the WHERE keyword, and the
// values bound so far in placeholder order.
func (b *QueryBuilder) Clause() (string, []any) {
	return strings.Join(b.conditions, " AND "), b.values
}

// ParamOffset reports how many parameters the builder has consumed.
func (b *QueryBuilder) ParamOffset() int {
	return len(b.values)
}

// OrderBy renders the ORDER BY clause. Only whitelisted sortable columns
// are accepted; anything else falls back to the id column so a hostile
// sort parameter can never reach the SQL text.
func (b *QueryBuilder) OrderBy(sortBy, direction string) string {
	column := b.meta.IDColumn
	if sortBy != "" && b.meta.sortable(sortBy) {
		column = sortBy
	}
	dir := "ASC"
	if strings.EqualFold(direction, "desc") {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s.%s %s", b.meta.Alias, column, dir)
}

// Limit renders LIMIT/OFFSET continuing the placeholder sequence from n
// already-bound parameters, and returns the two extra values.
func Limit(n, limit, offset int) (string, []any) {
	return "LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2),
		[]any{limit, offset}
}
