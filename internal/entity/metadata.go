// Package entity exposes every registered resource through one generic
// CRUD surface: a metadata registry describing each entity, a request
// pipeline that gates and scopes access, a query builder for listing
// parameters, and a pgx-backed repository executing the composed
// predicates.
package entity

import (
	"fmt"
	"sort"
)

// AccessMode controls whether a field may be written by an operation.
type AccessMode string

const (
	AccessNone AccessMode = "none"
	AccessFull AccessMode = "full"
)

// FieldAccess describes write rules for one field.
type FieldAccess struct {
	Create   AccessMode
	Update   AccessMode
	Required bool
}

// Metadata is the static description of one logical entity.
type Metadata struct {
	// Name is the internal entity key, e.g. "work_order".
	Name string
	// Resource is the authorization resource name, e.g. "work_orders".
	Resource string
	Table    string
	Alias    string
	IDColumn string
	// Columns lists every selectable column, in stable output order.
	Columns    []string
	Searchable []string
	Filterable []string
	Sortable   []string
	// Immutable fields are never updateable regardless of access mode.
	Immutable map[string]struct{}
	Access    map[string]FieldAccess
}

// RequiredFields returns the fields a create payload must carry.
func (m Metadata) RequiredFields() []string {
	var fields []string
	for name, access := range m.Access {
		if access.Required && access.Create != AccessNone {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields
}

// UpdatableFields returns the fields an update payload may touch: not in
// the immutable set, and with a non-none update access mode.
func (m Metadata) UpdatableFields() []string {
	var fields []string
	for name, access := range m.Access {
		if _, frozen := m.Immutable[name]; frozen {
			continue
		}
		if access.Update == AccessNone {
			continue
		}
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// CreatableFields returns the fields a create payload may carry.
func (m Metadata) CreatableFields() []string {
	var fields []string
	for name, access := range m.Access {
		if access.Create == AccessNone {
			continue
		}
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

func (m Metadata) sortable(column string) bool {
	for _, c := range m.Sortable {
		if c == column {
			return true
		}
	}
	return false
}

func (m Metadata) filterable(column string) bool {
	for _, c := range m.Filterable {
		if c == column {
			return true
		}
	}
	return false
}

// Registry maps entity names and their external identifier aliases
// (plural and hyphenated URL forms) to metadata. Read-only after boot.
type Registry struct {
	byName  map[string]Metadata
	byAlias map[string]string
}

// NewRegistry indexes the given entries. aliases maps external
// identifiers to internal entity keys; every entity's own name and
// resource name are registered implicitly.
func NewRegistry(entries []Metadata, aliases map[string]string) (*Registry, error) {
	r := &Registry{
		byName:  make(map[string]Metadata, len(entries)),
		byAlias: make(map[string]string),
	}
	for _, meta := range entries {
		if meta.Name == "" || meta.Resource == "" || meta.Table == "" || meta.IDColumn == "" {
			return nil, fmt.Errorf("entity: incomplete metadata for %q", meta.Name)
		}
		if _, dup := r.byName[meta.Name]; dup {
			return nil, fmt.Errorf("entity: duplicate entity %q", meta.Name)
		}
		r.byName[meta.Name] = meta
		r.byAlias[meta.Name] = meta.Name
		r.byAlias[meta.Resource] = meta.Name
	}
	for external, name := range aliases {
		if _, ok := r.byName[name]; !ok {
			return nil, fmt.Errorf("entity: alias %q points at unknown entity %q", external, name)
		}
		r.byAlias[external] = name
	}
	return r, nil
}

// Lookup resolves an external identifier to metadata. Unknown
// identifiers are rejected by the caller; there is no fuzzy matching.
func (r *Registry) Lookup(external string) (Metadata, bool) {
	name, ok := r.byAlias[external]
	if !ok {
		return Metadata{}, false
	}
	meta, ok := r.byName[name]
	return meta, ok
}

// Entities returns the registered entity keys in sorted order.
func (r *Registry) Entities() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
