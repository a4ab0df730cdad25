// Package units interns the unit definitions of a document and converts unit
// strings such as "mM" or "1 / s" into unit definitions.
package units

import (
	"fmt"

	"enzymeml/pkg/domain"
)

// Registry holds the unique unit definitions of one document with their
// assigned wire ids. A Registry belongs to a single transcoding pass.
type Registry struct {
	units []*domain.UnitDefinition
	ids   map[string]string
}

// Intern walks doc, deduplicates every reachable unit by structure and assigns
// ids u0, u1, ... in first-seen order. Ids already carried by the units are
// ignored so the assignment only depends on structure and order. The
// document is not modified.
func Intern(doc *domain.Document) *Registry {
	r := &Registry{ids: make(map[string]string)}
	doc.Accept(domain.FuncVisitor{Unit: func(u *domain.UnitDefinition) { r.add(u) }})
	return r
}

func (r *Registry) add(u *domain.UnitDefinition) {
	key := u.Key()
	if _, ok := r.ids[key]; ok {
		return
	}
	r.ids[key] = fmt.Sprintf("u%d", len(r.units))
	r.units = append(r.units, u.Clone())
}

// Len returns the number of unique units.
func (r *Registry) Len() int { return len(r.units) }

// Entry is an interned unit together with its wire id. Unit keeps the id and
// name of the first occurrence; DisplayName falls back to a generated name.
type Entry struct {
	WireID      string
	DisplayName string
	Unit        *domain.UnitDefinition
}

// Entries lists the interned units in id order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.units))
	for i, u := range r.units {
		display := u.Name
		if display == "" {
			display = Name(u)
		}
		out = append(out, Entry{WireID: fmt.Sprintf("u%d", i), DisplayName: display, Unit: u})
	}
	return out
}

// IDOf returns the wire id of a unit. A nil unit yields "" and no error; a unit
// that was never interned is a LookupError.
func (r *Registry) IDOf(u *domain.UnitDefinition) (string, error) {
	if u == nil {
		return "", nil
	}
	if id, ok := r.ids[u.Key()]; ok {
		return id, nil
	}
	name := u.Name
	if name == "" {
		name = Name(u)
	}
	return "", &domain.LookupError{Kind: "unit", ID: name}
}

// Index maps wire ids back to unit definitions.
type Index map[string]*domain.UnitDefinition

// NewIndex builds the inverse map once from parsed definitions keyed by wire id.
func NewIndex(defs map[string]*domain.UnitDefinition) Index {
	ix := make(Index, len(defs))
	for id, u := range defs {
		ix[id] = u
	}
	return ix
}

// Resolve returns a copy of the unit with the given wire id. An empty id
// resolves to nil.
func (ix Index) Resolve(id string) (*domain.UnitDefinition, error) {
	if id == "" {
		return nil, nil
	}
	u, ok := ix[id]
	if !ok {
		return nil, &domain.LookupError{Kind: "unit", ID: id}
	}
	return u.Clone(), nil
}
