package field

import (
	"fmt"
	"strings"

	"github.com/matthewbaird/entitygrid/internal/types"
)

// Lookup is the read side of the entity cache.
type Lookup interface {
	Find(typ string, id int64) (*types.Entity, bool)
	List(typ string) []*types.Entity
}

// ResolveSource follows a relational path starting at the entity of type
// steps[0] with the given ID. Intermediate steps hop through "<Step>ID"
// foreign keys; the result is the last step's property, or "<Type>Name" when
// the path has a single step. A non-positive ID or a missing entity
// resolves to "".
func ResolveSource(lookup Lookup, source string, id int64) string {
	if id <= 0 || lookup == nil || source == "" {
		return ""
	}
	steps := strings.Split(source, ".")
	e, ok := lookup.Find(steps[0], id)
	if !ok {
		return ""
	}
	for _, step := range steps[1 : max(len(steps)-1, 1)] {
		next, ok := lookup.Find(step, e.Int(types.ForeignKeyProperty(step)))
		if !ok {
			return ""
		}
		e = next
	}
	prop := steps[len(steps)-1]
	if len(steps) == 1 {
		prop = types.TypeNameProperty(steps[0])
	}
	return text(e.Value(prop))
}

// ResolveList returns the display names of the related entities listed in
// an "...Entities" property, joined with ", ".
func ResolveList(lookup Lookup, e *types.Entity, prop string) string {
	typ := strings.TrimSuffix(prop, types.EntitiesSuffix)
	var names []string
	for _, id := range e.IDs(prop) {
		if name := ResolveSource(lookup, typ, id); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

// FindByName returns the entity of a type whose "<Type>Name" equals name.
func FindByName(lookup Lookup, typ string, name any) (*types.Entity, bool) {
	if lookup == nil {
		return nil, false
	}
	prop := types.TypeNameProperty(typ)
	for _, e := range lookup.List(typ) {
		if text(e.Value(prop)) == text(name) {
			return e, true
		}
	}
	return nil, false
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	return fmt.Sprint(v)
}
