package schema

import (
	"fmt"
	"slices"
)

// DriftKind classifies one difference between two schemas.
type DriftKind string

const (
	DriftMissingType  DriftKind = "missing-type"
	DriftExtraType    DriftKind = "extra-type"
	DriftMissingField DriftKind = "missing-field"
	DriftExtraField   DriftKind = "extra-field"
	DriftFieldType    DriftKind = "field-type"
	DriftNullability  DriftKind = "nullability"
	DriftLength       DriftKind = "length"
)

// Drift is one difference found by Diff.
type Drift struct {
	Kind   DriftKind
	Type   string
	Field  string
	Local  string
	Remote string
}

func (d Drift) String() string {
	name := d.Type
	if d.Field != "" {
		name += "." + d.Field
	}
	switch d.Kind {
	case DriftMissingType, DriftMissingField:
		return fmt.Sprintf("%s: %s is not in the local schema", d.Kind, name)
	case DriftExtraType, DriftExtraField:
		return fmt.Sprintf("%s: %s is not on the server", d.Kind, name)
	}
	return fmt.Sprintf("%s: %s local %s, server %s", d.Kind, name, d.Local, d.Remote)
}

// Diff compares a local schema with the one a server describes. The result
// is ordered by type, then field.
func Diff(local, remote *Schema) []Drift {
	var out []Drift
	names := slices.Clone(local.EntityNames())
	for _, n := range remote.EntityNames() {
		if !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	slices.Sort(names)

	for _, typ := range names {
		l, r := local.Entity(typ), remote.Entity(typ)
		switch {
		case l == nil:
			out = append(out, Drift{Kind: DriftMissingType, Type: typ})
			continue
		case r == nil:
			out = append(out, Drift{Kind: DriftExtraType, Type: typ})
			continue
		}
		out = append(out, diffFields(typ, l, r)...)
	}
	return out
}

func diffFields(typ string, l, r *EntitySchema) []Drift {
	var out []Drift
	fields := slices.Clone(l.FieldOrder)
	for _, f := range r.FieldOrder {
		if !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}
	slices.Sort(fields)

	for _, name := range fields {
		lf, rf := l.Field(name), r.Field(name)
		switch {
		case lf == nil:
			out = append(out, Drift{Kind: DriftMissingField, Type: typ, Field: name})
			continue
		case rf == nil:
			out = append(out, Drift{Kind: DriftExtraField, Type: typ, Field: name})
			continue
		}
		if lf.Type != rf.Type {
			out = append(out, Drift{Kind: DriftFieldType, Type: typ, Field: name, Local: lf.Type, Remote: rf.Type})
		}
		if lf.AllowNull != rf.AllowNull {
			out = append(out, Drift{Kind: DriftNullability, Type: typ, Field: name,
				Local: nullText(lf.AllowNull), Remote: nullText(rf.AllowNull)})
		}
		if lf.Length != rf.Length {
			out = append(out, Drift{Kind: DriftLength, Type: typ, Field: name,
				Local: fmt.Sprint(lf.Length), Remote: fmt.Sprint(rf.Length)})
		}
	}
	return out
}

func nullText(allow bool) string {
	if allow {
		return "nullable"
	}
	return "required"
}
