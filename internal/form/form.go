// Package form binds a set of field specs to one entity: it renders the
// visible fields through their renderers and answers dirtiness and
// validation questions for the whole form.
package form

import (
	"errors"
	"fmt"
	"log"

	"github.com/matthewbaird/entitygrid/internal/field"
	"github.com/matthewbaird/entitygrid/internal/types"
)

var (
	ErrDuplicateField = errors.New("duplicate field id")
	ErrDisposed       = errors.New("form disposed")
)

// Options tune which fields a form shows.
type Options struct {
	ReadOnly bool // show the form for display only
	Search   bool // build search controls instead of edit controls
}

// Form is the edit state of one entity.
type Form struct {
	env      *field.Env
	entity   *types.Entity
	opts     Options
	fields   []*field.Ctx
	byID     map[string]*field.Ctx
	disposed bool
}

// New creates a form over e. Field IDs must be unique.
func New(env *field.Env, e *types.Entity, specs []*field.Spec, opts Options) (*Form, error) {
	if env == nil || e == nil {
		panic("form: New needs an env and an entity")
	}
	f := &Form{env: env, entity: e, opts: opts, byID: make(map[string]*field.Ctx, len(specs))}
	for _, s := range specs {
		if s.Edit == nil {
			return nil, fmt.Errorf("form: field %q has no edit options", s.ID)
		}
		if _, dup := f.byID[s.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateField, s.ID)
		}
		fc := field.NewCtx(env, s, e)
		f.fields = append(f.fields, fc)
		f.byID[s.ID] = fc
	}
	return f, nil
}

// Entity returns a copy of the form's entity with the control values of
// every editable field applied.
func (f *Form) Entity() *types.Entity {
	out := f.entity.Clone()
	for _, fc := range f.fields {
		if fc.Control != nil && fc.IsEditable() {
			fc.ApplyControlValue(out)
		}
	}
	return out
}

// Original returns the entity the form was created for.
func (f *Form) Original() *types.Entity { return f.entity }

// Fields returns the field contexts in declaration order.
func (f *Form) Fields() []*field.Ctx { return f.fields }

// Field returns the context of a field.
func (f *Form) Field(id string) (*field.Ctx, bool) {
	fc, ok := f.byID[id]
	return fc, ok
}

// Visible returns the fields the form shows for its entity and options.
func (f *Form) Visible() []*field.Ctx {
	var out []*field.Ctx
	for _, fc := range f.fields {
		ed := fc.Spec.Edit
		switch {
		case f.opts.ReadOnly && !ed.ShowOnReadOnly:
		case f.entity.IsNew() && !ed.ShowOnAdd && !f.opts.Search:
		default:
			out = append(out, fc)
		}
	}
	return out
}

// Render builds a control for every visible field in parent. Fields without
// a renderer get a plain value control.
func (f *Form) Render(parent field.Container) error {
	if f.disposed {
		return ErrDisposed
	}
	for _, fc := range f.Visible() {
		r := fc.FieldRenderer()
		if r == nil || f.opts.ReadOnly || !fc.IsEditable() && !f.opts.Search {
			r = field.TextRenderer
		}
		var value any
		if !f.opts.Search {
			value = fc.EntityValue()
		}
		fc.Control = r.Build(value, f.entity, parent, f.opts.Search)
	}
	return nil
}

// IsDirty reports whether any field not flagged IgnoreDirty has changed.
func (f *Form) IsDirty() bool {
	return len(f.DirtyFields()) > 0
}

// DirtyFields returns the IDs of the changed fields.
func (f *Form) DirtyFields() []string {
	var ids []string
	for _, fc := range f.fields {
		if fc.Control == nil || fc.Spec.Edit.IgnoreDirty || !fc.IsEditable() {
			continue
		}
		if fc.IsDirty() {
			ids = append(ids, fc.ID())
		}
	}
	return ids
}

// Validate returns the error messages of every invalid field keyed by
// field ID. An empty map means the form can be saved.
func (f *Form) Validate() map[string][]string {
	errs := make(map[string][]string)
	for _, fc := range f.fields {
		if fc.Control == nil {
			continue
		}
		if msgs := fc.Validate(); len(msgs) > 0 {
			errs[fc.ID()] = msgs
		}
	}
	if len(errs) > 0 {
		log.Printf("form: %s %d invalid fields", f.entity.Type, len(errs))
	}
	return errs
}

// Dispose releases the controls. The form cannot be rendered again.
func (f *Form) Dispose() {
	for _, fc := range f.fields {
		fc.Control = nil
	}
	f.disposed = true
}
