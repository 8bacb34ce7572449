package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/matthewbaird/entitygrid/internal/field"
	"github.com/matthewbaird/entitygrid/internal/filter"
	"github.com/matthewbaird/entitygrid/internal/schema"
	"github.com/matthewbaird/entitygrid/internal/types"
)

// View is a saved grid definition, read from <views_dir>/<type>.yaml:
//
//	type: Order
//	filter: Where(o => o.Total > 100)
//	columns:
//	  - id: OrderDate
//	    renderer: date
//	  - id: CustomerID
//	    name: Customer
//	    source: Customer.CustomerName
//	  - id: Total
//	    renderer: cents
//	    total: true
type View struct {
	Type    string       `yaml:"type"`
	Filter  string       `yaml:"filter,omitempty"`
	Columns []ViewColumn `yaml:"columns"`
}

// ViewColumn is one column of a view.
type ViewColumn struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name,omitempty"`
	Source   string `yaml:"source,omitempty"`
	Renderer string `yaml:"renderer,omitempty"`
	Width    int    `yaml:"width,omitempty"`
	Total    bool   `yaml:"total,omitempty"`
	NoSort   bool   `yaml:"nosort,omitempty"`
}

var columnRenderers = map[string]*field.ColumnRenderer{
	field.KindDate:     field.DateRenderer,
	field.KindDateTime: field.DateTimeRenderer,
	field.KindCents:    field.CentsRenderer,
	field.KindYesNo:    field.YesNoRenderer,
	field.KindInt:      field.IntRenderer,
}

// loadView reads the view of typ from dir. Without a view file every schema
// field of the type becomes a column.
func loadView(dir, typ string, s *schema.Schema) (*View, error) {
	data, err := os.ReadFile(filepath.Join(dir, typ+".yaml"))
	if errors.Is(err, os.ErrNotExist) {
		return defaultView(typ, s)
	}
	if err != nil {
		return nil, fmt.Errorf("read view: %w", err)
	}
	return parseView(data, typ)
}

func parseView(data []byte, typ string) (*View, error) {
	var v View
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse view %s: %w", typ, err)
	}
	if v.Type == "" {
		v.Type = typ
	}
	if len(v.Columns) == 0 {
		return nil, fmt.Errorf("view %s has no columns", typ)
	}
	if v.Filter != "" {
		if _, err := filter.Compile(v.Filter); err != nil {
			return nil, fmt.Errorf("view %s: %w", typ, err)
		}
	}
	return &v, nil
}

func defaultView(typ string, s *schema.Schema) (*View, error) {
	es := s.Entity(typ)
	if es == nil {
		return nil, fmt.Errorf("unknown entity type %s", typ)
	}
	v := &View{Type: typ}
	for _, name := range es.FieldOrder {
		if name == types.IDProperty {
			continue
		}
		col := ViewColumn{ID: name}
		if field.IsParentProperty(name) {
			col.Name, col.Source = field.ParentType(name), field.ParentType(name)
		}
		if fs := es.Field(name); fs != nil && fs.Type == schema.TypeDecimal {
			col.Total = true
		}
		v.Columns = append(v.Columns, col)
	}
	return v, nil
}

// Specs converts the view into grid column specs.
func (v *View) Specs() ([]*field.Spec, error) {
	specs := make([]*field.Spec, 0, len(v.Columns))
	for _, c := range v.Columns {
		opts := field.DefaultColumn()
		opts.Source = c.Source
		opts.Total = c.Total
		opts.Sortable = !c.NoSort
		if c.Width > 0 {
			opts.Width = c.Width
		}
		if c.Renderer != "" {
			r, ok := columnRenderers[c.Renderer]
			if !ok {
				return nil, fmt.Errorf("column %s: unknown renderer %q", c.ID, c.Renderer)
			}
			opts.Renderer = r
		}
		specs = append(specs, field.NewColumn(v.Type, c.ID, c.Name, opts))
	}
	return specs, nil
}

// Predicate returns the view's filter, or nil when it has none.
func (v *View) Predicate() func(*types.Entity) bool {
	if v.Filter == "" {
		return nil
	}
	return filter.MustCompile(v.Filter).Predicate()
}
