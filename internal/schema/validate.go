package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matthewbaird/entitygrid/internal/types"
)

// ValidateInfo is the rule set applied to one value.
type ValidateInfo struct {
	Required  bool
	MaxLength int
	IsNumber  bool
}

// RulesFor derives the rule set a field schema implies.
func RulesFor(fs *FieldSchema) ValidateInfo {
	if fs == nil {
		return ValidateInfo{}
	}
	return ValidateInfo{
		Required:  !fs.AllowNull,
		MaxLength: fs.Length,
		IsNumber:  fs.Numeric(),
	}
}

// Check applies the rules to a value and returns the failures, using caption
// to name the field in messages.
func (vi ValidateInfo) Check(caption string, value any) []string {
	var errs []string
	text := valueText(value)
	if vi.Required && IsEmptyValue(value) {
		errs = append(errs, fmt.Sprintf("%s is required.", caption))
	}
	if vi.MaxLength > 0 && len([]rune(text)) > vi.MaxLength {
		errs = append(errs, fmt.Sprintf("%s must be %d characters or less.", caption, vi.MaxLength))
	}
	if vi.IsNumber && text != "" {
		if _, ok := value.(bool); ok {
			errs = append(errs, fmt.Sprintf("%s must be a number.", caption))
		} else if _, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64); err != nil {
			errs = append(errs, fmt.Sprintf("%s must be a number.", caption))
		}
	}
	return errs
}

// IsEmptyValue reports whether a value counts as missing for required checks.
func IsEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	}
	return false
}

func valueText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// ValidateField checks one property value against its field schema. Unknown
// fields are not validated.
func (s *Schema) ValidateField(typ, prop string, value any) []string {
	fs := s.FieldSchema(typ, prop)
	if fs == nil {
		return nil
	}
	return RulesFor(fs).Check(prop, value)
}

// ValidateEntity checks every schema field of the entity's type. The result
// maps property name to failures and is empty when the entity is valid.
func (s *Schema) ValidateEntity(e *types.Entity) map[string][]string {
	out := make(map[string][]string)
	es := s.Entity(e.Type)
	if es == nil {
		return out
	}
	for _, name := range es.FieldOrder {
		if name == types.IDProperty {
			continue
		}
		if errs := RulesFor(es.Fields[name]).Check(name, e.Value(name)); len(errs) > 0 {
			out[name] = errs
		}
	}
	return out
}
