package core

// validation.go checks an AttributeSet against an entity definition before
// it is written.
//
// Validation happens per attribute:
//  1. The header must name a known attribute of the entity
//  2. Read-only attributes (id) are dropped silently
//  3. The value must convert to the attribute's type
//
// On create, required attributes must also be present and non-empty.
// Every failure wraps ErrValidation so callers can tell a rejected write
// from an infrastructure error.

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Attribute name
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Unwrap lets errors.Is match ErrValidation.
func (e ValidationError) Unwrap() error {
	return ErrValidation
}

// Column is one typed value ready to be written.
type Column struct {
	Name  string
	Value any
}

// BuildColumns validates attrs against def and returns the columns to write,
// sorted by column name for stable SQL. When creating, required fields are
// enforced.
func BuildColumns(def EntityDefinition, attrs Attributes, creating bool) ([]Column, error) {
	cols := make([]Column, 0, len(attrs))

	for name, raw := range attrs {
		spec, ok := def.Field(name)
		if !ok {
			return nil, ValidationError{Field: name, Value: raw, Message: fmt.Sprintf("unknown attribute for %s", def.Kind)}
		}
		if spec.ReadOnly {
			continue
		}

		value, err := ConvertValue(spec, raw)
		if err != nil {
			return nil, err
		}
		if s, isText := value.(string); isText && s == "" && spec.Required {
			return nil, ValidationError{Field: name, Message: "required field is empty"}
		}
		cols = append(cols, Column{Name: spec.Column(), Value: value})
	}

	if creating {
		var missing []string
		for _, spec := range def.FieldSpecs {
			if !spec.Required {
				continue
			}
			if strings.TrimSpace(attrs[spec.Name]) == "" {
				missing = append(missing, spec.Name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return nil, ValidationError{Message: fmt.Sprintf("required field is empty: %s", strings.Join(missing, ", "))}
		}
	}

	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	return cols, nil
}
