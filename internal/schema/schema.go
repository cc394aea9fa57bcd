// Package schema describes the JSON shape a language model is asked to
// produce and renders that description as prompt instructions.
package schema

import (
	"fmt"
	"strings"
)

// Field type names understood by the formatter and the reply parser.
const (
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Field is one entry of a Schema.
type Field struct {
	Name        string
	Type        string
	Description string
	Required    bool
	// Items describes the element objects of an array field.
	Items *Schema
}

// Schema is an ordered field list describing a structured result.
type Schema struct {
	Name   string
	Fields []Field
}

// Required returns the names of the required fields in declaration order.
func (s Schema) Required() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Names returns all field names in declaration order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Validate checks that the schema itself is well formed.
func (s Schema) Validate() error {
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %s: field with empty name", s.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema %s: duplicate field %q", s.Name, f.Name)
		}
		seen[f.Name] = true
		switch f.Type {
		case TypeString, TypeBoolean, TypeInteger, TypeNumber, TypeObject:
		case TypeArray:
			if f.Items != nil {
				if err := f.Items.Validate(); err != nil {
					return fmt.Errorf("schema %s: field %q: %w", s.Name, f.Name, err)
				}
			}
		default:
			return fmt.Errorf("schema %s: field %q has unknown type %q", s.Name, f.Name, f.Type)
		}
	}
	return nil
}

const (
	instructionsHeader = "Format the response as a JSON object with the following structure:"
	instructionsFooter = "Fields marked with * are required. Respond with the JSON object only, " +
		"without any prose, explanation or commentary before or after it."
	indentUnit = "    "
)

// FormatInstructions renders the schema as a block of text telling a language
// model which JSON object to emit. Required fields carry a * after the name.
// The output depends only on s.
func FormatInstructions(s Schema) string {
	var b strings.Builder
	b.WriteString(instructionsHeader)
	b.WriteString("\n{\n")
	writeFields(&b, s, 1)
	b.WriteString("}\n")
	b.WriteString(instructionsFooter)
	return b.String()
}

func writeFields(b *strings.Builder, s Schema, depth int) {
	indent := strings.Repeat(indentUnit, depth)
	for _, f := range s.Fields {
		marker := ""
		if f.Required {
			marker = "*"
		}
		fmt.Fprintf(b, "%s%q%s: %s", indent, f.Name, marker, typeLabel(f))
		if f.Description != "" {
			fmt.Fprintf(b, "  // %s", f.Description)
		}
		b.WriteString("\n")

		if f.Type == TypeArray && f.Items != nil {
			fmt.Fprintf(b, "%s%s{\n", indent, indentUnit)
			writeFields(b, *f.Items, depth+2)
			fmt.Fprintf(b, "%s%s}\n", indent, indentUnit)
		}
	}
}

func typeLabel(f Field) string {
	if f.Type == TypeArray && f.Items != nil {
		return "array of objects"
	}
	if !f.Required {
		return f.Type + " or null"
	}
	return f.Type
}
