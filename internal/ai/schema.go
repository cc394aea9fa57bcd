package ai

import (
	"betterats/internal/schema"

	"google.golang.org/genai"
)

var genaiTypes = map[string]genai.Type{
	schema.TypeString:  genai.TypeString,
	schema.TypeBoolean: genai.TypeBoolean,
	schema.TypeInteger: genai.TypeInteger,
	schema.TypeNumber:  genai.TypeNumber,
	schema.TypeArray:   genai.TypeArray,
	schema.TypeObject:  genai.TypeObject,
}

// responseSchema converts a result schema into the constrained decoding
// schema of the Gemini API. Optional fields are nullable and property order
// follows declaration order.
func responseSchema(s schema.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       make(map[string]*genai.Schema, len(s.Fields)),
		PropertyOrdering: s.Names(),
		Required:         s.Required(),
	}

	for _, f := range s.Fields {
		prop := &genai.Schema{
			Type:        genaiTypes[f.Type],
			Description: f.Description,
		}
		if !f.Required {
			nullable := true
			prop.Nullable = &nullable
		}
		if f.Type == schema.TypeArray {
			if f.Items != nil {
				prop.Items = responseSchema(*f.Items)
			} else {
				prop.Items = &genai.Schema{Type: genai.TypeString}
			}
		}
		out.Properties[f.Name] = prop
	}

	return out
}
