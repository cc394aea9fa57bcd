// Package reply turns raw language model output into validated values.
package reply

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"betterats/internal/errors"
	"betterats/internal/schema"
)

const (
	fenceMarker = "```"
	fenceLang   = "json"
)

// StripFence removes a surrounding ```json ... ``` wrapping if present.
// Text without a fence is returned trimmed and otherwise unchanged.
func StripFence(reply string) string {
	text := strings.TrimSpace(reply)
	if strings.HasPrefix(text, fenceMarker) {
		text = strings.TrimPrefix(text, fenceMarker)
		if len(text) >= len(fenceLang) && strings.EqualFold(text[:len(fenceLang)], fenceLang) {
			text = text[len(fenceLang):]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), fenceMarker)
	}
	return strings.TrimSpace(text)
}

// Parse decodes a model reply into T after checking it against s.
//
// A reply that is not a JSON object yields a malformed reply error that keeps
// the raw text. A missing or null required field, or a field whose JSON type
// does not match s, yields a validation error naming the field. Fields not in
// s are ignored and absent optional fields stay at their zero value.
func Parse[T any](raw string, s schema.Schema) (T, error) {
	var out T

	body := StripFence(raw)
	if body == "" {
		return out, errors.NewMalformedReplyError(raw, "reply is empty", nil)
	}

	var generic any
	if err := json.Unmarshal([]byte(body), &generic); err != nil {
		return out, errors.NewMalformedReplyError(raw, "reply is not valid JSON", err)
	}
	object, ok := generic.(map[string]any)
	if !ok {
		return out, errors.NewMalformedReplyError(raw,
			fmt.Sprintf("reply is a JSON %s, expected an object", jsonKind(generic)), nil)
	}

	if err := checkObject(object, s, ""); err != nil {
		return out, err
	}

	if err := json.Unmarshal([]byte(body), &out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) {
			return out, invalidType(typeErr.Field, typeErr.Value, err)
		}
		return out, errors.NewMalformedReplyError(raw, "reply could not be decoded", err)
	}
	return out, nil
}

func checkObject(object map[string]any, s schema.Schema, prefix string) error {
	for _, field := range s.Fields {
		path := prefix + field.Name
		value, present := object[field.Name]
		if !present || value == nil {
			if field.Required {
				return errors.NewValidationError(errors.ErrCodeMissingField,
					fmt.Sprintf("missing required field %q", path), nil).
					WithContext("field", path)
			}
			continue
		}
		if err := checkValue(value, field, path); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(value any, field schema.Field, path string) error {
	kind := jsonKind(value)
	switch field.Type {
	case schema.TypeString:
		if kind != "string" {
			return invalidType(path, kind, nil)
		}
	case schema.TypeBoolean:
		if kind != "boolean" {
			return invalidType(path, kind, nil)
		}
	case schema.TypeNumber:
		if kind != "number" {
			return invalidType(path, kind, nil)
		}
	case schema.TypeInteger:
		n, ok := value.(float64)
		if !ok || n != float64(int64(n)) {
			return invalidType(path, kind, nil)
		}
	case schema.TypeObject:
		if kind != "object" {
			return invalidType(path, kind, nil)
		}
	case schema.TypeArray:
		items, ok := value.([]any)
		if !ok {
			return invalidType(path, kind, nil)
		}
		if field.Items == nil {
			return nil
		}
		for i, item := range items {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			object, ok := item.(map[string]any)
			if !ok {
				return invalidType(itemPath, jsonKind(item), nil)
			}
			if err := checkObject(object, *field.Items, itemPath+"."); err != nil {
				return err
			}
		}
	}
	return nil
}

func invalidType(path, got string, cause error) *errors.AppError {
	return errors.NewValidationError(errors.ErrCodeInvalidFieldType,
		fmt.Sprintf("field %q has unexpected JSON type %s", path, got), cause).
		WithContext("field", path)
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
