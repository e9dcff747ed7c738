// Package schema provides utilities for generating MCP tool input schemas from
// Go structs and decoding tool arguments back into them.
package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/localrivet/calcmcp/protocol"
	"github.com/mitchellh/mapstructure"
)

// goTypeToMCPType maps Go kinds to MCP schema types.
func goTypeToMCPType(kind reflect.Kind) string {
	switch kind {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct, reflect.Interface:
		return "object"
	default:
		return "string"
	}
}

// FromStruct generates a protocol.ToolInputSchema from struct tags.
//
// The property name comes from the json tag. Fields are required unless they
// are pointers or tagged omitempty. The description, enum and format tags are
// copied onto the property.
func FromStruct(v any) protocol.ToolInputSchema {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	props := map[string]protocol.PropertyDetail{}
	var required []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		name := strings.ToLower(field.Name)
		optional := false
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					optional = true
				}
			}
		}

		fieldType := field.Type
		if fieldType.Kind() == reflect.Ptr {
			optional = true
			fieldType = fieldType.Elem()
		}
		if !optional {
			required = append(required, name)
		}

		var enumValues []any
		if enumTag := field.Tag.Get("enum"); enumTag != "" {
			for _, e := range strings.Split(enumTag, ",") {
				enumValues = append(enumValues, strings.TrimSpace(e))
			}
		}

		props[name] = protocol.PropertyDetail{
			Type:        goTypeToMCPType(fieldType.Kind()),
			Description: field.Tag.Get("description"),
			Enum:        enumValues,
			Format:      field.Tag.Get("format"),
		}
	}

	return protocol.ToolInputSchema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// Decode decodes tool arguments into a strongly-typed struct T using
// mapstructure with json tags. Keys that T does not declare are rejected.
func Decode[T any](arguments map[string]any) (*T, error) {
	var args T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &args,
		TagName:     "json",
		ErrorUnused: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating argument decoder: %w", err)
	}
	if arguments == nil {
		arguments = map[string]any{}
	}
	if err := decoder.Decode(arguments); err != nil {
		return nil, err
	}
	return &args, nil
}
