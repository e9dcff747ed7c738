// Package conversion provides utilities for coercing loosely typed JSON values.
package conversion

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ErrNil is returned when a nil value is offered for a numeric conversion.
var ErrNil = errors.New("value is null")

// ToString converts a scalar value to its string form. Composite values and
// nil are rendered as JSON.
func ToString(value any) (string, error) {
	if value == nil {
		return "null", nil
	}

	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case []byte:
		return string(v), nil
	default:
		kind := reflect.TypeOf(value).Kind()
		if kind == reflect.Struct || kind == reflect.Map || kind == reflect.Slice {
			b, err := json.Marshal(value)
			if err == nil {
				return string(b), nil
			}
		}
		return fmt.Sprintf("%v", value), nil
	}
}

// ToFloat64 converts a value to float64. Numbers, numeric strings and booleans
// convert; nil, maps, slices and anything else are rejected.
func ToFloat64(value any) (float64, error) {
	if value == nil {
		return 0, ErrNil
	}

	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case json.Number:
		return v.Float64()
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("could not convert string to float: %q", v)
		}
		return f, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot convert %s to float64", describe(value))
	}
}

// describe names the JSON shape of a decoded value for error messages.
func describe(value any) string {
	switch reflect.TypeOf(value).Kind() {
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return fmt.Sprintf("%T", value)
	}
}

// ToJSON converts a value to its compact JSON string.
func ToJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
