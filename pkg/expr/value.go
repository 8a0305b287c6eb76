package expr

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

type undefinedValue struct{}

func (undefinedValue) String() string { return "undefined" }

func (undefinedValue) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// Undefined is the result of reading a member, key or element that does not exist.
// It is distinct from null, which only comes from literals and bound parameters.
var Undefined any = undefinedValue{}

// Normalize converts v into the value model the evaluator works with: nil, bool,
// float64, string, []any and map[string]any. Structs and typed maps are converted
// through their JSON encoding, so they bind by their JSON field names.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, float64, string, undefinedValue:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			n, err := Normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			n, err := Normalize(item)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cannot bind value of type %T: %w", v, err)
	}
	var out any
	if err = json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("cannot bind value of type %T: %w", v, err)
	}
	return out, nil
}

// ToString formats a value the way it is substituted into rendered output.
// Conversion follows JavaScript's String(): null renders as "null", a missing
// member as "undefined", arrays as their comma-joined elements and objects as
// "[object Object]".
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case undefinedValue:
		return "undefined"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return formatNumber(t)
	case []any:
		return Join(t, ",")
	case map[string]any:
		return "[object Object]"
	default:
		return fmt.Sprint(t)
	}
}

// Join converts each element with ToString and joins them with sep. Null and
// undefined elements contribute an empty string.
func Join(items []any, sep string) string {
	parts := make([]string, len(items))
	for i, item := range items {
		switch item.(type) {
		case nil, undefinedValue:
		default:
			parts[i] = ToString(item)
		}
	}
	return strings.Join(parts, sep)
}

// formatNumber renders f in the shortest form that round-trips. Magnitudes of 1e21
// and above or below 1e-6 use exponent notation, as in "1e+21" and "1.5e-7".
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	if a := math.Abs(f); a >= 1e21 || a < 1e-6 {
		mantissa, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
		digits := strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + exp[:1] + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Truthy reports whether v counts as true in a condition.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil, undefinedValue:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	default:
		return true
	}
}

// TypeName returns the expression-language name of the value's type.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case undefinedValue:
		return "undefined"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func equal(a, b any) bool {
	switch x := a.(type) {
	case nil, undefinedValue:
		return IsNullish(b)
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	default:
		return reflect.DeepEqual(a, b)
	}
}

// IsNullish reports whether v is null or undefined.
func IsNullish(v any) bool {
	switch v.(type) {
	case nil, undefinedValue:
		return true
	}
	return false
}
