package templating

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/CTAG07/roster/pkg/expr"
)

func (tm *TemplateManager) makeFuncMap() map[string]expr.Func {
	return map[string]expr.Func{
		// Strings
		"upper": upper,
		"lower": lower,
		"trim":  trim,
		"join":  join,

		// Markup
		"markdown": markdownToHTML,

		// Numbers
		"min":   minimum,
		"max":   maximum,
		"abs":   abs,
		"round": round,

		// Values
		"len":     length,
		"isSet":   isSet,
		"default": defaultValue,
		"json":    toJSON,
		"string":  toString,
		"number":  toNumber,
	}
}

func arity(args []any, n int) error {
	if len(args) != n {
		return fmt.Errorf("expects %d argument(s), got %d", n, len(args))
	}
	return nil
}

func number(v any) (float64, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("expects a number, got %s", expr.TypeName(v))
	}
	return f, nil
}

// upper returns its argument as an upper-case string.
func upper(args ...any) (any, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	return strings.ToUpper(expr.ToString(args[0])), nil
}

// lower returns its argument as a lower-case string.
func lower(args ...any) (any, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	return strings.ToLower(expr.ToString(args[0])), nil
}

// trim strips leading and trailing whitespace.
func trim(args ...any) (any, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	return strings.TrimSpace(expr.ToString(args[0])), nil
}

// join concatenates the elements of an array with an optional separator (default ",").
func join(args ...any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("expects 1 or 2 arguments, got %d", len(args))
	}
	items, ok := args[0].([]any)
	if !ok {
		return nil, fmt.Errorf("expects an array, got %s", expr.TypeName(args[0]))
	}
	sep := ","
	if len(args) == 2 {
		sep = expr.ToString(args[1])
	}
	return expr.Join(items, sep), nil
}

// minimum returns the smallest of its numeric arguments.
func minimum(args ...any) (any, error) {
	return fold(args, func(a, b float64) bool { return b < a })
}

// maximum returns the largest of its numeric arguments.
func maximum(args ...any) (any, error) {
	return fold(args, func(a, b float64) bool { return b > a })
}

func fold(args []any, better func(a, b float64) bool) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("expects at least 1 argument")
	}
	best, err := number(args[0])
	if err != nil {
		return nil, err
	}
	for _, arg := range args[1:] {
		f, err := number(arg)
		if err != nil {
			return nil, err
		}
		if better(best, f) {
			best = f
		}
	}
	return best, nil
}

// abs returns the absolute value of a number.
func abs(args ...any) (any, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	f, err := number(args[0])
	if err != nil {
		return nil, err
	}
	return math.Abs(f), nil
}

// round rounds a number to an optional count of decimal places (default 0).
func round(args ...any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("expects 1 or 2 arguments, got %d", len(args))
	}
	f, err := number(args[0])
	if err != nil {
		return nil, err
	}
	places := 0.0
	if len(args) == 2 {
		if places, err = number(args[1]); err != nil {
			return nil, err
		}
	}
	scale := math.Pow(10, math.Trunc(places))
	return math.Round(f*scale) / scale, nil
}

// length returns the number of characters in a string, elements in an array or keys in an object.
func length(args ...any) (any, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	if expr.IsNullish(args[0]) {
		return float64(0), nil
	}
	switch v := args[0].(type) {
	case string:
		return float64(utf8.RuneCountInString(v)), nil
	case []any:
		return float64(len(v)), nil
	case map[string]any:
		return float64(len(v)), nil
	default:
		return nil, fmt.Errorf("cannot take the length of %s", expr.TypeName(v))
	}
}

// isSet returns true if a value is not null and not its zero value.
func isSet(args ...any) (any, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	return expr.Truthy(args[0]), nil
}

// defaultValue returns its first argument unless it is null, undefined or empty, else the second.
func defaultValue(args ...any) (any, error) {
	if err := arity(args, 2); err != nil {
		return nil, err
	}
	if expr.IsNullish(args[0]) || args[0] == "" {
		return args[1], nil
	}
	return args[0], nil
}

// toJSON encodes a value as compact JSON text.
func toJSON(args ...any) (any, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	data, err := json.Marshal(args[0])
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// toString converts a value to its rendered string form.
func toString(args ...any) (any, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	return expr.ToString(args[0]), nil
}

// toNumber parses a string (or passes through a number) as a number.
func toNumber(args ...any) (any, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case float64:
		return v, nil
	case bool:
		if v {
			return float64(1), nil
		}
		return float64(0), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("cannot convert %s to a number", expr.TypeName(v))
	}
}
