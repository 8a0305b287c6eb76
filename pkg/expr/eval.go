package expr

import (
	"math"
	"unicode/utf8"
)

// Func is a builtin callable from expressions. Arguments arrive in normalized form
// and the result must be normalized as well (see Normalize).
type Func func(args ...any) (any, error)

// Env is the complete world visible to an expression.
type Env struct {
	Vars  map[string]any
	Funcs map[string]Func
}

// Program is a compiled expression. It is immutable and safe for concurrent use.
type Program struct {
	src  string
	root node
}

// Compile parses src into a Program, enforcing the given limits.
func Compile(src string, limits Limits) (*Program, error) {
	root, err := parse(src, limits)
	if err != nil {
		return nil, err
	}
	return &Program{src: src, root: root}, nil
}

// Source returns the expression text the Program was compiled from.
func (p *Program) Source() string { return p.src }

// Eval runs the Program against env.
func (p *Program) Eval(env Env) (any, error) {
	return eval(p.root, env)
}

// Eval compiles and evaluates src in one step, without limits.
func Eval(src string, env Env) (any, error) {
	p, err := Compile(src, Limits{})
	if err != nil {
		return nil, err
	}
	return p.Eval(env)
}

func eval(n node, env Env) (any, error) {
	switch n := n.(type) {
	case *literal:
		return n.val, nil

	case *identifier:
		v, ok := env.Vars[n.name]
		if !ok {
			return nil, newError(ReferenceError, n.pos, "%s is not defined", n.name)
		}
		return v, nil

	case *arrayLiteral:
		out := make([]any, 0, len(n.elems))
		for _, e := range n.elems {
			v, err := eval(e, env)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case *member:
		obj, err := eval(n.obj, env)
		if err != nil {
			return nil, err
		}
		return property(obj, n.name, n.pos)

	case *index:
		obj, err := eval(n.obj, env)
		if err != nil {
			return nil, err
		}
		key, err := eval(n.key, env)
		if err != nil {
			return nil, err
		}
		return lookup(obj, key, n.pos)

	case *call:
		fn, ok := env.Funcs[n.name]
		if !ok {
			return nil, newError(ReferenceError, n.pos, "%s is not a function", n.name)
		}
		args := make([]any, len(n.args))
		for i, a := range n.args {
			v, err := eval(a, env)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		res, err := fn(args...)
		if err != nil {
			e := newError(TypeError, n.pos, "%s()", n.name)
			e.Err = err
			return nil, e
		}
		return res, nil

	case *unary:
		x, err := eval(n.x, env)
		if err != nil {
			return nil, err
		}
		switch n.op {
		case "!":
			return !Truthy(x), nil
		case "-", "+":
			f, ok := x.(float64)
			if !ok {
				return nil, newError(TypeError, n.pos, "unary %s applied to %s", n.op, TypeName(x))
			}
			if n.op == "-" {
				return -f, nil
			}
			return f, nil
		}

	case *binary:
		return evalBinary(n, env)

	case *conditional:
		test, err := eval(n.test, env)
		if err != nil {
			return nil, err
		}
		if Truthy(test) {
			return eval(n.then, env)
		}
		return eval(n.els, env)
	}
	return nil, newError(SyntaxError, n.position(), "unsupported expression")
}

func evalBinary(n *binary, env Env) (any, error) {
	left, err := eval(n.left, env)
	if err != nil {
		return nil, err
	}

	// && and || short-circuit and yield one of their operands.
	switch n.op {
	case "&&":
		if !Truthy(left) {
			return left, nil
		}
		return eval(n.right, env)
	case "||":
		if Truthy(left) {
			return left, nil
		}
		return eval(n.right, env)
	}

	right, err := eval(n.right, env)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return equal(left, right), nil
	case "!=":
		return !equal(left, right), nil
	case "+":
		_, ls := left.(string)
		_, rs := right.(string)
		if ls || rs {
			return ToString(left) + ToString(right), nil
		}
	case "<", "<=", ">", ">=":
		return compare(n, left, right)
	}

	a, aok := left.(float64)
	b, bok := right.(float64)
	if !aok || !bok {
		return nil, newError(TypeError, n.pos, "operator %s not defined for %s and %s", n.op, TypeName(left), TypeName(right))
	}
	switch n.op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, newError(RangeError, n.pos, "division by zero")
		}
		return a / b, nil
	case "%":
		if b == 0 {
			return nil, newError(RangeError, n.pos, "division by zero")
		}
		return math.Mod(a, b), nil
	}
	return nil, newError(SyntaxError, n.pos, "unknown operator %s", n.op)
}

func compare(n *binary, left, right any) (any, error) {
	var c int
	switch a := left.(type) {
	case float64:
		b, ok := right.(float64)
		if !ok {
			return nil, newError(TypeError, n.pos, "cannot compare %s with %s", TypeName(left), TypeName(right))
		}
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	case string:
		b, ok := right.(string)
		if !ok {
			return nil, newError(TypeError, n.pos, "cannot compare %s with %s", TypeName(left), TypeName(right))
		}
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	default:
		return nil, newError(TypeError, n.pos, "cannot compare %s with %s", TypeName(left), TypeName(right))
	}
	switch n.op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

func property(obj any, name string, pos int) (any, error) {
	switch o := obj.(type) {
	case map[string]any:
		if v, ok := o[name]; ok {
			return v, nil
		}
	case []any:
		if name == "length" {
			return float64(len(o)), nil
		}
	case string:
		if name == "length" {
			return float64(utf8.RuneCountInString(o)), nil
		}
	case nil, undefinedValue:
		return nil, newError(TypeError, pos, "cannot read property %q of %s", name, TypeName(obj))
	}
	return Undefined, nil
}

// lookup resolves obj[key]. Integer keys select array elements and string
// characters; every other key is converted to a string and read as a property.
func lookup(obj, key any, pos int) (any, error) {
	if f, ok := key.(float64); ok {
		switch o := obj.(type) {
		case []any:
			if i, ok := intIndex(f, len(o)); ok {
				return o[i], nil
			}
			return Undefined, nil
		case string:
			runes := []rune(o)
			if i, ok := intIndex(f, len(runes)); ok {
				return string(runes[i]), nil
			}
			return Undefined, nil
		}
	}
	return property(obj, ToString(key), pos)
}

func intIndex(f float64, n int) (int, bool) {
	if f != math.Trunc(f) || f < 0 || f >= float64(n) {
		return 0, false
	}
	return int(f), true
}
