package expr

import "fmt"

// ErrorKind classifies expression failures.
type ErrorKind int

const (
	// SyntaxError means the expression text could not be parsed.
	SyntaxError ErrorKind = iota
	// ReferenceError means an identifier or function is not bound in the Env.
	ReferenceError
	// TypeError means an operator or builtin was applied to unsupported values.
	TypeError
	// RangeError covers division by zero and exceeded safety limits.
	RangeError
)

func (k ErrorKind) String() string {
	switch k {
	case SyntaxError:
		return "syntax error"
	case ReferenceError:
		return "reference error"
	case TypeError:
		return "type error"
	case RangeError:
		return "range error"
	default:
		return "error"
	}
}

// Error is returned by Compile and Eval. Pos is a byte offset into the expression source.
type Error struct {
	Kind ErrorKind
	Pos  int
	Msg  string
	Err  error
}

func newError(kind ErrorKind, pos int, format string, args ...any) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at offset %d: %s: %v", e.Kind, e.Pos, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Pos, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }
