package templating

import (
	"errors"
	"fmt"
)

var (
	// ErrTemplateNotFound is returned when a render names a key that is not in the cache.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrNotDirectory is returned when the template root is not a directory.
	ErrNotDirectory = errors.New("not a directory")
)

// FilesystemError reports a failure to load the template directory. It is fatal at startup.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("template %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// EvalError reports a failure to evaluate an embedded expression, or to bind a parameter.
type EvalError struct {
	// Key is the template being rendered. It is empty for RenderString.
	Key string

	// Expression is the source of the failing expression, if any.
	Expression string

	// Param is the parameter that could not be bound, if any.
	Param string

	Err error
}

func (e *EvalError) Error() string {
	switch {
	case e.Param != "":
		return fmt.Sprintf("template %q: binding parameter %q: %v", e.Key, e.Param, e.Err)
	default:
		return fmt.Sprintf("template %q: evaluating %q: %v", e.Key, e.Expression, e.Err)
	}
}

func (e *EvalError) Unwrap() error { return e.Err }
