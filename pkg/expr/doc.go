/*
Package expr implements the small expression language embedded in roster templates.

An expression is evaluated against an Env: a set of variable bindings and a registry
of builtin functions. Nothing outside the Env is reachable from an expression, so
template authors can read the parameters they are handed and call the registered
builtins, but cannot touch the filesystem, the network or the process.

The grammar covers literals (numbers, quoted strings, true, false, null, array
literals), identifiers, member access (a.b), indexing (a[0], a["key"]), builtin calls
(upper(name)), the unary operators ! and -, the binary arithmetic, comparison and
logical operators, and the conditional operator (cond ? a : b).

Programs are immutable once compiled and can be shared between goroutines.
*/
package expr
