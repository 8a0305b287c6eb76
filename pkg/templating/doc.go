/*
Package templating loads a directory of text templates into memory and renders them
by substituting embedded expressions.

At startup the TemplateManager walks its template directory recursively and caches
every regular file under its slash-separated path relative to that directory, with
newlines folded into single spaces. Rendering a template replaces each
<%= expression %> marker with the result of evaluating the expression (see package
expr) against the parameters passed to Render. Parameters are bound directly as
variables; structs bind through their JSON field names. Expressions may call the
builtins in this package, including markdown(), whose HTML output is sanitized.

If any expression in a template fails, Render logs the cause and returns the
configured error placeholder in place of the whole output. RenderStrict returns the
failure to the caller instead. A key that is not in the cache is reported as
ErrTemplateNotFound by both.

The cache is immutable once loaded. Refresh builds a complete new cache and swaps it
in only when loading succeeds, so renders in flight always see a consistent set of
templates. All methods are concurrent-safe.
*/
package templating
