package templating

import (
	"strings"
	"sync"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/CTAG07/roster/pkg/expr"
)

var (
	markupPolicyOnce sync.Once
	markupPolicy     *bluemonday.Policy
)

// markupSanitizer allows the formatting Markdown produces and nothing executable.
func markupSanitizer() *bluemonday.Policy {
	markupPolicyOnce.Do(func() {
		markupPolicy = bluemonday.UGCPolicy()
	})
	return markupPolicy
}

// markdownToHTML renders Markdown to sanitized HTML. A parser holds state, so one
// is built per call.
func markdownToHTML(args ...any) (any, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	out := markdown.ToHTML([]byte(expr.ToString(args[0])), p, r)
	return strings.TrimSpace(string(markupSanitizer().SanitizeBytes(out))), nil
}
