package templating

// DefaultErrorPlaceholder is rendered in place of a template whose expressions fail.
const DefaultErrorPlaceholder = "[An error occurred]"

// TemplateConfig holds all configuration options for the templating engine.
type TemplateConfig struct {
	// ErrorPlaceholder replaces the entire output of a render whose expressions fail.
	ErrorPlaceholder string

	// MaxExpressionLength is the maximum length in bytes of a single embedded expression.
	MaxExpressionLength int

	// MaxExpressionDepth limits how deeply an expression may nest parentheses,
	// operators and array literals.
	MaxExpressionDepth int
}

// DefaultConfig returns a TemplateConfig with safe default values.
func DefaultConfig() *TemplateConfig {
	return &TemplateConfig{
		ErrorPlaceholder:    DefaultErrorPlaceholder,
		MaxExpressionLength: 4096,
		MaxExpressionDepth:  64,
	}
}
