package templating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/CTAG07/roster/pkg/expr"
)

const tracerName = "github.com/CTAG07/roster/pkg/templating"

// Params are the values bound as variables while rendering a template.
type Params map[string]any

// TemplateManager is the central controller for the templating engine.
// It owns the template cache and the configuration, and renders cached templates
// in a concurrent-safe manner.
type TemplateManager struct {
	logger      *slog.Logger
	config      *TemplateConfig
	metrics     *Metrics
	tracer      trace.Tracer
	funcMap     map[string]expr.Func
	store       *Store
	programs    *sync.Map // expression source -> *expr.Program
	templateDir string
	refreshing  singleflight.Group
	mu          sync.RWMutex
}

// New returns a TemplateManager for templateDir without loading anything. Until
// Refresh succeeds the manager is not Ready and every render reports
// ErrTemplateNotFound. A nil config selects DefaultConfig.
func New(logger *slog.Logger, config *TemplateConfig, templateDir string) *TemplateManager {
	if config == nil {
		config = DefaultConfig()
	}
	tm := &TemplateManager{
		logger:      logger,
		config:      config,
		tracer:      otel.Tracer(tracerName),
		programs:    &sync.Map{},
		templateDir: templateDir,
	}
	tm.funcMap = tm.makeFuncMap()
	return tm
}

// NewTemplateManager creates a TemplateManager and performs the initial load of
// templateDir. A load failure is returned as a *FilesystemError and should be
// treated as fatal.
func NewTemplateManager(logger *slog.Logger, config *TemplateConfig, templateDir string) (*TemplateManager, error) {
	tm := New(logger, config, templateDir)
	if err := tm.Refresh(); err != nil {
		return nil, err
	}
	logger.Info("Template manager initialized", "dir", templateDir)
	return tm, nil
}

// SetMetrics attaches Prometheus collectors. It must be called before the manager is shared.
func (tm *TemplateManager) SetMetrics(m *Metrics) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.metrics = m
	tm.metrics.setLoaded(tm.store.Len())
}

// SetConfig applies a new configuration. Compiled expressions are discarded since
// they were checked against the previous limits.
func (tm *TemplateManager) SetConfig(config *TemplateConfig) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.config = config
	tm.programs = &sync.Map{}
}

// Refresh reloads every template from the template directory. The new cache
// replaces the old one only if the whole directory loads; on error the previous
// templates stay in place and the error is returned. Concurrent calls share a
// single load.
func (tm *TemplateManager) Refresh() error {
	_, err, shared := tm.refreshing.Do(tm.templateDir, func() (any, error) {
		return nil, tm.reload()
	})
	if shared {
		tm.logger.Debug("Joined in-flight template refresh", "dir", tm.templateDir)
	}
	return err
}

func (tm *TemplateManager) reload() error {
	_, span := tm.tracer.Start(context.Background(), "templating.Refresh",
		trace.WithAttributes(attribute.String("template.dir", tm.templateDir)))
	defer span.End()

	tm.logger.Info("Loading template files...", "dir", tm.templateDir)
	store, err := Preload(tm.logger, tm.templateDir)
	if err != nil {
		tm.logger.Error("failed to load template files", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "preload failed")
		return err
	}
	if store.Len() == 0 {
		tm.logger.Warn("No template files found", "dir", tm.templateDir)
	}

	tm.mu.Lock()
	tm.store = store
	tm.programs = &sync.Map{}
	tm.metrics.setLoaded(store.Len())
	tm.mu.Unlock()

	tm.logger.Info("Loaded template files", "count", store.Len())
	return nil
}

// Ready reports whether the template cache has been loaded.
func (tm *TemplateManager) Ready() bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.store != nil
}

// Render renders the cached template key with params. If an expression fails, the
// cause is logged and the configured error placeholder is returned in place of the
// whole output, with a nil error. An unknown key returns an error wrapping
// ErrTemplateNotFound.
func (tm *TemplateManager) Render(ctx context.Context, key string, params Params) (string, error) {
	out, err := tm.RenderStrict(ctx, key, params)
	if err == nil {
		return out, nil
	}
	var evalErr *EvalError
	if errors.As(err, &evalErr) {
		tm.logger.ErrorContext(ctx, "Failed to render template",
			"template", key,
			"expression", evalErr.Expression,
			"param", evalErr.Param,
			"error", evalErr.Err)
		return tm.GetConfig().ErrorPlaceholder, nil
	}
	return "", err
}

// RenderStrict is Render without the placeholder fallback: expression failures are
// returned as an *EvalError.
func (tm *TemplateManager) RenderStrict(ctx context.Context, key string, params Params) (string, error) {
	_, span := tm.tracer.Start(ctx, "templating.Render",
		trace.WithAttributes(attribute.String("template.key", key)))
	defer span.End()

	tm.mu.RLock()
	store, programs, config, metrics := tm.store, tm.programs, tm.config, tm.metrics
	tm.mu.RUnlock()

	start := time.Now()
	text, ok := store.Get(key)
	if !ok {
		err := fmt.Errorf("%w: %q", ErrTemplateNotFound, key)
		span.RecordError(err)
		span.SetStatus(codes.Error, "template not found")
		metrics.observeRender(resultNotFound, time.Since(start).Seconds())
		return "", err
	}

	out, err := tm.substitute(text, params, config, programs)
	if err != nil {
		var evalErr *EvalError
		if errors.As(err, &evalErr) {
			evalErr.Key = key
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "expression failed")
		metrics.observeRender(resultEvalError, time.Since(start).Seconds())
		return "", err
	}
	metrics.observeRender(resultOK, time.Since(start).Seconds())
	return out, nil
}

// RenderString renders content that is not part of the cache, such as a template
// under test. Newlines are folded the same way the cache folds them and compiled
// expressions are not memoized.
func (tm *TemplateManager) RenderString(ctx context.Context, content string, params Params) (string, error) {
	_, span := tm.tracer.Start(ctx, "templating.RenderString")
	defer span.End()

	config := tm.GetConfig()
	out, err := tm.substitute(newlineReplacer.Replace(content), params, &config, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "expression failed")
		return "", err
	}
	return out, nil
}

// substitute replaces every marker in text. programs may be nil to skip memoization.
func (tm *TemplateManager) substitute(text string, params Params, config *TemplateConfig, programs *sync.Map) (string, error) {
	matches := FindMarkers(text)
	if len(matches) == 0 {
		return text, nil
	}

	vars, err := bind(params)
	if err != nil {
		return "", err
	}
	env := expr.Env{Vars: vars, Funcs: tm.funcMap}
	limits := expr.Limits{MaxLength: config.MaxExpressionLength, MaxDepth: config.MaxExpressionDepth}

	var sb strings.Builder
	sb.Grow(len(text))
	last := 0
	for _, m := range matches {
		sb.WriteString(text[last:m.Start])
		program, err := compile(strings.TrimSpace(m.Source), limits, programs)
		if err != nil {
			return "", &EvalError{Expression: m.Source, Err: err}
		}
		val, err := program.Eval(env)
		if err != nil {
			return "", &EvalError{Expression: m.Source, Err: err}
		}
		sb.WriteString(expr.ToString(val))
		last = m.End
	}
	sb.WriteString(text[last:])
	return sb.String(), nil
}

func compile(src string, limits expr.Limits, programs *sync.Map) (*expr.Program, error) {
	if programs != nil {
		if cached, ok := programs.Load(src); ok {
			return cached.(*expr.Program), nil
		}
	}
	program, err := expr.Compile(src, limits)
	if err != nil {
		return nil, err
	}
	if programs != nil {
		actual, _ := programs.LoadOrStore(src, program)
		return actual.(*expr.Program), nil
	}
	return program, nil
}

// bind builds a fresh scope for a single render. Values are normalized so that
// structs, typed slices and integers behave like their JSON counterparts.
func bind(params Params) (map[string]any, error) {
	vars := make(map[string]any, len(params))
	for name, value := range params {
		v, err := expr.Normalize(value)
		if err != nil {
			return nil, &EvalError{Param: name, Err: err}
		}
		vars[name] = v
	}
	return vars, nil
}

// GetConfig returns a copy of the current configuration.
func (tm *TemplateManager) GetConfig() TemplateConfig {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return *tm.config
}

// GetTemplateNames returns the keys of every cached template in lexical order.
func (tm *TemplateManager) GetTemplateNames() []string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.store.Keys()
}

// GetTemplateDir returns the template dir that the TemplateManager loads from.
func (tm *TemplateManager) GetTemplateDir() string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.templateDir
}
