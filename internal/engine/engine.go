package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/edtacey/jsonmapper/internal/fieldpath"
	"github.com/edtacey/jsonmapper/internal/rules"
	"github.com/edtacey/jsonmapper/internal/valuemap"
)

// FunctionEvaluator runs function and condition bodies. Implemented by
// sandbox.Evaluator.
type FunctionEvaluator interface {
	Eval(ctx context.Context, body string, value any, source map[string]any) (any, error)
	// EvalBool evaluates a condition; a non-boolean result is an error.
	EvalBool(ctx context.Context, body string, value any, source map[string]any) (bool, error)
}

// LookupProvider resolves reference data for lookup rules. found is false
// when the table has no entry for value; the value then passes through.
type LookupProvider interface {
	Lookup(ctx context.Context, table, key string, value any) (result any, found bool, err error)
}

// Fetcher retrieves the external document used by sub-child rules.
// Implemented by fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (any, error)
}

// DefaultFetchTimeout bounds one sub-child fetch when no timeout is set.
const DefaultFetchTimeout = 5 * time.Second

// Engine applies mapping rules to source documents.
//
// An Engine holds no per-call state; Apply may be called concurrently. The
// value mapping cache is the only shared mutable component and guards
// itself.
type Engine struct {
	functions    FunctionEvaluator
	lookup       LookupProvider
	fetcher      Fetcher
	fetchTimeout time.Duration
	cache        *valuemap.Cache
	recoder      *valuemap.Recoder
	clock        Clock
	ids          IDGenerator
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFunctions sets the evaluator for function rules and conditions.
// Without one, function rules fail and keep the source value.
func WithFunctions(f FunctionEvaluator) Option {
	return func(e *Engine) { e.functions = f }
}

// WithLookup sets the provider for lookup rules. Without one, lookup rules
// pass values through.
func WithLookup(p LookupProvider) Option {
	return func(e *Engine) { e.lookup = p }
}

// WithFetcher sets the fetcher for sub-child rules.
func WithFetcher(f Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// WithFetchTimeout bounds each sub-child fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.fetchTimeout = d
		}
	}
}

// WithValueMaps sets the cache value mapping rules load through.
func WithValueMaps(c *valuemap.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithRecoder replaces the default recoder, e.g. to install a custom
// matcher.
func WithRecoder(r *valuemap.Recoder) Option {
	return func(e *Engine) { e.recoder = r }
}

// WithClock sets the clock behind "_system.timestamp".
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator sets the generator behind "_system.uuid".
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLogger sets the logger rule failures are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		fetchTimeout: DefaultFetchTimeout,
		clock:        SystemClock{},
		ids:          UUIDv7Generator{},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = valuemap.NewCache(nil)
	}
	if e.recoder == nil {
		e.recoder = valuemap.NewRecoder(valuemap.WithCache(e.cache), valuemap.WithLogger(e.logger))
	}
	return e
}

// Result is the outcome of applying a rule set to one document.
type Result struct {
	// Target is the produced document; on abort it holds the rules applied
	// so far.
	Target map[string]any

	// Errors lists the rule errors in rule order.
	Errors []*RuleError

	// Applied counts rules that wrote a value; Skipped counts inactive
	// rules and rules that wrote nothing.
	Applied int
	Skipped int
}

// ApplyOption configures a single Apply call.
type ApplyOption func(*applyConfig)

type applyConfig struct {
	system map[string]any
}

// WithSystemValue makes "_system.<name>" resolve to v for this call.
// "timestamp" and "uuid" are provided by the engine unless overridden.
func WithSystemValue(name string, v any) ApplyOption {
	return func(c *applyConfig) { c.system[name] = v }
}

// Apply runs rs in order against source and returns the target document.
//
// Each rule extracts its source value, transforms it by kind and writes the
// result at its target path. Failures are recorded per rule and the next
// rule runs. A sub-child lookup failure with fallback "error" aborts: Apply
// returns the partial result and a *RuleError.
//
// source is never modified.
func (e *Engine) Apply(ctx context.Context, source map[string]any, rs []rules.MappingRule, opts ...ApplyOption) (*Result, error) {
	cfg := applyConfig{system: make(map[string]any)}
	for _, opt := range opts {
		opt(&cfg)
	}

	run := &run{
		engine: e,
		source: source,
		system: cfg.system,
		result: &Result{Target: make(map[string]any)},
	}
	for _, r := range rs {
		if !r.Active {
			run.result.Skipped++
			continue
		}
		if err := run.apply(ctx, r); err != nil {
			return run.result, err
		}
	}
	return run.result, nil
}

// run carries the state of one Apply call.
type run struct {
	engine *Engine
	source map[string]any
	system map[string]any
	result *Result
}

func (r *run) fail(re *RuleError) {
	r.result.Errors = append(r.result.Errors, re)
	r.engine.logger.Warn("rule failed",
		"rule", re.RuleID,
		"kind", re.Kind,
		"code", re.Code,
		"error", re.Error())
}

// extract resolves the rule's source value. An empty source path yields no
// value.
func (r *run) extract(rule rules.MappingRule) (any, bool, *RuleError) {
	if rule.SourcePath == "" {
		return nil, false, nil
	}
	if name, ok := fieldpath.SystemName(rule.SourcePath); ok {
		v, ok := r.systemValue(name)
		return v, ok, nil
	}
	p, err := fieldpath.Parse(rule.SourcePath)
	if err != nil {
		return nil, false, newRuleError(rule, ErrCodeInvalidPath, err, "source path %q", rule.SourcePath)
	}
	v, ok := fieldpath.Resolve(r.source, p)
	return v, ok, nil
}

func (r *run) systemValue(name string) (any, bool) {
	if v, ok := r.system[name]; ok {
		return v, true
	}
	switch name {
	case "timestamp":
		return r.engine.clock.Now().UTC().Format(time.RFC3339), true
	case "uuid":
		return r.engine.ids.Generate(), true
	}
	return nil, false
}

func (r *run) write(rule rules.MappingRule, v any) *RuleError {
	p, err := fieldpath.Parse(rule.TargetPath)
	if err != nil {
		return newRuleError(rule, ErrCodeInvalidPath, err, "target path %q", rule.TargetPath)
	}
	if err := fieldpath.Set(r.result.Target, p, v); err != nil {
		return newRuleError(rule, ErrCodeInvalidPath, err, "target path %q", rule.TargetPath)
	}
	return nil
}

func (r *run) apply(ctx context.Context, rule rules.MappingRule) error {
	value, present, rerr := r.extract(rule)
	if rerr != nil {
		r.fail(rerr)
		r.result.Skipped++
		return nil
	}

	out, ok, err := r.transform(ctx, rule, value, present)
	if err != nil {
		return err
	}
	if !ok {
		r.result.Skipped++
		return nil
	}
	if rerr := r.write(rule, out); rerr != nil {
		r.fail(rerr)
		r.result.Skipped++
		return nil
	}
	r.result.Applied++
	return nil
}
