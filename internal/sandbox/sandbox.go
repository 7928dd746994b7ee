// Package sandbox evaluates user-supplied custom functions.
//
// A function body is CUE source that declares a "return" field. Two inputs
// are in scope: "value", the value extracted for the rule, and "source", the
// whole source document (navigate it with selectors, e.g. source.customer.id).
// Standard CUE packages may be imported; the tool/* packages are rejected so
// bodies cannot reach files, processes or the network.
//
//	import "list"
//	return: list.Sum([for i in value {i.price}])
//
// Evaluation is pure, bounded by a timeout, and uses a fresh CUE context per
// call.
//
// The CUE evaluator cannot be interrupted. When the timeout fires the caller
// gets ErrTimeout, but the evaluation keeps running in its goroutine until it
// finishes and keeps holding its CPU and memory. Two limits bound that cost:
// bodies larger than the configured size are rejected before evaluation, and
// at most a fixed number of evaluations (abandoned ones included) run at
// once. Further calls wait for a slot within their own timeout.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/parser"
	"golang.org/x/sync/semaphore"

	"github.com/edtacey/jsonmapper/internal/document"
)

// ReturnField is the field a function body must declare.
const ReturnField = "return"

// DefaultTimeout bounds a single evaluation when no timeout is configured.
const DefaultTimeout = 2 * time.Second

// DefaultMaxBodySize is the largest accepted function body, in bytes.
const DefaultMaxBodySize = 64 << 10

var (
	// ErrEmptyBody is returned for blank function bodies.
	ErrEmptyBody = errors.New("function body is empty")

	// ErrNoReturn is returned when a body does not declare the return field.
	ErrNoReturn = errors.New("function body does not declare return")

	// ErrTimeout is returned when evaluation exceeds its time budget.
	ErrTimeout = errors.New("function evaluation timed out")

	// ErrBodyTooLarge is returned for bodies over the size limit.
	ErrBodyTooLarge = errors.New("function body is too large")
)

// Evaluator runs function bodies. The zero value is not usable; call New.
type Evaluator struct {
	timeout     time.Duration
	maxBodySize int
	maxRunning  int64
	running     *semaphore.Weighted
	logger      *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTimeout sets the per-evaluation time budget.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxBodySize sets the largest accepted body, in bytes.
func WithMaxBodySize(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxBodySize = n
		}
	}
}

// WithMaxRunning caps evaluations in flight, timed-out ones included
// (default: GOMAXPROCS).
func WithMaxRunning(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxRunning = int64(n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
		maxRunning:  int64(runtime.GOMAXPROCS(0)),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.running = semaphore.NewWeighted(e.maxRunning)
	return e
}

// Check parses body and verifies that it declares the return field and
// imports nothing from tool/*. It does not evaluate the body.
func Check(body string) error {
	_, err := parse(body)
	return err
}

func parse(body string) (*ast.File, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}
	f, err := parser.ParseFile("function", body)
	if err != nil {
		return nil, fmt.Errorf("parse function: %s", cueerrors.Details(err, nil))
	}
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return nil, fmt.Errorf("parse function: bad import %s", imp.Path.Value)
		}
		if path == "tool" || strings.HasPrefix(path, "tool/") {
			return nil, fmt.Errorf("import %q is not allowed in functions", path)
		}
	}
	for _, decl := range f.Decls {
		field, ok := decl.(*ast.Field)
		if !ok {
			continue
		}
		name, _, err := ast.LabelName(field.Label)
		if err == nil && name == ReturnField {
			return f, nil
		}
	}
	return nil, ErrNoReturn
}

// Eval evaluates body with value and source in scope and returns the
// concrete value of its return field as a document value.
func (e *Evaluator) Eval(ctx context.Context, body string, value any, source map[string]any) (any, error) {
	if len(body) > e.maxBodySize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrBodyTooLarge, len(body), e.maxBodySize)
	}
	if _, err := parse(body); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.running.Acquire(ctx, 1); err != nil {
		e.logger.Warn("no evaluation slot free", "running", e.maxRunning, "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, err
	}

	type outcome struct {
		v   any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer e.running.Release(1)
		v, err := evaluate(body, value, source)
		done <- outcome{v, err}
	}()

	select {
	case out := <-done:
		return out.v, out.err
	case <-ctx.Done():
		e.logger.Warn("function evaluation abandoned", "timeout", e.timeout, "error", ctx.Err())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

// EvalBool evaluates body and requires a boolean result.
func (e *Evaluator) EvalBool(ctx context.Context, body string, value any, source map[string]any) (bool, error) {
	v, err := e.Eval(ctx, body, value, source)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("function returned %s, want boolean", document.TypeName(v))
	}
	return b, nil
}

// evaluate runs in its own goroutine; a panic inside the CUE evaluator is
// reported as an error.
func evaluate(body string, value any, source map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("function evaluation panicked: %v", r)
		}
	}()

	cctx := cuecontext.New()
	// The inputs are declared after the body so that imports stay first.
	v := cctx.CompileString(body+"\nvalue: _\nsource: _\n", cue.Filename("function.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile function: %s", cueerrors.Details(err, nil))
	}

	var src any = source
	if source == nil {
		src = map[string]any{}
	}
	v = v.FillPath(cue.ParsePath("value"), cctx.Encode(value))
	v = v.FillPath(cue.ParsePath("source"), cctx.Encode(src))

	ret := v.LookupPath(cue.ParsePath(ReturnField))
	if !ret.Exists() {
		return nil, ErrNoReturn
	}
	if err := ret.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("evaluate function: %s", cueerrors.Details(err, nil))
	}
	data, err := ret.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("evaluate function: %s", cueerrors.Details(err, nil))
	}
	return document.Decode(data)
}
