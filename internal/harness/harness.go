package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/edtacey/jsonmapper/internal/document"
	"github.com/edtacey/jsonmapper/internal/pipeline"
	"github.com/edtacey/jsonmapper/internal/ruleset"
	"github.com/edtacey/jsonmapper/internal/store"
	"github.com/edtacey/jsonmapper/internal/testutil"
)

var defaultClockStart = testutil.DefaultEpoch

// maxTraceEvents bounds how much of the outbox a run reads back.
const maxTraceEvents = 10000

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and id sequence.
type Harness struct {
	store  *store.Store
	proc   *pipeline.Processor
	clock  *testutil.DeterministicClock
	ids    *testutil.SequenceGenerator
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load the rule bundle and import it into the store
// 3. Process every step through the pipeline, checking expectations
// 4. Read the outbox back as the trace
// 5. Evaluate assertions
//
// A returned error means the scenario could not run at all. Failed
// expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	bundle, err := ruleset.Load(scenario.Definitions)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.Import(ctx, bundle); err != nil {
		return nil, fmt.Errorf("failed to import definitions: %w", err)
	}

	start, step, err := scenario.Clock.parse()
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store:  st,
		clock:  testutil.NewSteppingClock(start, step),
		ids:    testutil.NewSequenceGenerator(scenario.IDPrefix),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	h.proc = pipeline.New(st, st,
		pipeline.WithPublisher(st),
		pipeline.WithClock(h.clock),
		pipeline.WithIDGenerator(h.ids),
		pipeline.WithLogger(h.logger),
	)

	result := NewResult()
	for i, s := range scenario.Steps {
		sr := h.executeStep(ctx, scenario.Entity, i, s)
		result.Steps = append(result.Steps, sr)
		for _, msg := range checkStep(sr, s.Expect) {
			result.AddError(msg)
		}
	}

	trace, err := h.readTrace(ctx)
	if err != nil {
		return nil, err
	}
	result.Trace = trace

	actx := &AssertionContext{
		Store:  st,
		Ctx:    ctx,
		Entity: scenario.Entity,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// executeStep processes one document. Processing errors are part of the
// step result, not failures of the run.
func (h *Harness) executeStep(ctx context.Context, entity string, index int, step Step) StepResult {
	sr := StepResult{Index: index}
	out, err := h.proc.Process(ctx, entity, document.CloneObject(step.Document))
	if err != nil {
		sr.Error = err.Error()
	}
	if out == nil {
		h.logger.Info("step failed", "step", index, "error", err)
		return sr
	}

	sr.Operation = string(out.Operation)
	sr.Final = out.Final
	for _, c := range out.Changes {
		sr.Changes = append(sr.Changes, ChangeRecord{
			Field:     c.Field,
			Operation: string(c.Operation),
			OldValue:  c.OldValue,
			NewValue:  c.NewValue,
		})
	}
	if out.Event != nil {
		sr.Event = out.Event.Type
	}
	for _, re := range out.RuleErrors {
		sr.RuleErrors = append(sr.RuleErrors, string(re.Code))
	}

	h.logger.Info("step completed",
		"step", index,
		"operation", sr.Operation,
		"changes", len(sr.Changes),
	)
	return sr
}

func (h *Harness) readTrace(ctx context.Context) ([]TraceEvent, error) {
	pending, err := h.store.PendingEvents(ctx, maxTraceEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to read outbox: %w", err)
	}
	trace := make([]TraceEvent, 0, len(pending))
	for _, p := range pending {
		trace = append(trace, TraceEvent{
			Seq:     p.Seq,
			Type:    p.Event.Type,
			ID:      p.Event.ID,
			Time:    p.Event.Time,
			Subject: p.Event.Subject,
		})
	}
	return trace, nil
}

// checkStep compares a step result with its expectation.
func checkStep(sr StepResult, e *Expect) []string {
	prefix := fmt.Sprintf("step %d", sr.Index)
	if e == nil {
		if sr.Error != "" {
			return []string{fmt.Sprintf("%s: unexpected error: %s", prefix, sr.Error)}
		}
		return nil
	}

	if e.Error != "" {
		switch {
		case sr.Error == "":
			return []string{fmt.Sprintf("%s: expected error containing %q, got %s", prefix, e.Error, sr.Operation)}
		case !strings.Contains(sr.Error, e.Error):
			return []string{fmt.Sprintf("%s: expected error containing %q, got %q", prefix, e.Error, sr.Error)}
		}
		return nil
	}
	if sr.Error != "" {
		return []string{fmt.Sprintf("%s: unexpected error: %s", prefix, sr.Error)}
	}

	var errs []string
	if e.Operation != "" && e.Operation != sr.Operation {
		errs = append(errs, fmt.Sprintf("%s: expected operation %s, got %s", prefix, e.Operation, sr.Operation))
	}
	if e.Event != "" && e.Event != sr.Event {
		errs = append(errs, fmt.Sprintf("%s: expected event %s, got %s", prefix, e.Event, sr.Event))
	}
	if e.Final != nil {
		if field, ok := matchSubset(sr.Final, e.Final); !ok {
			errs = append(errs, fmt.Sprintf("%s: final field %q: expected %s, got %s",
				prefix, field, document.CanonicalString(e.Final[field]), document.CanonicalString(sr.Final[field])))
		}
	}
	if e.Changes != nil {
		got := make([]string, len(sr.Changes))
		for i, c := range sr.Changes {
			got[i] = c.Field
		}
		want := slices.Clone(e.Changes)
		slices.Sort(got)
		slices.Sort(want)
		if !slices.Equal(got, want) {
			errs = append(errs, fmt.Sprintf("%s: expected changes %v, got %v", prefix, want, got))
		}
	}
	if e.RuleErrors != nil && !slices.Equal(e.RuleErrors, sr.RuleErrors) {
		errs = append(errs, fmt.Sprintf("%s: expected rule errors %v, got %v", prefix, e.RuleErrors, sr.RuleErrors))
	}
	return errs
}

// matchSubset reports whether every field of want equals the field of got.
// On mismatch it returns the first offending field in key order.
func matchSubset(got, want map[string]any) (string, bool) {
	for _, k := range document.SortedKeys(want) {
		v, ok := got[k]
		if !ok || !document.Equal(v, want[k]) {
			return k, false
		}
	}
	return "", true
}
