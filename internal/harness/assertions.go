package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/edtacey/jsonmapper/internal/document"
	"github.com/edtacey/jsonmapper/internal/store"
)

// dumper renders documents in failure messages with stable key order.
var dumper = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Outbox at the time of the failure
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nEvents:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", ev.Seq, ev.Type, ev.ID)
		}
	}
	return buf.String()
}

// assertRecordCount checks the number of stored records of the entity.
func assertRecordCount(ctx context.Context, st *store.Store, entity string, assertion Assertion) error {
	recs, err := st.Records(ctx, entity)
	if err != nil {
		return fmt.Errorf("record_count: %w", err)
	}
	if len(recs) != assertion.Count {
		return &AssertionError{
			Type:     AssertRecordCount,
			Expected: fmt.Sprintf("%d records of %s", assertion.Count, entity),
			Actual:   fmt.Sprintf("%d records", len(recs)),
		}
	}
	return nil
}

// assertRecord finds the single stored record matching Where and checks
// Expect against it (subset semantics).
func assertRecord(ctx context.Context, st *store.Store, entity string, assertion Assertion) error {
	recs, err := st.Records(ctx, entity)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}

	var found []map[string]any
	for _, r := range recs {
		if _, ok := matchSubset(r.Document, assertion.Where); ok {
			found = append(found, r.Document)
		}
	}

	where := document.CanonicalString(assertion.Where)
	switch len(found) {
	case 0:
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("record of %s where %s", entity, where),
			Actual:   "record not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("exactly one record of %s where %s", entity, where),
			Actual:   fmt.Sprintf("%d records matched (assertion is ambiguous)", len(found)),
		}
	}

	if field, ok := matchSubset(found[0], assertion.Expect); !ok {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("field %q = %s", field, document.CanonicalString(assertion.Expect[field])),
			Actual:   dumper.Sdump(found[0]),
		}
	}
	return nil
}

// assertEventOrder checks that the event types appear in the specified
// order. Intervening events are allowed.
func assertEventOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(assertion.Events) && ev.Type == assertion.Events[next] {
			next++
		}
	}
	if next < len(assertion.Events) {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: fmt.Sprintf("events in order: %v", assertion.Events),
			Actual:   fmt.Sprintf("%s (position %d) not found after its predecessors", assertion.Events[next], next+1),
			Trace:    trace,
		}
	}
	return nil
}

// assertEventCount checks that the event type appears exactly Count times.
func assertEventCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Type == assertion.Event {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store  *store.Store
	Ctx    context.Context
	Entity string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for record assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEventOrder:
			err = assertEventOrder(result.Trace, assertion)
		case AssertEventCount:
			err = assertEventCount(result.Trace, assertion)
		case AssertRecordCount, AssertRecord:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
				break
			}
			if assertion.Type == AssertRecordCount {
				err = assertRecordCount(actx.Ctx, actx.Store, actx.Entity, assertion)
			} else {
				err = assertRecord(actx.Ctx, actx.Store, actx.Entity, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
