package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/edtacey/jsonmapper/internal/document"
)

// Snapshot is the golden view of a scenario run. Record keys and event
// subjects are content hashes and are left out.
type Snapshot struct {
	ScenarioName string
	Steps        []StepResult
	Trace        []TraceEvent
}

// toCanonicalMap converts a Snapshot to document shapes for canonical JSON
// serialization.
func (s *Snapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Steps))
	for i, st := range s.Steps {
		m := map[string]any{"index": st.Index}
		if st.Operation != "" {
			m["operation"] = st.Operation
		}
		if st.Final != nil {
			m["final"] = st.Final
		}
		if len(st.Changes) > 0 {
			changes := make([]any, len(st.Changes))
			for j, c := range st.Changes {
				changes[j] = map[string]any{
					"field":     c.Field,
					"operation": c.Operation,
					"old_value": c.OldValue,
					"new_value": c.NewValue,
				}
			}
			m["changes"] = changes
		}
		if st.Event != "" {
			m["event"] = st.Event
		}
		if len(st.RuleErrors) > 0 {
			codes := make([]any, len(st.RuleErrors))
			for j, c := range st.RuleErrors {
				codes[j] = c
			}
			m["rule_errors"] = codes
		}
		if st.Error != "" {
			m["error"] = st.Error
		}
		steps[i] = m
	}

	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		trace[i] = map[string]any{
			"seq":  ev.Seq,
			"type": ev.Type,
			"id":   ev.ID,
			"time": ev.Time,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"steps":         steps,
		"trace":         trace,
	}
}

// SnapshotJSON renders the golden snapshot of result as canonical JSON.
func SnapshotJSON(scenarioName string, result *Result) ([]byte, error) {
	snapshot := Snapshot{
		ScenarioName: scenarioName,
		Steps:        result.Steps,
		Trace:        result.Trace,
	}
	return document.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := SnapshotJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
