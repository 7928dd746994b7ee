package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// To regenerate:
//
//	go test ./internal/harness -run TestRunWithGolden -update
func TestRunWithGolden_OrdersLifecycle(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/orders_lifecycle.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSnapshot_OmitsEmptyFields(t *testing.T) {
	snap := Snapshot{
		ScenarioName: "s",
		Steps:        []StepResult{{Index: 0, Error: "boom"}},
		Trace:        []TraceEvent{},
	}
	m := snap.toCanonicalMap()
	steps := m["steps"].([]any)
	require.Len(t, steps, 1)
	assert.Equal(t, map[string]any{"index": 0, "error": "boom"}, steps[0])
	assert.Equal(t, []any{}, m["trace"])
}
