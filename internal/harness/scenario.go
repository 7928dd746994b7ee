package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edtacey/jsonmapper/internal/document"
)

// Scenario defines an end-to-end pipeline scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Definitions is the rule bundle to load: a YAML or JSON file, or a
	// directory of CUE files. Relative paths are resolved against the
	// scenario file by LoadScenario.
	Definitions string `yaml:"definitions"`

	// Entity is the entity every step is processed as.
	Entity string `yaml:"entity"`

	// Clock overrides the default deterministic clock.
	Clock *ClockConfig `yaml:"clock,omitempty"`

	// IDPrefix prefixes generated ids. Defaults to "id".
	IDPrefix string `yaml:"id_prefix,omitempty"`

	// Steps are processed in order against the same store.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final store and outbox.
	Assertions []Assertion `yaml:"assertions"`
}

// ClockConfig sets the first instant and the step of the scenario clock.
type ClockConfig struct {
	Start string `yaml:"start"`
	Step  string `yaml:"step"`
}

// parse returns the start instant and step. Empty fields keep the
// defaults.
func (c *ClockConfig) parse() (time.Time, time.Duration, error) {
	start, step := defaultClockStart, time.Second
	if c == nil {
		return start, step, nil
	}
	if c.Start != "" {
		t, err := time.Parse(time.RFC3339, c.Start)
		if err != nil {
			return start, step, fmt.Errorf("clock.start: %w", err)
		}
		start = t
	}
	if c.Step != "" {
		d, err := time.ParseDuration(c.Step)
		if err != nil {
			return start, step, fmt.Errorf("clock.step: %w", err)
		}
		if d < 0 {
			return start, step, fmt.Errorf("clock.step must be non-negative")
		}
		step = d
	}
	return start, step, nil
}

// Step is one document processed through the pipeline.
type Step struct {
	// Document is the source document.
	Document map[string]any `yaml:"document"`

	// Expect validates the outcome. If nil the step must simply not fail.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Operation is insert, update or skip.
	Operation string `yaml:"operation,omitempty"`

	// Final is a subset of the persisted document.
	Final map[string]any `yaml:"final,omitempty"`

	// Changes lists the changed field paths, in any order.
	Changes []string `yaml:"changes,omitempty"`

	// Event is the expected event type.
	Event string `yaml:"event,omitempty"`

	// RuleErrors lists the expected rule error codes, in order.
	RuleErrors []string `yaml:"rule_errors,omitempty"`

	// Error is a substring of the expected processing error. A step that
	// expects an error must fail.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final store or outbox.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Count is the expected count (record_count, event_count).
	Count int `yaml:"count,omitempty"`

	// Where selects a stored record by subset match (record).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect is a subset of the selected record (record).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Event is the event type to count (event_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected event type order (event_order).
	Events []string `yaml:"events,omitempty"`
}

// Assertion type constants.
const (
	AssertRecordCount = "record_count"
	AssertRecord      = "record"
	AssertEventOrder  = "event_order"
	AssertEventCount  = "event_count"
)

// LoadScenario reads and parses a scenario YAML file. The definitions path
// is resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the definitions path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Definitions != "" && !filepath.IsAbs(scenario.Definitions) && basePath != "" {
		scenario.Definitions = filepath.Join(basePath, scenario.Definitions)
	}
	scenario.normalize()

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// normalize converts YAML-decoded values to document shapes so they
// compare equal to pipeline output.
func (s *Scenario) normalize() {
	for i := range s.Steps {
		s.Steps[i].Document = normalizeObject(s.Steps[i].Document)
		if e := s.Steps[i].Expect; e != nil {
			e.Final = normalizeObject(e.Final)
		}
	}
	for i := range s.Assertions {
		s.Assertions[i].Where = normalizeObject(s.Assertions[i].Where)
		s.Assertions[i].Expect = normalizeObject(s.Assertions[i].Expect)
	}
}

func normalizeObject(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	obj, _ := document.Normalize(m).(map[string]any)
	return obj
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Definitions == "" {
		return fmt.Errorf("definitions is required")
	}
	if _, err := os.Stat(s.Definitions); os.IsNotExist(err) {
		return fmt.Errorf("definitions not found: %s", s.Definitions)
	}
	if s.Entity == "" {
		return fmt.Errorf("entity is required")
	}
	if _, _, err := s.Clock.parse(); err != nil {
		return err
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if step.Document == nil {
			return fmt.Errorf("steps[%d]: document is required", i)
		}
		if e := step.Expect; e != nil {
			switch e.Operation {
			case "", "insert", "update", "skip":
			default:
				return fmt.Errorf("steps[%d].expect: unknown operation %q", i, e.Operation)
			}
			if e.Error != "" && (e.Operation != "" || e.Event != "" || e.Final != nil) {
				return fmt.Errorf("steps[%d].expect: error cannot be combined with outcome fields", i)
			}
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRecordCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for record_count", index)
		}
	case AssertRecord:
		if len(a.Where) == 0 {
			return fmt.Errorf("assertions[%d]: where is required for record", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for record", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
