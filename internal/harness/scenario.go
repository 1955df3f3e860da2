package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is an end-to-end test of fishsync behavior: setup steps, a flow
// of invocations with expected outcomes, and assertions over the trace, the
// notices and the final collections.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Clock is the RFC 3339 start time of the manual clock.
	// Defaults to DefaultClock.
	Clock string `yaml:"clock,omitempty"`

	// Mode is "local" (default) or "remote". Remote scenarios run against an
	// in-process hub, so records written by "remote.put" arrive the way
	// another device's writes would.
	Mode string `yaml:"mode,omitempty"`

	// Sync is "auto" (default) or "manual". In auto sync every remote write
	// is flushed after the step that queued it; manual scenarios call
	// "sync.flush" themselves.
	Sync string `yaml:"sync,omitempty"`

	// Poll overrides the deep-link wait budget.
	Poll *PollConfig `yaml:"poll,omitempty"`

	// Setup steps must succeed; a rejected setup step fails the scenario.
	Setup []ActionStep `yaml:"setup,omitempty"`

	Flow       []FlowStep  `yaml:"flow"`
	Assertions []Assertion `yaml:"assertions"`
}

// PollConfig is the deep-link wait budget.
type PollConfig struct {
	Attempts int    `yaml:"attempts"`
	Interval string `yaml:"interval"`
}

// ActionStep is a setup action.
type ActionStep struct {
	Action string         `yaml:"action"`
	As     string         `yaml:"as,omitempty"`
	Args   map[string]any `yaml:"args"`
}

// FlowStep invokes an action and optionally checks its completion.
type FlowStep struct {
	Invoke string `yaml:"invoke"`

	// As binds the id of the created record to a variable; later steps
	// refer to it as "$name".
	As string `yaml:"as,omitempty"`

	Args   map[string]any `yaml:"args"`
	Expect *ExpectClause  `yaml:"expect,omitempty"`
}

// ExpectClause is the expected completion of a flow step.
type ExpectClause struct {
	// Case is "OK", a catch outcome, a deep-link step, or a rejection code
	// such as EVENT_FULL.
	Case string `yaml:"case"`

	// Result is matched as a subset of the completion result.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the trace, the notices or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// trace_contains, trace_count
	Action string         `yaml:"action,omitempty"`
	Args   map[string]any `yaml:"args,omitempty"`

	// trace_order
	Actions []string `yaml:"actions,omitempty"`

	// final_state: records of Collection matching Where. With Expect exactly
	// one record must match and contain Expect; with Count the number of
	// matches must equal it.
	Collection string         `yaml:"collection,omitempty"`
	Where      map[string]any `yaml:"where,omitempty"`
	Expect     map[string]any `yaml:"expect,omitempty"`

	// trace_count, final_state
	Count *int `yaml:"count,omitempty"`

	// notice: a notice with Code whose message contains Message.
	Code    string `yaml:"code,omitempty"`
	Message string `yaml:"message,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertNotice        = "notice"
)

// Scenario modes and sync styles.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
	SyncAuto   = "auto"
	SyncManual = "manual"
)

// DefaultClock is the start time of scenarios that do not set one.
const DefaultClock = "2025-05-01T10:00:00Z"

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos surface instead of being ignored.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, m...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}
	sort.Strings(files)

	out := make([]*Scenario, 0, len(files))
	for _, f := range files {
		s, err := LoadScenario(f)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (s *Scenario) start() (time.Time, error) {
	ts := s.Clock
	if ts == "" {
		ts = DefaultClock
	}
	return time.Parse(time.RFC3339, ts)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if _, err := s.start(); err != nil {
		return fmt.Errorf("clock: %w", err)
	}
	switch s.Mode {
	case "", ModeLocal, ModeRemote:
	default:
		return fmt.Errorf("mode must be %s or %s (got %q)", ModeLocal, ModeRemote, s.Mode)
	}
	switch s.Sync {
	case "", SyncAuto, SyncManual:
	default:
		return fmt.Errorf("sync must be %s or %s (got %q)", SyncAuto, SyncManual, s.Sync)
	}
	if s.Poll != nil {
		if s.Poll.Attempts < 1 {
			return fmt.Errorf("poll.attempts must be >= 1")
		}
		if d, err := time.ParseDuration(s.Poll.Interval); err != nil || d <= 0 {
			return fmt.Errorf("poll.interval must be a positive duration (got %q)", s.Poll.Interval)
		}
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step.Action, step.Args); err != nil {
			return err
		}
	}
	for i, step := range s.Flow {
		where := fmt.Sprintf("flow[%d]", i)
		if err := validateStep(where, step.Invoke, step.Args); err != nil {
			return err
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("%s.expect: case is required", where)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where, action string, args map[string]any) error {
	if action == "" {
		return fmt.Errorf("%s: action is required", where)
	}
	if _, ok := actions[action]; !ok {
		return fmt.Errorf("%s: unknown action %q", where, action)
	}
	if args == nil {
		return fmt.Errorf("%s: args is required (use empty map if no args)", where)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Collection == "" {
			return fmt.Errorf("assertions[%d]: collection is required for final_state", index)
		}
		if len(a.Expect) == 0 && a.Count == nil {
			return fmt.Errorf("assertions[%d]: expect or count is required for final_state", index)
		}
	case AssertNotice:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for notice", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
