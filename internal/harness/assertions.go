package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
)

// AssertionError describes a failed assertion with the trace for context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		if ev.Type == "completion" {
			fmt.Fprintf(&buf, "  [%d] %s -> %s\n", ev.Seq, ev.Action, ev.Case)
		}
	}
	return buf.String()
}

// State exposes the final collections to final_state assertions.
type State interface {
	Snapshot(c record.Collection) []record.Record
}

// EvaluateAssertions checks every assertion and returns the failures.
func EvaluateAssertions(assertions []Assertion, res *Result, st State) []error {
	var errs []error
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(res.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(res.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(res.Trace, a)
		case AssertFinalState:
			err = assertFinalState(st, a)
		case AssertNotice:
			err = assertNotice(res, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func invocations(trace []TraceEvent) []TraceEvent {
	var out []TraceEvent
	for _, ev := range trace {
		if ev.Type == "invocation" {
			out = append(out, ev)
		}
	}
	return out
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range invocations(trace) {
		if ev.Action != a.Action {
			continue
		}
		if _, ok := matchFields(normalizeMap(ev.Args), a.Args); ok {
			return nil
		}
	}
	expected := a.Action
	if len(a.Args) > 0 {
		expected = fmt.Sprintf("%s with args %v", a.Action, a.Args)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "no matching invocation",
		Trace:    trace,
	}
}

// assertTraceOrder requires the actions to appear in order, not necessarily
// adjacent.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range invocations(trace) {
		if next < len(a.Actions) && ev.Action == a.Actions[next] {
			next++
		}
	}
	if next == len(a.Actions) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: strings.Join(a.Actions, " -> "),
		Actual:   fmt.Sprintf("order broken at %s", a.Actions[next]),
		Trace:    trace,
	}
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range invocations(trace) {
		if ev.Action != a.Action {
			continue
		}
		if _, ok := matchFields(normalizeMap(ev.Args), a.Args); ok {
			n++
		}
	}
	if n == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%s invoked %d times", a.Action, *a.Count),
		Actual:   fmt.Sprintf("%d times", n),
		Trace:    trace,
	}
}

func assertFinalState(st State, a Assertion) error {
	c := record.Collection(a.Collection)
	if !c.Valid() {
		return fmt.Errorf("final_state: unknown collection %q", a.Collection)
	}

	var matches []map[string]any
	for _, rec := range st.Snapshot(c) {
		m, _ := normalize(rec).(map[string]any)
		if _, ok := matchFields(m, a.Where); ok {
			matches = append(matches, m)
		}
	}

	where := formatFields(a.Where)
	if a.Count != nil && len(matches) != *a.Count {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%d %s records where %s", *a.Count, c, where),
			Actual:   fmt.Sprintf("%d records", len(matches)),
		}
	}
	if len(a.Expect) == 0 {
		return nil
	}
	if len(matches) != 1 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one %s record where %s", c, where),
			Actual:   fmt.Sprintf("%d records", len(matches)),
		}
	}
	if key, ok := matchFields(matches[0], a.Expect); !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %v in %s where %s", key, normalize(a.Expect[key]), c, where),
			Actual:   fmt.Sprintf("%v", matches[0][key]),
		}
	}
	return nil
}

func assertNotice(res *Result, a Assertion) error {
	prefix := " " + a.Code + ": "
	for _, n := range res.Notices {
		i := strings.Index(n, prefix)
		if i < 0 {
			continue
		}
		if strings.Contains(n[i+len(prefix):], a.Message) {
			return nil
		}
	}
	expected := a.Code
	if a.Message != "" {
		expected = fmt.Sprintf("%s containing %q", a.Code, a.Message)
	}
	return &AssertionError{
		Type:     AssertNotice,
		Expected: expected,
		Actual:   fmt.Sprintf("notices %v", res.Notices),
		Trace:    res.Trace,
	}
}

// matchFields reports whether actual contains every expected field with an
// equal value. On mismatch it returns the first failing key in sorted order.
func matchFields(actual map[string]any, expected map[string]any) (string, bool) {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		got, ok := actual[k]
		if !ok || !reflect.DeepEqual(got, normalize(expected[k])) {
			return k, false
		}
	}
	return "", true
}

func normalizeMap(m map[string]any) map[string]any {
	out, _ := normalize(m).(map[string]any)
	return out
}

func formatFields(m map[string]any) string {
	if len(m) == 0 {
		return "any"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, m[k])
	}
	return strings.Join(parts, ", ")
}
