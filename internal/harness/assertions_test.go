package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
)

type fakeState map[record.Collection][]record.Record

func (f fakeState) Snapshot(c record.Collection) []record.Record {
	return f[c]
}

func intp(n int) *int { return &n }

func sampleResult() *Result {
	res := NewResult()
	res.AddInvocationTrace("event.create", map[string]any{"name": "Cup"})
	res.AddCompletionTrace("event.create", CaseOK, nil, []string{"info EVENT_CREATED: event created"})
	res.AddInvocationTrace("entrant.register", map[string]any{"event": "ev1", "name": "Jan"})
	res.AddCompletionTrace("entrant.register", CaseOK, nil, nil)
	res.AddInvocationTrace("entrant.register", map[string]any{"event": "ev1", "name": "Eva"})
	res.AddCompletionTrace("entrant.register", "EVENT_FULL", nil, []string{"warning EVENT_FULL: Cup is full"})
	return res
}

func sampleState() fakeState {
	return fakeState{
		record.Entrants: {
			record.Entrant{ID: "e1", EventID: "ev1", Name: "Jan"},
			record.Entrant{ID: "e2", EventID: "ev2", Name: "Eva"},
		},
	}
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	errs := EvaluateAssertions([]Assertion{
		{Type: AssertTraceContains, Action: "entrant.register", Args: map[string]any{"name": "Eva"}},
		{Type: AssertTraceOrder, Actions: []string{"event.create", "entrant.register"}},
		{Type: AssertTraceCount, Action: "entrant.register", Count: intp(2)},
		{Type: AssertTraceCount, Action: "entrant.register", Args: map[string]any{"name": "Jan"}, Count: intp(1)},
		{Type: AssertTraceCount, Action: "event.delete", Count: intp(0)},
		{Type: AssertFinalState, Collection: "entrants", Where: map[string]any{"eventId": "ev1"}, Expect: map[string]any{"name": "Jan"}},
		{Type: AssertFinalState, Collection: "entrants", Count: intp(2)},
		{Type: AssertNotice, Code: "EVENT_FULL", Message: "is full"},
		{Type: AssertNotice, Code: "EVENT_CREATED"},
	}, sampleResult(), sampleState())
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	cases := map[string]struct {
		a    Assertion
		want string
	}{
		"missing invocation": {
			Assertion{Type: AssertTraceContains, Action: "entrant.register", Args: map[string]any{"name": "Olda"}},
			"no matching invocation",
		},
		"wrong order": {
			Assertion{Type: AssertTraceOrder, Actions: []string{"entrant.register", "event.create"}},
			"order broken at event.create",
		},
		"wrong count": {
			Assertion{Type: AssertTraceCount, Action: "entrant.register", Count: intp(3)},
			"Actual: 2 times",
		},
		"state count": {
			Assertion{Type: AssertFinalState, Collection: "entrants", Where: map[string]any{"eventId": "ev1"}, Count: intp(0)},
			"0 entrants records where eventId=ev1",
		},
		"state ambiguous": {
			Assertion{Type: AssertFinalState, Collection: "entrants", Expect: map[string]any{"name": "Jan"}},
			"exactly one entrants record",
		},
		"state value": {
			Assertion{Type: AssertFinalState, Collection: "entrants", Where: map[string]any{"id": "e2"}, Expect: map[string]any{"name": "Jan"}},
			"name = Jan",
		},
		"unknown collection": {
			Assertion{Type: AssertFinalState, Collection: "fish", Count: intp(0)},
			`unknown collection "fish"`,
		},
		"notice message": {
			Assertion{Type: AssertNotice, Code: "EVENT_FULL", Message: "closed"},
			`EVENT_FULL containing "closed"`,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			errs := EvaluateAssertions([]Assertion{tc.a}, sampleResult(), sampleState())
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0].Error(), tc.want)
		})
	}
}

func TestMatchFields_NormalizesNumbers(t *testing.T) {
	actual := normalizeMap(map[string]any{"count": 3, "tags": []string{"a"}})
	_, ok := matchFields(actual, map[string]any{"count": 3, "tags": []any{"a"}})
	assert.True(t, ok)

	key, ok := matchFields(actual, map[string]any{"count": 4})
	assert.False(t, ok)
	assert.Equal(t, "count", key)

	key, ok = matchFields(actual, map[string]any{"missing": nil})
	assert.False(t, ok)
	assert.Equal(t, "missing", key)
}
