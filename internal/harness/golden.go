package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the golden form of a scenario run.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// RunWithGolden runs s and compares its trace with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario) (*Result, error) {
	t.Helper()
	res, err := Run(context.Background(), s)
	if err != nil {
		return nil, err
	}
	return res, AssertGolden(t, s.Name, res)
}

// AssertGolden compares the trace of an existing result with its golden file.
func AssertGolden(t *testing.T, name string, res *Result) error {
	t.Helper()
	data, err := MarshalSnapshot(name, res)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// MarshalSnapshot renders the golden file contents for a result.
func MarshalSnapshot(name string, res *Result) ([]byte, error) {
	data, err := json.MarshalIndent(TraceSnapshot{ScenarioName: name, Trace: res.Trace}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal trace: %w", err)
	}
	return append(data, '\n'), nil
}
