package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: register_one
description: "One entrant registers"
setup:
  - action: event.create
    as: ev
    args: {name: "Cup", date: "2025-06-01", maxEntrants: 2}
flow:
  - invoke: entrant.register
    args: {event: $ev, name: "Jan"}
    expect: {case: OK}
assertions:
  - type: final_state
    collection: entrants
    count: 1
`

const failingScenario = `
name: full_event
description: "Registration for a full event is expected to pass"
setup:
  - action: event.create
    as: ev
    args: {name: "Cup", date: "2025-06-01", maxEntrants: 0}
flow:
  - invoke: entrant.register
    args: {event: $ev, name: "Jan"}
    expect: {case: OK}
assertions:
  - type: trace_contains
    action: entrant.register
`

func writeScenario(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newRootCommand(&RootOptions{})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"test", "--format", format}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommand_NonExistentPath(t *testing.T) {
	_, err := runTestCommand(t, "text", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios not found")
}

func TestTestCommand_EmptyDir(t *testing.T) {
	out, err := runTestCommand(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_EmptyDirJSON(t *testing.T) {
	out, err := runTestCommand(t, "json", t.TempDir())
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTestCommand_RunsHarnessScenarios(t *testing.T) {
	out, err := runTestCommand(t, "text", filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ registration_race")
	assert.Contains(t, out, "✓ All scenarios passed")
	assert.Contains(t, out, "Test Summary: 11 passed, 0 failed, 11 total")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := runTestCommand(t, "text", filepath.Join("..", "harness", "testdata", "scenarios"), "--filter", "deeplink_*")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Test Summary: 3 passed, 0 failed, 3 total")
	assert.NotContains(t, out, "registration_race")
}

func TestTestCommand_FailureExitCode(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a_pass.yaml", passingScenario)
	writeScenario(t, dir, "b_fail.yaml", failingScenario)

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ register_one")
	assert.Contains(t, out, "✗ full_event")
	assert.Contains(t, out, "expected case OK, got EVENT_FULL")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommand_FailureJSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "fail.yaml", failingScenario)

	out, err := runTestCommand(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "full_event", resp.Data.Scenarios[0].Name)
	assert.False(t, resp.Data.Scenarios[0].Pass)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
}

func TestTestCommand_LoadError(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: broken\nflow: [")

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "load error")
}

func TestTestCommand_GoldenUpdateAndCompare(t *testing.T) {
	dir := t.TempDir()
	file := writeScenario(t, dir, "register_one.yaml", passingScenario)

	out, err := runTestCommand(t, "text", dir, "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "golden updated")

	golden, err := os.ReadFile(goldenFilePath(file))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name": "register_one"`)

	out, err = runTestCommand(t, "text", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ register_one")

	require.NoError(t, os.WriteFile(goldenFilePath(file), []byte("{}\n"), 0o644))
	out, err = runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b.yaml", passingScenario)
	writeScenario(t, dir, "a.yml", passingScenario)
	writeScenario(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	writeScenario(t, filepath.Join(dir, "golden"), "c.yaml", "ignored")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "club"), 0o755))
	writeScenario(t, filepath.Join(dir, "club"), "d.yaml", passingScenario)

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "club", "d.yaml"),
	}, files)

	files, err = findScenarioFiles(dir, "b*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yaml")}, files)

	single, err := findScenarioFiles(filepath.Join(dir, "b.yaml"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yaml")}, single)

	_, err = findScenarioFiles(dir, "[")
	assert.ErrorContains(t, err, "invalid filter pattern")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "club_day.golden"),
		goldenFilePath(filepath.Join("scenarios", "club_day.yaml")))
}
