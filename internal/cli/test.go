package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern on the file name)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test [scenarios]",
		Short: "Run behaviour scenarios",
		Long: `Runs YAML scenarios against an isolated in-memory instance: registration
races, catch quotas, cascades, deep links and remote sync.

A scenario with a golden file at <dir>/golden/<name>.golden must also
reproduce its trace. The argument is a scenario file or directory and
defaults to testdata/scenarios.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  fishsync test
  fishsync test ./scenarios --filter "deeplink_*"
  fishsync test ./scenarios --update
  fishsync test --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join("testdata", "scenarios")
			if len(args) == 1 {
				path = args[0]
			}
			return runTests(opts, path, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, path string, cmd *cobra.Command) error {
	if _, err := os.Stat(path); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios not found: %s", path))
	}

	files, err := findScenarioFiles(path, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(files) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, f := range files {
		sr := runScenario(f, opts, cmd)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles returns path itself when it is a file, otherwise the
// YAML files below it in lexical order. Golden directories are skipped.
func findScenarioFiles(path string, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(p), ext)
			if matched, _ := filepath.Match(filter, name); !matched {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	return files, err
}

// runScenario executes a single scenario file and reports it in text mode.
func runScenario(file string, opts *TestOptions, cmd *cobra.Command) ScenarioResult {
	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		w = io.Discard
	}

	name := filepath.Base(file)
	fail := func(errs ...string) ScenarioResult {
		fmt.Fprintf(w, "✗ %s\n", name)
		for _, e := range errs {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return ScenarioResult{Name: name, Pass: false, Errors: errs}
	}

	s, err := harness.LoadScenario(file)
	if err != nil {
		return fail(fmt.Sprintf("load error: %v", err))
	}
	name = s.Name

	opts.formatter(cmd).VerboseLog("running %s (%s)", s.Name, file)
	res, err := harness.Run(cmd.Context(), s)
	if err != nil {
		return fail(fmt.Sprintf("execution error: %v", err))
	}
	if !res.Pass {
		return fail(res.Errors...)
	}

	goldenPath := goldenFilePath(file)
	snapshot, err := harness.MarshalSnapshot(s.Name, res)
	if err != nil {
		return fail(err.Error())
	}

	if opts.Update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
			return fail(fmt.Sprintf("golden update error: %v", err))
		}
		if err := os.WriteFile(goldenPath, snapshot, 0o644); err != nil {
			return fail(fmt.Sprintf("golden update error: %v", err))
		}
		fmt.Fprintf(w, "✓ %s (golden updated)\n", s.Name)
		return ScenarioResult{Name: s.Name, Pass: true}
	}

	golden, err := os.ReadFile(goldenPath)
	switch {
	case os.IsNotExist(err):
		// assertions only
	case err != nil:
		return fail(fmt.Sprintf("golden read error: %v", err))
	case !bytes.Equal(golden, snapshot):
		return fail("trace does not match golden file (run with --update to regenerate)")
	}

	fmt.Fprintf(w, "✓ %s\n", s.Name)
	return ScenarioResult{Name: s.Name, Pass: true}
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(file string) string {
	base := filepath.Base(file)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(file), "golden", name+".golden")
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}
	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
