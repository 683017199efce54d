package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/danmaku/internal/harness"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
	Trace  bool   // print each scenario's trace
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string               `json:"name"`
	Pass   bool                 `json:"pass"`
	Errors []string             `json:"errors,omitempty"`
	Trace  []harness.TraceEvent `json:"trace,omitempty"`
}

// SimulateResult holds the overall simulation result.
type SimulateResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario-file|scenarios-dir>",
		Short: "Replay wall scenarios offline",
		Long: `Replay YAML wall scenarios against the scheduler with a manual clock.

Each scenario's assertions are checked. When a golden trace exists in
golden/<name>.golden next to the scenario file, the trace must match it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  danmaku simulate ./testdata/scenarios
  danmaku simulate ./testdata/scenarios/bulk_load_loop.yaml --trace
  danmaku simulate ./testdata/scenarios --filter "burst*" --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print scenario traces")

	return cmd
}

func runSimulate(opts *SimulateOptions, path string, cmd *cobra.Command) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenario path not found: %s", path))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to access scenario path", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = findScenarioFiles(path, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
	}

	result := SimulateResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		sr := simulateScenario(file, opts, cmd)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputSimulateJSON(cmd, result)
	}
	return outputSimulateText(cmd, result)
}

// findScenarioFiles finds all YAML scenario files directly in dir.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if filter != "" {
			name := strings.TrimSuffix(entry.Name(), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

// simulateScenario runs one scenario file and reports the outcome.
func simulateScenario(file string, opts *SimulateOptions, cmd *cobra.Command) ScenarioResult {
	w := cmd.OutOrStdout()
	text := opts.Format != "json"

	fail := func(name string, errs ...string) ScenarioResult {
		if text {
			fmt.Fprintf(w, "✗ %s\n", name)
			for _, e := range errs {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		return ScenarioResult{Name: name, Pass: false, Errors: errs}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail(filepath.Base(file), fmt.Sprintf("failed to load scenario: %v", err))
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("execution failed: %v", err))
	}

	sr := ScenarioResult{Name: scenario.Name, Pass: true}
	if opts.Trace {
		sr.Trace = result.Trace
	}

	snapshot := harness.TraceSnapshot{
		ScenarioName: scenario.Name,
		Trace:        result.Trace,
		Active:       result.ActiveIDs(),
	}
	data, err := snapshot.Marshal()
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("failed to marshal trace: %v", err))
	}

	goldenPath := goldenFilePath(file)
	switch {
	case opts.Update:
		if err := writeGolden(goldenPath, data); err != nil {
			return fail(scenario.Name, fmt.Sprintf("failed to update golden file: %v", err))
		}
		slog.Debug("golden updated", "path", goldenPath)
	default:
		want, err := os.ReadFile(goldenPath)
		switch {
		case os.IsNotExist(err):
			// Assertions only.
		case err != nil:
			return fail(scenario.Name, fmt.Sprintf("failed to read golden file: %v", err))
		case string(want) != string(data):
			return fail(scenario.Name, "trace does not match golden file (run with --update to regenerate)")
		}
	}

	if !result.Pass {
		errs := fail(scenario.Name, result.Errors...)
		errs.Trace = sr.Trace
		return errs
	}

	if text {
		fmt.Fprintf(w, "✓ %s\n", scenario.Name)
		if opts.Trace {
			writeTraceText(w, result.Trace)
		}
	}
	return sr
}

func writeTraceText(w io.Writer, trace []harness.TraceEvent) {
	for _, ev := range trace {
		line := fmt.Sprintf("  %7dms %-7s #%d %s lane=%d start=%dms delay=%dms dur=%dms",
			ev.AtMS, ev.Event, ev.Instance, ev.Message, ev.Lane, ev.StartMS, ev.DelayMS, ev.DurationMS)
		if ev.Reason != "" {
			line += " (" + ev.Reason + ")"
		}
		fmt.Fprintln(w, line)
	}
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// outputSimulateJSON outputs the simulation result as JSON.
func outputSimulateJSON(cmd *cobra.Command, result SimulateResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeScenarioFailed,
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

// outputSimulateText outputs the summary as text.
func outputSimulateText(cmd *cobra.Command, result SimulateResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
