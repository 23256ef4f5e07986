package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/svcstore/internal/harness"
)

// ScenarioOutput is the JSON payload of the scenario command.
type ScenarioOutput struct {
	Name   string         `json:"name"`
	Pass   bool           `json:"pass"`
	Errors []string       `json:"errors,omitempty"`
	State  map[string]any `json:"state"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario <file.yaml>",
		Short: "Run a collection scenario and print its final state",
		Long: `Run the steps of a YAML scenario against a fresh collection, check its
expectations and print the final state as canonical JSON.

Exits with 1 when the scenario fails.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runScenario(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	s, err := harness.LoadScenario(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalid, "failed to load scenario", err)
	}
	formatter.VerboseLog("Running scenario %s (%d steps)", s.Name, len(s.Steps))

	result, err := harness.Run(s)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to run scenario", err)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(ScenarioOutput{Name: s.Name, Pass: result.Pass, Errors: result.Errors, State: result.State}); err != nil {
			return err
		}
	} else {
		state, err := harness.Canonical(s.Name, result)
		if err != nil {
			return err
		}
		fmt.Fprintln(formatter.Writer, string(state))
		status := "PASS"
		if !result.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(formatter.Writer, "%s %s\n", status, s.Name)
		for _, msg := range result.Errors {
			fmt.Fprintf(formatter.Writer, "  %s\n", msg)
		}
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", s.Name))
	}
	return nil
}
