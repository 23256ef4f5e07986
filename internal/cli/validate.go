package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/svcstore/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Services []string `json:"services,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a configuration file",
		Long: `Load a YAML, TOML, CUE or JSON configuration file and check every
service entry. CUE files are also checked against the configuration schema.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "config not found", err)
	}
	if err != nil {
		if formatter.Format == "json" {
			_ = formatter.Success(ValidationResult{Valid: false, Errors: []string{err.Error()}})
		} else {
			fmt.Fprintf(formatter.Writer, "invalid: %v\n", err)
		}
		return WrapExitError(ExitFailure, "validation failed", err)
	}

	names := make([]string, len(cfg.Services))
	for i, s := range cfg.Services {
		names[i] = s.Name
		formatter.VerboseLog("service %s ok", s.Name)
	}
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Services: names})
	}
	fmt.Fprintf(formatter.Writer, "valid: %d service(s)\n", len(names))
	return nil
}
