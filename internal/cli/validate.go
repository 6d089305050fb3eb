package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kuitang/uicheck/internal/scenario"
)

// ValidationResult is the JSON output of validate.
type ValidationResult struct {
	Valid     bool   `json:"valid"`
	Scenarios int    `json:"scenarios"`
	Steps     int    `json:"steps"`
	Error     string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file-or-dir>...",
		Short: "Check scenario files without opening a browser",
		Long: `Parse scenario files, expand templates, cases and foreach tables, and
check every step. Problems are reported with their file and line.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			plans, err := scenario.LoadAll(args)
			res := ValidationResult{Valid: err == nil}
			if err != nil {
				res.Error = err.Error()
			}
			for _, p := range plans {
				res.Scenarios++
				res.Steps += len(p.Steps)
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				if werr := writeJSON(out, res); werr != nil {
					return WrapExitError(ExitCommandError, "write result", werr)
				}
			} else if err == nil {
				fmt.Fprintf(out, "ok: %d scenarios, %d steps\n", res.Scenarios, res.Steps)
			}
			if err != nil {
				return WrapExitError(ExitFailure, "validation failed", err)
			}
			return nil
		},
	}
}
