package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// PlanSummary describes one runnable scenario.
type PlanSummary struct {
	Name    string `json:"name"`
	Source  string `json:"source"`
	BaseURL string `json:"base_url,omitempty"`
	Steps   int    `json:"steps"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var match string
	cmd := &cobra.Command{
		Use:           "list <file-or-dir>...",
		Short:         "List the scenarios a run would execute",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			plans, err := loadPlans(args, match)
			if err != nil {
				return err
			}
			summaries := make([]PlanSummary, len(plans))
			for i, p := range plans {
				summaries[i] = PlanSummary{Name: p.Name, Source: p.Source, BaseURL: p.BaseURL, Steps: len(p.Steps)}
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, summaries)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCENARIO\tSTEPS\tSOURCE")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Name, s.Steps, s.Source)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&match, "run", "r", "", "only list scenarios whose name matches this regexp")
	return cmd
}
