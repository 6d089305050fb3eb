package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kuitang/uicheck/internal/browser/pwdriver"
)

// NewInstallCommand creates the install command.
func NewInstallCommand(_ *RootOptions) *cobra.Command {
	var browserName string
	cmd := &cobra.Command{
		Use:           "install",
		Short:         "Download the Playwright driver and a browser",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := pwdriver.Install(browserName); err != nil {
				return WrapExitError(ExitCommandError, "install "+browserName, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed %s\n", browserName)
			return nil
		},
	}
	cmd.Flags().StringVar(&browserName, "browser", "chromium", "browser to install (chromium|firefox|webkit)")
	return cmd
}
