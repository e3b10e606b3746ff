package cli

import (
	"github.com/spf13/cobra"

	"github.com/handiism/bookget/internal/tui"
)

func newInteractiveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"tui"},
		Short:   "Start the terminal user interface",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return tui.Run(cmd.Context(), opts.settings)
		},
	}
}
