package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/handiism/bookget/internal/config"
	ioutils "github.com/handiism/bookget/internal/io"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create configuration files",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return render(cmd.OutOrStdout(), opts.outputFormat, opts.settings, func(w io.Writer) error {
					data, err := yaml.Marshal(opts.settings)
					if err != nil {
						return err
					}
					_, err = w.Write(data)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "init PATH",
			Short: "Write a configuration file with default values",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if ioutils.Exists(args[0]) {
					return fmt.Errorf("%s already exists", args[0])
				}
				if err := config.DefaultSettings().Save(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", args[0])
				return nil
			},
		},
	)

	return cmd
}
