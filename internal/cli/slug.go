package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	ioutils "github.com/handiism/bookget/internal/io"
)

func newSlugCmd(_ *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slug",
		Short: "Convert between manifest URLs and directory slugs",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "encode URL",
			Short: "Print the directory slug of a URL",
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), ioutils.URLToSlug(args[0]))
			},
		},
		&cobra.Command{
			Use:   "decode SLUG",
			Short: "Print the URL a directory slug was made from",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				url, err := ioutils.SlugToURL(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), url)
				return nil
			},
		},
	)

	return cmd
}
