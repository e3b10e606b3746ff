package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/handiism/bookget/internal/handler"
)

type handlerInfo struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

func newHandlersCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "handlers",
		Short: "List available handlers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := handler.NewRegistry(handler.DefaultSources(nil, opts.settings)...)

			var list []handlerInfo
			for _, name := range registry.Names() {
				src, _ := registry.Get(name)
				list = append(list, handlerInfo{Name: name, Description: src.Describe()})
			}

			return render(cmd.OutOrStdout(), opts.outputFormat, list, func(w io.Writer) error {
				fmt.Fprintf(w, "%-12s %s\n", "HANDLER", "DESCRIPTION")
				for _, h := range list {
					fmt.Fprintf(w, "%-12s %s\n", h.Name, h.Description)
				}
				return nil
			})
		},
	}
}
