// Package cli implements the bookget command line.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/handiism/bookget/internal/config"
	"github.com/handiism/bookget/internal/logger"
)

// globalOptions holds the persistent flags and the settings they resolve
// to. It is filled in by the root command before any subcommand runs.
type globalOptions struct {
	configPath   string
	verbose      bool
	logLevel     string
	logFormat    string
	outputFormat string

	settings *config.Settings
}

// NewRootCmd builds the bookget command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "bookget",
		Short: "Download digitized books from IIIF manifests",
		Long: `bookget downloads the page images and OCR files of digitized books
described by IIIF Presentation manifests (v2 and v3) and packages them
with Dublin Core metadata as an RO-Crate.

Files already on disk are skipped, so an interrupted download can simply
be started again.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (YAML, or JSON with a .json extension)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (text, json)")
	cmd.PersistentFlags().StringVarP(&opts.outputFormat, "output", "o", "text", "output format (text, json, yaml)")

	cmd.AddCommand(
		newDownloadCmd(opts),
		newBatchCmd(opts),
		newInteractiveCmd(opts),
		newHandlersCmd(opts),
		newInfoCmd(opts),
		newSlugCmd(opts),
		newConfigCmd(opts),
		NewVersionCmd(),
	)

	return cmd
}

func (o *globalOptions) load(cmd *cobra.Command) error {
	switch strings.ToLower(o.outputFormat) {
	case formatText, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown output format %q", o.outputFormat)
	}

	settings, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if o.logLevel != "" {
		settings.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		settings.LogFormat = o.logFormat
	}
	if o.verbose {
		settings.LogLevel = "debug"
	}

	logger.InitLogger(settings.LogLevel, settings.LogFormat)
	logger.Debug("configuration loaded", logger.Fields{"config": o.configPath, "command": cmd.Name()})

	o.settings = settings
	return nil
}

// Execute runs the command line with args and returns the process exit
// status: 0 on success, 130 when ctx was cancelled, 1 otherwise.
func Execute(ctx context.Context, args []string) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return exitCode(err)
}
