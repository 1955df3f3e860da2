// Package cli implements the fishsync command line: the registration desk
// operations, catalog import, deep-link tools, the HTTP server and the
// scenario runner.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/app"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // YAML config path; empty means CONFIG_PATH or ./fishsync.yaml

	// appOptions are passed to app.New; tests swap the remote dialer here.
	appOptions []app.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fishsync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fishsync",
		Short:         "fishsync - fishing club registration desk",
		Long:          "Events, entrants, check-ins and catch quotas for fishing competitions and club days,\nstored locally and optionally shared through a remote collection store.",
		Version:       app.BuildVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output and debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file (default $CONFIG_PATH or ./fishsync.yaml)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewEventCommand(opts))
	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewCheckInCommand(opts))
	cmd.AddCommand(NewCatchCommand(opts))
	cmd.AddCommand(NewAnglerCommand(opts))
	cmd.AddCommand(NewVisitCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewLinkCommand(opts))
	cmd.AddCommand(NewRemoteCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
