package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/catalog"
)

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <file-or-dir>",
		Short: "Import events from a CUE catalog",
		Long: `Creates the events declared in a .cue file, or in every .cue file of a
directory. Events already present with the same name and date are skipped.

Examples:
  fishsync import season-2025.cue
  fishsync import ./catalog --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := catalog.NewLoader().Load(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid catalog", err)
			}
			if dryRun {
				keys := make([]string, 0, len(entries))
				for _, e := range entries {
					keys = append(keys, e.Key)
				}
				return rootOpts.formatter(cmd).Success(entries,
					fmt.Sprintf("Catalog is valid: %d events (%s)", len(entries), strings.Join(keys, ", ")))
			}

			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				res, err := catalog.Import(ctx, s.app.Service, entries)
				if err != nil {
					return s.fail(err)
				}
				var b strings.Builder
				fmt.Fprintf(&b, "Imported %d events, skipped %d", len(res.Created), len(res.Skipped))
				for _, ev := range res.Created {
					fmt.Fprintf(&b, "\n  + %s %s (%s)", ev.Date, ev.Name, ev.ID)
				}
				for _, key := range res.Skipped {
					fmt.Fprintf(&b, "\n  = %s", key)
				}
				return s.done(map[string]any{"created": res.Created, "skipped": res.Skipped}, b.String())
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the catalog without touching the store")
	return cmd
}
