package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/export"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/service"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/views"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <event-id>",
		Short: "Export an event's entrants as CSV",
		Long: `Writes the entrant table of an event as a ';'-separated CSV with a byte
order mark, ready for a spreadsheet. The file is named after the event
unless --out is given; --out - writes to stdout.

Examples:
  fishsync export 0196a5c2-...
  fishsync export 0196a5c2-... --out - > entrants.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				ev, rows, ok := views.ExportRows(s.app.Engine.Dataset(), args[0])
				if !ok {
					return s.fail(&service.ValidationError{Code: service.CodeNotFound, Message: "event not found"})
				}
				var buf bytes.Buffer
				if err := export.Write(&buf, rows); err != nil {
					return WrapExitError(ExitCommandError, "failed to render CSV", err)
				}
				if out == "-" {
					_, err := cmd.OutOrStdout().Write(buf.Bytes())
					return err
				}
				path := out
				if path == "" {
					path = export.Filename(ev.Name)
				}
				if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
					return WrapExitError(ExitCommandError, "failed to write export", err)
				}
				return s.done(map[string]any{"path": path, "rows": len(rows)},
					fmt.Sprintf("Exported %d entrants to %s", len(rows), path))
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout")
	return cmd
}
