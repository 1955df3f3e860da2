package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/views"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "stats [year]",
		Short: "Show statistics and standings for a year",
		Long: `Aggregates events, registrations, attendance, catches and guest visits
of one calendar year. The year defaults to the current one.

Examples:
  fishsync stats
  fishsync stats 2025 --top 20`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				year := s.app.Service.Now().Year()
				if len(args) == 1 {
					y, err := strconv.Atoi(args[0])
					if err != nil || y < 1000 || y > 9999 {
						return NewExitError(ExitCommandError, fmt.Sprintf("invalid year %q: must have 4 digits", args[0]))
					}
					year = y
				}
				st := views.Year(s.app.Engine.Dataset(), year)
				return s.done(st, statsText(st, top, s.app.Service.Fees().Currency))
			})
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "standings lines to print in text mode, 0 for all")
	return cmd
}

func statsText(st views.YearStats, top int, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Year %d\n", st.Year)
	fmt.Fprintf(&b, "  Events:         %d\n", st.Events)
	fmt.Fprintf(&b, "  Registrations:  %d (avg %d per event)\n", st.Registrations, st.AvgEntrantsPerEvent)
	fmt.Fprintf(&b, "  Check-ins:      %d (avg %d per member)\n", st.CheckIns, st.AvgAttendancePerMember)
	fmt.Fprintf(&b, "  Catches:        %d (avg %d per attendee)\n", st.Catches, st.AvgCatchesPerAttendee)
	fmt.Fprintf(&b, "  Guest visits:   %d (%d %s)\n", st.Visits, st.VisitFees, currency)

	standings := st.Standings
	if len(standings) == 0 {
		return b.String()
	}
	if top > 0 && len(standings) > top {
		standings = standings[:top]
	}
	b.WriteString("\n")
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tATTENDANCE\tCATCHES")
	for i, line := range standings {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", i+1, line.Name, line.Attendance, line.Catches)
	}
	_ = tw.Flush()
	return b.String()
}
