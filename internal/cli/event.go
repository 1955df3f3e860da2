package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/service"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/views"
)

// NewEventCommand creates the event command group.
func NewEventCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Manage competition events",
	}
	cmd.AddCommand(newEventCreateCommand(rootOpts))
	cmd.AddCommand(newEventUpdateCommand(rootOpts))
	cmd.AddCommand(newEventListCommand(rootOpts))
	cmd.AddCommand(newEventDeleteCommand(rootOpts))
	return cmd
}

type eventFlags struct {
	name        string
	date        string
	time        string
	location    string
	maxEntrants int
	subs        []string
	catchLimit  int
	description string
}

func (f *eventFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "event name (unique, case-insensitive)")
	cmd.Flags().StringVar(&f.date, "date", "", "event date YYYY-MM-DD")
	cmd.Flags().StringVar(&f.time, "time", "", "start time HH:MM")
	cmd.Flags().StringVar(&f.location, "location", "", "venue")
	cmd.Flags().IntVar(&f.maxEntrants, "max", 0, "capacity (default registration.default_max_entrants)")
	cmd.Flags().StringSliceVar(&f.subs, "sub", nil, "sub-location (pond or peg area), repeatable")
	cmd.Flags().IntVar(&f.catchLimit, "catch-limit", 0, "free catches per entrant, 0 for unlimited")
	cmd.Flags().StringVar(&f.description, "description", "", "free text")
}

func (f *eventFlags) input(cmd *cobra.Command) service.EventInput {
	in := service.EventInput{
		Name:         f.name,
		Date:         f.date,
		Time:         f.time,
		Location:     f.location,
		SubLocations: f.subs,
		CatchLimit:   f.catchLimit,
		Description:  f.description,
	}
	if cmd.Flags().Changed("max") {
		n := f.maxEntrants
		in.MaxEntrants = &n
	}
	return in
}

func newEventCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var flags eventFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an event",
		Long: `Creates a competition event.

Examples:
  fishsync event create --name "Jarní závody" --date 2025-05-10 --time 07:00 --max 40 --sub Horní --sub Dolní --catch-limit 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				ev, err := s.app.Service.CreateEvent(ctx, flags.input(cmd))
				if err != nil {
					return s.fail(err)
				}
				return s.done(ev, fmt.Sprintf("Created event %s (%s)", ev.Name, ev.ID))
			})
		},
	}
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newEventUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var flags eventFlags
	cmd := &cobra.Command{
		Use:   "update <event-id>",
		Short: "Replace an event's details",
		Long: `Replaces every field of an event. Entrants, check-ins and catches are kept.

Examples:
  fishsync event update 0196a5c2-... --name "Jarní závody" --date 2025-05-11`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				ev, err := s.app.Service.UpdateEvent(ctx, args[0], flags.input(cmd))
				if err != nil {
					return s.fail(err)
				}
				return s.done(ev, fmt.Sprintf("Updated event %s (%s)", ev.Name, ev.ID))
			})
		},
	}
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

// eventItem is the JSON shape of one listed event.
type eventItem struct {
	record.Event
	Status    views.Status `json:"status"`
	Entrants  int          `json:"entrants"`
	CheckedIn int          `json:"checkedIn"`
	Catches   int          `json:"catches"`
}

func newEventListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List events by date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				sums := s.app.Service.Events()
				items := make([]eventItem, 0, len(sums))
				for _, sum := range sums {
					items = append(items, eventItem{
						Event:     sum.Event,
						Status:    sum.Status,
						Entrants:  sum.Entrants,
						CheckedIn: sum.CheckedIn,
						Catches:   sum.Catches,
					})
				}
				return s.done(items, eventTable(items))
			})
		},
	}
}

func eventTable(items []eventItem) string {
	if len(items) == 0 {
		return "No events."
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tNAME\tSTATUS\tENTRANTS\tCHECKED IN\tCATCHES")
	for _, it := range items {
		when := it.Date
		if it.Time != "" {
			when += " " + it.Time
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%d\n",
			it.ID, when, it.Name, it.Status, it.Entrants, it.MaxEntrants, it.CheckedIn, it.Catches)
	}
	_ = tw.Flush()
	return b.String()
}

func newEventDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <event-id>",
		Short: "Delete an event with its entrants, check-ins and catches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				if err := s.app.Service.DeleteEvent(ctx, args[0], yes); err != nil {
					return s.fail(err)
				}
				return s.done(map[string]string{"deleted": args[0]}, "Deleted event "+args[0])
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the cascading delete")
	return cmd
}
