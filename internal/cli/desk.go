package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/quota"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/service"
)

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	var in service.Registration
	cmd := &cobra.Command{
		Use:   "register <event-id> <name>",
		Short: "Register an entrant for an event",
		Long: `Registers an entrant. Names are unique per event, ignoring case and
surrounding spaces. Full, past and started events reject registrations.

Examples:
  fishsync register 0196a5c2-... "Jan Novák" --club "MO Brno" --category U15`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.EventID, in.Name = args[0], args[1]
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				ent, err := s.app.Service.Register(ctx, in)
				if err != nil {
					return s.fail(err)
				}
				return s.done(ent, fmt.Sprintf("Registered %s (%s)", ent.Name, ent.ID))
			})
		},
	}
	cmd.Flags().StringVar(&in.Club, "club", "", "club or affiliation")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&in.Email, "email", "", "e-mail address")
	cmd.Flags().StringVar(&in.Category, "category", "", "category code (e.g. U15, Z, S)")
	cmd.Flags().StringVar(&in.Note, "note", "", "free text")
	return cmd
}

type participantFlags struct {
	event   string
	entrant string
	pond    string
	angler  string
}

func (f *participantFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.event, "event", "", "event id (competition mode)")
	cmd.Flags().StringVar(&f.entrant, "entrant", "", "entrant id (competition mode)")
	cmd.Flags().StringVar(&f.pond, "pond", "", "sub-location")
	cmd.Flags().StringVar(&f.angler, "angler", "", "angler id (club mode)")
	cmd.MarkFlagsRequiredTogether("event", "entrant")
	cmd.MarkFlagsMutuallyExclusive("angler", "event")
	cmd.MarkFlagsOneRequired("angler", "event")
}

// NewCheckInCommand creates the checkin command.
func NewCheckInCommand(rootOpts *RootOptions) *cobra.Command {
	var flags participantFlags
	cmd := &cobra.Command{
		Use:   "checkin",
		Short: "Check an entrant or club angler in",
		Long: `Records attendance. Competition entrants check in once per event and
sub-location; club anglers once per day, a repeat reports the existing time.

Examples:
  fishsync checkin --event 0196a5c2-... --entrant 0196a5c3-... --pond A
  fishsync checkin --angler 0196a5c4-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				if flags.angler != "" {
					rec, created, err := s.app.Service.CheckInAngler(ctx, flags.angler)
					if err != nil {
						return s.fail(err)
					}
					text := "Checked in at " + s.clock(rec.Time)
					if !created {
						text = "Already checked in at " + s.clock(rec.Time)
					}
					return s.done(map[string]any{"attendance": rec, "created": created}, text)
				}
				rec, err := s.app.Service.CheckIn(ctx, flags.event, flags.entrant, flags.pond)
				if err != nil {
					return s.fail(err)
				}
				return s.done(rec, "Checked in at "+s.clock(rec.Time))
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// catchItem is the JSON shape of a recorded catch.
type catchItem struct {
	ID      string        `json:"id"`
	Outcome quota.Outcome `json:"outcome"`
	Count   int           `json:"count"`
	Limit   int           `json:"limit"`
	Fee     int           `json:"fee"`
}

// NewCatchCommand creates the catch command.
func NewCatchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		flags   participantFlags
		species string
		length  float64
		inRange bool
		kept    bool
	)
	cmd := &cobra.Command{
		Use:   "catch",
		Short: "Record a catch",
		Long: `Records one catch and classifies it against the free-catch limit:
UNDER, AT_LIMIT (the last free catch) or OVER (a surcharge is owed).

Examples:
  fishsync catch --event 0196a5c2-... --entrant 0196a5c3-...
  fishsync catch --angler 0196a5c4-... --species pike --length 62 --in-range --kept`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				var (
					res service.CatchResult
					err error
				)
				if flags.angler != "" {
					in := service.ClubCatch{
						FisherID: flags.angler,
						Species:  species,
						Length:   length,
						InRange:  inRange,
					}
					if cmd.Flags().Changed("kept") {
						in.Kept = &kept
					}
					res, err = s.app.Service.RecordClubCatch(ctx, in)
				} else {
					res, err = s.app.Service.RecordCatch(ctx, flags.event, flags.entrant, flags.pond)
				}
				if err != nil {
					return s.fail(err)
				}
				item := catchItem{ID: res.Catch.ID, Outcome: res.Outcome, Count: res.Count, Limit: res.Limit, Fee: res.Fee}
				return s.done(item, catchText(item, s.app.Service.Fees()))
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&species, "species", "", "species (club mode)")
	cmd.Flags().Float64Var(&length, "length", 0, "length in cm (club mode)")
	cmd.Flags().BoolVar(&inRange, "in-range", false, "within the legal size range (club mode)")
	cmd.Flags().BoolVar(&kept, "kept", false, "fish was kept (club mode)")
	return cmd
}

func catchText(c catchItem, fees quota.FeeSchedule) string {
	if c.Limit == 0 {
		return fmt.Sprintf("Catch %d recorded (no limit)", c.Count)
	}
	text := fmt.Sprintf("Catch %d of %d recorded: %s", c.Count, c.Limit, c.Outcome)
	if c.Fee > 0 {
		text += ", fee " + fees.Format(c.Fee)
	}
	return text
}
