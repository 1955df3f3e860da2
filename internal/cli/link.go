package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/deeplink"
)

// NewLinkCommand creates the link command group.
func NewLinkCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Build and resolve QR deep links",
	}
	cmd.AddCommand(newLinkResolveCommand(rootOpts))
	cmd.AddCommand(newLinkBuildCommand(rootOpts))
	return cmd
}

func newLinkResolveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <url>",
		Short: "Resolve a scanned link to its workflow step",
		Long: `Resolves a deep link the way the desk does after a QR scan. Check-in links
for a known entrant or angler record the check-in. Records that have not
synced yet are waited for within deeplink.poll_attempts.

Examples:
  fishsync link resolve "https://club.example/?action=checkin&comp=0196a5c2-...&pond=A"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := deeplink.Parse(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid link", err)
			}
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				step, err := s.app.Resolver.Resolve(ctx, l)
				if err != nil {
					return s.fail(err)
				}
				item := stepItemOf(step)
				item.Time = s.clock(item.Time)
				return s.done(item, stepText(step, item.Time))
			})
		},
	}
}

// stepItem is the JSON shape of a resolved step.
type stepItem struct {
	Step      deeplink.StepKind `json:"step"`
	Event     string            `json:"event,omitempty"`
	Entrant   string            `json:"entrant,omitempty"`
	Angler    string            `json:"angler,omitempty"`
	Roster    []string          `json:"roster,omitempty"`
	CheckedIn []string          `json:"checkedIn,omitempty"`
	Time      string            `json:"time,omitempty"`
	Created   bool              `json:"created,omitempty"`
}

func stepItemOf(st deeplink.Step) stepItem {
	out := stepItem{
		Step:    st.Kind,
		Event:   st.Event.Name,
		Entrant: st.Entrant.Name,
		Angler:  st.Angler.Name,
		Time:    st.Attendance.Time,
		Created: st.Created,
	}
	for _, e := range st.Roster {
		out.Roster = append(out.Roster, e.Name)
		if st.CheckedIn[e.ID] {
			out.CheckedIn = append(out.CheckedIn, e.Name)
		}
	}
	return out
}

func stepText(st deeplink.Step, at string) string {
	switch st.Kind {
	case deeplink.StepRegister:
		return fmt.Sprintf("Register for %s (%s)", st.Event.Name, st.Event.Date)
	case deeplink.StepRoster:
		var b strings.Builder
		fmt.Fprintf(&b, "Pick your name for %s:\n", st.Event.Name)
		for _, e := range st.Roster {
			mark := " "
			if st.CheckedIn[e.ID] {
				mark = "x"
			}
			fmt.Fprintf(&b, "  [%s] %s (%s)\n", mark, e.Name, e.ID)
		}
		return b.String()
	case deeplink.StepCheckedIn:
		who := st.Entrant.Name
		if who == "" {
			who = st.Angler.Name
		}
		if !st.Created {
			return fmt.Sprintf("%s already checked in at %s", who, at)
		}
		return fmt.Sprintf("%s checked in at %s", who, at)
	case deeplink.StepCatch:
		who := st.Entrant.Name
		if who == "" {
			who = st.Angler.Name
		}
		return fmt.Sprintf("Record a catch for %s", who)
	}
	return string(st.Kind)
}

func newLinkBuildCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		l    deeplink.Link
		base string
	)
	cmd := &cobra.Command{
		Use:   "build <action>",
		Short: "Build the URL to print as a QR code",
		Long: `Builds a deep link on top of app.base_url. Actions: register, checkin, catch.

Examples:
  fishsync link build register --event 0196a5c2-...
  fishsync link build checkin --event 0196a5c2-... --pond A
  fishsync link build catch --angler 0196a5c4-...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			if base == "" {
				cfg, err := rootOpts.loadConfig()
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to load config", err)
				}
				base = cfg.App.BaseURL
			}
			l.Action = deeplink.Action(args[0])
			u, err := deeplink.Build(base, l)
			if err != nil {
				return WrapExitError(ExitCommandError, "cannot build link", err)
			}
			return out.Success(map[string]string{"url": u}, u)
		},
	}
	cmd.Flags().StringVar(&l.EventID, "event", "", "event id")
	cmd.Flags().StringVar(&l.SubLocation, "pond", "", "sub-location")
	cmd.Flags().StringVar(&l.EntrantID, "entrant", "", "entrant id")
	cmd.Flags().StringVar(&l.FisherID, "angler", "", "angler id")
	cmd.Flags().StringVar(&base, "base", "", "base URL (default app.base_url)")
	return cmd
}
