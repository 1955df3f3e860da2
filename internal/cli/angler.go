package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/engine"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/service"
)

// NewAnglerCommand creates the angler command group for club days.
func NewAnglerCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "angler",
		Short: "Manage club members",
	}
	cmd.AddCommand(newAnglerCreateCommand(rootOpts))
	cmd.AddCommand(newAnglerListCommand(rootOpts))
	cmd.AddCommand(newAnglerDeleteCommand(rootOpts))
	return cmd
}

func newAnglerCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var in service.AnglerInput
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Add a club member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				a, err := s.app.Service.CreateAngler(ctx, in)
				if err != nil {
					return s.fail(err)
				}
				return s.done(a, fmt.Sprintf("Created angler %s (%s)", a.Name, a.ID))
			})
		},
	}
	cmd.Flags().StringVar(&in.Club, "club", "", "club")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&in.Email, "email", "", "e-mail address")
	cmd.Flags().StringVar(&in.MemberNo, "member-no", "", "membership number")
	return cmd
}

func newAnglerListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List club members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				anglers := engine.All[record.Angler](s.app.Engine, record.Anglers)
				if len(anglers) == 0 {
					return s.done(anglers, "No anglers.")
				}
				var b strings.Builder
				tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCLUB\tMEMBER NO")
				for _, a := range anglers {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Club, a.MemberNo)
				}
				_ = tw.Flush()
				return s.done(anglers, b.String())
			})
		},
	}
}

func newAnglerDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <angler-id>",
		Short: "Delete a club member with their check-ins, catches and visits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				if err := s.app.Service.DeleteAngler(ctx, args[0], yes); err != nil {
					return s.fail(err)
				}
				return s.done(map[string]string{"deleted": args[0]}, "Deleted angler "+args[0])
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the cascading delete")
	return cmd
}

// NewVisitCommand creates the visit command.
func NewVisitCommand(rootOpts *RootOptions) *cobra.Command {
	var special bool
	cmd := &cobra.Command{
		Use:   "visit <angler-id> <guest-name>",
		Short: "Record a guest brought by a member",
		Long: `Records a guest visit and its fee: the visit fee, plus the special catch
fee when the guest took a special catch.

Examples:
  fishsync visit 0196a5c4-... "Karel Dvořák" --special`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				v, err := s.app.Service.RecordVisit(ctx, args[0], args[1], special)
				if err != nil {
					return s.fail(err)
				}
				return s.done(v, fmt.Sprintf("Guest %s recorded, fee %s", v.VisitorName, s.app.Service.Fees().Format(v.Fee)))
			})
		},
	}
	cmd.Flags().BoolVar(&special, "special", false, "guest took a special catch")
	return cmd
}
