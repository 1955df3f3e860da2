package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewRemoteCommand creates the remote command group.
func NewRemoteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Connect to or leave the shared remote store",
	}
	cmd.AddCommand(newRemoteConnectCommand(rootOpts))
	cmd.AddCommand(newRemoteDisconnectCommand(rootOpts))
	cmd.AddCommand(newRemoteStatusCommand(rootOpts))
	return cmd
}

// remoteItem is the JSON shape of the connection state.
type remoteItem struct {
	Mode     string `json:"mode"`
	Endpoint string `json:"endpoint,omitempty"`
	Pending  int    `json:"pending"`
}

func (s *session) remoteStatus(ctx context.Context) error {
	pending, err := s.app.Engine.PendingWrites(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read outbox", err)
	}
	item := remoteItem{Mode: string(s.app.Engine.Mode()), Endpoint: s.app.Engine.Endpoint(), Pending: pending}
	text := "Mode: " + item.Mode
	if item.Endpoint != "" {
		text += "\nEndpoint: " + item.Endpoint
	}
	text += fmt.Sprintf("\nPending writes: %d", item.Pending)
	return s.done(item, text)
}

func newRemoteConnectCommand(rootOpts *RootOptions) *cobra.Command {
	var credential string
	cmd := &cobra.Command{
		Use:   "connect <endpoint>",
		Short: "Switch to remote mode",
		Long: `Connects to a remote collection store. Local data is replaced by the
remote contents and the connection is remembered for the next start.
On failure the store stays in local mode.

Examples:
  fishsync remote connect redis://club-server:6379/0 --credential s3cret`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				if err := s.app.Engine.ConfigureRemote(ctx, args[0], credential); err != nil {
					return s.fail(err)
				}
				return s.remoteStatus(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&credential, "credential", "", "remote credential")
	return cmd
}

func newRemoteDisconnectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Switch back to local mode, keeping the current data",
		Long: `Leaves remote mode. Pending writes are delivered first when the remote
is reachable; writes that cannot be delivered are discarded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				if err := s.flush(ctx); err != nil {
					s.app.Logger.Warn("pending writes not delivered before disconnect", "error", err)
				}
				if err := s.app.Engine.DisconnectRemote(ctx); err != nil {
					return WrapExitError(ExitCommandError, "failed to disconnect", err)
				}
				return s.remoteStatus(ctx)
			})
		},
	}
}

func newRemoteStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the sync mode and pending writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				return s.remoteStatus(ctx)
			})
		},
	}
}
