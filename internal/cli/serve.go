package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/httpapi"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and deep links",
		Long: `Starts the HTTP server next to the sync engine and runs until interrupted.

Examples:
  fishsync serve
  fishsync serve --addr :9090 --config /etc/fishsync.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, s *session) error {
				if addr != "" {
					host, port, err := splitAddr(addr)
					if err != nil {
						return WrapExitError(ExitCommandError, "invalid --addr", err)
					}
					s.app.Config.Server.Host = host
					s.app.Config.Server.Port = port
				}

				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				srv := httpapi.NewServer(s.app)
				fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s (%s mode). Press Ctrl-C to stop.\n", srv.Addr(), s.app.Engine.Mode())
				if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return WrapExitError(ExitFailure, "server error", err)
				}
				s.app.Logger.Info("server stopped gracefully")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address host:port (overrides server.host and server.port)")

	return cmd
}

func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}
