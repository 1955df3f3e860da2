package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/app"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/config"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/deeplink"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/engine"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/notify"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/service"
)

// session is one command invocation against an assembled application.
type session struct {
	app     *app.App
	out     *OutputFormatter
	notices *notify.Recorder
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	if o.Config != "" {
		return config.LoadFile(o.Config, true)
	}
	return config.Load()
}

// withApp loads configuration, assembles the application, runs fn and closes
// everything again. In remote mode pending writes are delivered before the
// command returns.
func (o *RootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	out := o.formatter(cmd)

	cfg, err := o.loadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	logger := app.NewLogger(cfg.Log)

	rec := &notify.Recorder{}
	opts := append([]app.Option{app.WithNotifier(rec)}, o.appOptions...)

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger, opts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Error("error closing store", "error", closeErr)
		}
	}()

	s := &session{app: a, out: out, notices: rec}
	if err := fn(ctx, s); err != nil {
		return err
	}
	return s.flush(ctx)
}

func (s *session) flush(ctx context.Context) error {
	if s.app.Engine.Mode() != engine.ModeRemote {
		return nil
	}
	if err := s.app.Engine.Flush(ctx); err != nil {
		pending, _ := s.app.Engine.PendingWrites(ctx)
		s.out.VerboseLog("%d writes still pending", pending)
		return WrapExitError(ExitFailure, "remote writes not delivered", err)
	}
	return nil
}

// clock renders a stored RFC 3339 timestamp as local HH:MM.
func (s *session) clock(stamp string) string {
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return stamp
	}
	return t.In(s.app.Service.Now().Location()).Format(record.ClockLayout)
}

func (s *session) done(data any, text string) error {
	return s.out.SuccessWithNotices(data, text, s.notices.All())
}

// fail reports a domain error through the formatter and maps it to
// ExitFailure. Anything else is a command error.
func (s *session) fail(err error) error {
	code := errorCode(err)
	if code == "" {
		return WrapExitError(ExitCommandError, "command failed", err)
	}
	msg := err.Error()
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		msg = ve.Message
	}
	_ = s.out.Error(code, msg, nil)
	return WrapExitError(ExitFailure, code, err)
}

func errorCode(err error) string {
	switch {
	case service.CodeOf(err) != "":
		return service.CodeOf(err)
	case errors.Is(err, service.ErrConfirmationRequired):
		return "CONFIRMATION_REQUIRED"
	case deeplink.IsNotFoundError(err):
		return service.CodeNotFound
	case errors.Is(err, deeplink.ErrNoAction):
		return "NO_ACTION"
	case engine.IsConfigError(err):
		return "CONFIG_ERROR"
	}
	return ""
}
