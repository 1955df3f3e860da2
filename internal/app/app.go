// Package app assembles fishsync from configuration: local store, sync
// engine, feature service, deep-link resolver, notifiers and metrics.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/config"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/deeplink"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/engine"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/ident"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/metrics"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/notify"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/remote"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/remote/redisremote"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/service"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/store"
)

// App is an assembled fishsync instance.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Store    *store.Store
	Engine   *engine.Engine
	Service  *service.Service
	Resolver *deeplink.Resolver
	Notifier notify.Notifier
}

type options struct {
	dialer   remote.Dialer
	now      func() time.Time
	ids      ident.Generator
	notifier notify.Notifier
}

// Option customizes assembly, mostly for tests and the scenario harness.
type Option func(*options)

// WithDialer replaces the scheme-based production dialer.
func WithDialer(d remote.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithIDs replaces the identifier generator.
func WithIDs(g ident.Generator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithNotifier adds a notifier next to the log notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// Dialer returns the production dialer: redis:// and rediss:// endpoints.
func Dialer(cfg config.RemoteConfig, logger *slog.Logger) remote.Dialer {
	redisDialer := redisremote.NewDialer(cfg.Namespace, logger)
	return remote.Mux(map[string]remote.Dialer{
		"redis":  redisDialer,
		"rediss": redisDialer,
	})
}

// New opens the local store and builds every component.
//
// The engine is started: local data is loaded and a saved remote connection
// is restored. A configured remote endpoint is connected when no saved
// connection exists. Remote failures are logged and leave the engine in
// local mode; they never fail New.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	o := options{
		dialer: Dialer(cfg.Remote, logger),
		ids:    ident.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	loc := cfg.App.Location
	if loc == nil {
		loc = time.Local
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().In(loc) }
	}

	if dir := filepath.Dir(cfg.Store.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	st, err := store.Open(cfg.Store.Path, store.WithLogger(logger), store.WithClock(o.now))
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	eng := engine.New(st,
		engine.WithDialer(o.dialer),
		engine.WithLogger(logger),
		engine.WithMetrics(m),
		engine.WithKeyPrefix(cfg.Store.KeyPrefix),
		engine.WithMaxAttempts(cfg.Remote.MaxAttempts),
		engine.WithRetryInterval(cfg.Remote.RetryInterval),
		engine.WithMaxBackoff(cfg.Remote.MaxBackoff),
		engine.WithWriteTimeout(cfg.Remote.WriteTimeout),
	)

	notifiers := []notify.Notifier{notify.NewLogger(logger)}
	if cfg.AMQP.Enabled {
		notifiers = append(notifiers, notify.NewAMQP(cfg.AMQP.URL, cfg.AMQP.Queue, cfg.AMQP.DialTimeout))
	}
	if o.notifier != nil {
		notifiers = append(notifiers, o.notifier)
	}
	n := notify.Multi(notifiers...)

	svc := service.New(eng,
		service.WithIDs(o.ids),
		service.WithClock(o.now),
		service.WithNotifier(n),
		service.WithFees(cfg.Quota.Fees()),
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithDefaultMaxEntrants(cfg.Registration.DefaultMaxEntrants),
		service.WithDailyLimit(cfg.Quota.DailyLimit),
	)
	res := deeplink.NewResolver(eng, svc,
		deeplink.WithPoll(cfg.DeepLink.PollAttempts, cfg.DeepLink.PollInterval),
		deeplink.WithLogger(logger),
		deeplink.WithMetrics(m),
	)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  m,
		Store:    st,
		Engine:   eng,
		Service:  svc,
		Resolver: res,
		Notifier: n,
	}

	if err := eng.Start(ctx); err != nil {
		logger.Warn("saved remote connection not restored", "error", err)
	}
	if eng.Mode() == engine.ModeLocal && cfg.Remote.Endpoint != "" {
		if err := eng.ConfigureRemote(ctx, cfg.Remote.Endpoint, cfg.Remote.Credential); err != nil {
			logger.Warn("configured remote unavailable, running local", "error", err)
		}
	}

	logger.Info("fishsync ready",
		slog.String("version", BuildVersion()),
		slog.String("mode", string(eng.Mode())),
		slog.String("store", cfg.Store.Path),
	)
	return a, nil
}

// Close stops the engine and closes the store.
func (a *App) Close() error {
	return errors.Join(a.Engine.Close(), a.Store.Close())
}
