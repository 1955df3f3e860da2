// Package service holds the feature logic behind every user action:
// validation, cascading deletes, quota classification and notices.
//
// Validation runs against the current dataset snapshot before any mutation is
// issued. A rejected action returns a *ValidationError, emits a warning
// notice and touches no collection. In remote mode the snapshot can lag behind
// other clients; checks are best effort, as everywhere else in the system.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/ident"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/metrics"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/notify"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/quota"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
)

// Defaults for service options.
const (
	DefaultMaxEntrants = 50
	DefaultDailyLimit  = 4
)

// Backend is the part of the sync engine the service mutates through.
type Backend interface {
	Put(ctx context.Context, c record.Collection, rec record.Record) error
	Remove(ctx context.Context, c record.Collection, id string) error
	RemoveWhere(ctx context.Context, c record.Collection, match func(record.Record) bool) (int, error)
	Dataset() record.Dataset
}

// Service implements the user actions on top of a Backend.
type Service struct {
	backend  Backend
	ids      ident.Generator
	now      func() time.Time
	notifier notify.Notifier
	fees     quota.FeeSchedule
	logger   *slog.Logger
	metrics  *metrics.Metrics

	defaultMaxEntrants int
	dailyLimit         int
}

// Option configures a Service.
type Option func(*Service)

// WithIDs sets the identifier generator. Default: UUIDv7.
func WithIDs(g ident.Generator) Option {
	return func(s *Service) {
		s.ids = g
	}
}

// WithClock sets the wall clock. Its location decides what "today" means.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithNotifier sets where notices go. Default: the service logger.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithFees sets the fee schedule used for surcharges and visits.
func WithFees(f quota.FeeSchedule) Option {
	return func(s *Service) {
		s.fees = f
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithMetrics sets the collectors catch outcomes are counted in.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDefaultMaxEntrants sets the capacity of events created without one.
func WithDefaultMaxEntrants(n int) Option {
	return func(s *Service) {
		s.defaultMaxEntrants = n
	}
}

// WithDailyLimit sets the free catches per angler per day on the club path.
func WithDailyLimit(n int) Option {
	return func(s *Service) {
		s.dailyLimit = n
	}
}

// New creates a service mutating through b.
func New(b Backend, opts ...Option) *Service {
	s := &Service{
		backend:            b,
		ids:                ident.UUIDv7Generator{},
		now:                time.Now,
		logger:             slog.Default(),
		defaultMaxEntrants: DefaultMaxEntrants,
		dailyLimit:         DefaultDailyLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogger(s.logger)
	}
	return s
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// Fees returns the configured fee schedule.
func (s *Service) Fees() quota.FeeSchedule {
	return s.fees
}

func (s *Service) today() string {
	return s.now().Format(record.DateLayout)
}

func (s *Service) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// clockOf renders a stored timestamp as local HH:MM, or returns it as is.
func (s *Service) clockOf(stamp string) string {
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return stamp
	}
	return t.In(s.now().Location()).Format(record.ClockLayout)
}

func (s *Service) notice(ctx context.Context, n notify.Notice) {
	if n.At.IsZero() {
		n.At = s.now()
	}
	if n.Fee > 0 && n.Currency == "" {
		n.Currency = s.fees.Currency
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("notice not delivered", "code", n.Code, "error", err)
	}
}

// reject emits a warning notice for ve and returns it.
func (s *Service) reject(ctx context.Context, ve *ValidationError) error {
	s.notice(ctx, notify.Notice{Level: notify.Warning, Code: ve.Code, Message: ve.Message})
	return ve
}
