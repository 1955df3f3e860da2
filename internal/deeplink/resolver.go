package deeplink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/metrics"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/service"
)

// Defaults for the bounded wait on records that have not arrived yet.
const (
	DefaultPollAttempts = 10
	DefaultPollInterval = 500 * time.Millisecond
)

// NotFoundError is returned when a referenced record did not appear within
// the poll budget. Usually the device is offline or still syncing.
type NotFoundError struct {
	Kind     string
	ID       string
	Attempts int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found after %d attempts, check the connection", e.Kind, e.ID, e.Attempts)
}

// IsNotFoundError reports whether err is a NotFoundError.
func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Finder looks a record up in the current in-memory state.
type Finder interface {
	Find(c record.Collection, id string) (record.Record, bool)
}

// StepKind is the workflow step a resolved link lands on.
type StepKind string

const (
	// StepRegister shows the registration form with the event preselected.
	StepRegister StepKind = "register"
	// StepRoster lists the event's entrants so the scanning person picks their name.
	StepRoster StepKind = "roster"
	// StepCheckedIn reports an identity check-in, new or already present today.
	StepCheckedIn StepKind = "checked_in"
	// StepCatch offers a single-tap "record catch" action.
	StepCatch StepKind = "catch"
)

// Step is the result of resolving a link.
type Step struct {
	Kind    StepKind
	Link    Link
	Event   record.Event
	Entrant record.Entrant
	Angler  record.Angler

	// Roster step.
	Roster    []record.Entrant
	CheckedIn map[string]bool

	// CheckedIn step. Created is false when today's check-in already existed.
	Attendance record.AttendanceRecord
	Created    bool
}

// Resolver maps links to workflow steps, waiting a bounded time for
// referenced records that may still be in flight from the remote store.
type Resolver struct {
	finder   Finder
	svc      *service.Service
	attempts int
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPoll sets the poll budget: up to attempts lookups, interval apart.
func WithPoll(attempts int, interval time.Duration) Option {
	return func(r *Resolver) {
		r.attempts = attempts
		r.interval = interval
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithMetrics sets the collectors resolutions are counted in.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// NewResolver creates a resolver reading through f and writing identity
// check-ins through svc.
func NewResolver(f Finder, svc *service.Service, opts ...Option) *Resolver {
	r := &Resolver{
		finder:   f,
		svc:      svc,
		attempts: DefaultPollAttempts,
		interval: DefaultPollInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.attempts < 1 {
		r.attempts = 1
	}
	return r
}

// Resolve maps l to its workflow step.
//
// Referenced records are polled for until they appear or the budget runs
// out, in which case a *NotFoundError is returned and nothing is written.
// Cancel ctx when the view that triggered the link goes away.
func (r *Resolver) Resolve(ctx context.Context, l Link) (Step, error) {
	if err := l.Validate(); err != nil {
		return Step{}, err
	}

	step, err := r.resolve(ctx, l)
	result := "ok"
	switch {
	case err == nil:
	case IsNotFoundError(err):
		result = "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = "cancelled"
	default:
		result = "error"
	}
	r.metrics.DeepLink(string(l.Action), result)
	if err != nil {
		r.logger.Warn("deep link not resolved", "action", l.Action, "error", err)
		return Step{}, err
	}
	r.logger.Info("deep link resolved", "action", l.Action, "step", step.Kind)
	return step, nil
}

func (r *Resolver) resolve(ctx context.Context, l Link) (Step, error) {
	step := Step{Link: l}

	if l.FisherID != "" && l.Action != ActionRegister {
		a, err := waitFor[record.Angler](ctx, r, record.Anglers, "angler", l.FisherID)
		if err != nil {
			return Step{}, err
		}
		step.Angler = a
		if l.Action == ActionCatch {
			step.Kind = StepCatch
			return step, nil
		}
		rec, created, err := r.svc.CheckInAngler(ctx, a.ID)
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepCheckedIn
		step.Attendance = rec
		step.Created = created
		return step, nil
	}

	ev, err := waitFor[record.Event](ctx, r, record.Events, "event", l.EventID)
	if err != nil {
		return Step{}, err
	}
	step.Event = ev

	switch l.Action {
	case ActionRegister:
		step.Kind = StepRegister
	case ActionCheckIn:
		_, roster, checked, _ := r.svc.Roster(ev.ID, l.SubLocation)
		step.Kind = StepRoster
		step.Roster = roster
		step.CheckedIn = checked
	case ActionCatch:
		ent, err := waitFor[record.Entrant](ctx, r, record.Entrants, "entrant", l.EntrantID)
		if err != nil {
			return Step{}, err
		}
		step.Kind = StepCatch
		step.Entrant = ent
	}
	return step, nil
}

var errNotYet = errors.New("not arrived yet")

// waitFor polls for a record of collection c with a constant delay.
func waitFor[T record.Record](ctx context.Context, r *Resolver, c record.Collection, kind, id string) (T, error) {
	attempts := 0
	op := func() (T, error) {
		attempts++
		var zero T
		rec, ok := r.finder.Find(c, id)
		if !ok {
			return zero, errNotYet
		}
		v, ok := rec.(T)
		if !ok {
			return zero, backoff.Permanent(fmt.Errorf("%s %s: unexpected record type %T", kind, id, rec))
		}
		return v, nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.interval), uint64(r.attempts-1)),
		ctx,
	)
	v, err := backoff.RetryWithData(op, b)
	if errors.Is(err, errNotYet) {
		return v, &NotFoundError{Kind: kind, ID: id, Attempts: attempts}
	}
	return v, err
}
