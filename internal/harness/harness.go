package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/app"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/config"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/deeplink"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/engine"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/ident"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/notify"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/remote/memremote"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/service"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/testutil"
)

// CaseOK is the completion case of an accepted action without a more
// specific outcome.
const CaseOK = "OK"

const (
	hubEndpoint   = "mem://harness"
	hubCredential = "harness"
)

type options struct {
	logger *slog.Logger
}

// Option configures Run.
type Option func(*options)

// WithLogger sends application logs to l. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// runner holds the state of one scenario execution.
type runner struct {
	app     *app.App
	hub     *memremote.Hub
	clock   *testutil.ManualClock
	notices *notify.Recorder
	result  *Result

	remote    bool
	autoFlush bool
	vars      map[string]string
	seen      int
	late      errgroup.Group
}

// Run executes s against a fresh in-memory fishsync instance.
//
// The returned error covers failures of the harness itself: the instance
// could not be built, an argument was malformed, or a setup step was
// rejected. Unmet expectations and assertions are reported in the Result.
func Run(ctx context.Context, s *Scenario, opts ...Option) (*Result, error) {
	if err := validateScenario(s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	r, err := newRunner(ctx, s, o)
	if err != nil {
		return nil, err
	}
	defer r.app.Close()

	for i, step := range s.Setup {
		if err := r.step(ctx, fmt.Sprintf("setup[%d]", i), step.Action, step.As, step.Args, nil, true); err != nil {
			return nil, err
		}
	}
	for i, step := range s.Flow {
		if err := r.step(ctx, fmt.Sprintf("flow[%d]", i), step.Invoke, step.As, step.Args, step.Expect, false); err != nil {
			return nil, err
		}
	}

	if err := r.late.Wait(); err != nil {
		return nil, fmt.Errorf("late remote write: %w", err)
	}
	if err := r.sync(ctx); err != nil {
		return nil, err
	}
	r.collectNotices()

	assertions, err := r.bindAssertions(s.Assertions)
	if err != nil {
		return nil, err
	}
	for _, e := range EvaluateAssertions(assertions, r.result, r.app.Engine) {
		r.result.AddError(e.Error())
	}
	return r.result, nil
}

func newRunner(ctx context.Context, s *Scenario, o options) (*runner, error) {
	start, err := s.start()
	if err != nil {
		return nil, err
	}

	cfg := &config.Config{
		App:   config.AppConfig{BaseURL: "http://localhost:8080/", Timezone: "UTC"},
		Store: config.StoreConfig{Path: ":memory:", KeyPrefix: "ryb_"},
		Remote: config.RemoteConfig{
			Namespace:     "harness",
			WriteTimeout:  time.Second,
			MaxAttempts:   3,
			RetryInterval: time.Millisecond,
			MaxBackoff:    5 * time.Millisecond,
		},
		DeepLink: config.DeepLinkConfig{PollAttempts: 1, PollInterval: time.Millisecond},
		Quota: config.QuotaConfig{
			DailyLimit:      4,
			OverLimitFee:    100,
			VisitFee:        50,
			SpecialCatchFee: 150,
			Currency:        "CZK",
		},
		Registration: config.RegistrationConfig{DefaultMaxEntrants: 50},
		Log:          config.LogConfig{Level: "info", Format: "text"},
	}
	if s.Poll != nil {
		cfg.DeepLink.PollAttempts = s.Poll.Attempts
		cfg.DeepLink.PollInterval, _ = time.ParseDuration(s.Poll.Interval)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("harness config: %w", err)
	}

	r := &runner{
		hub:       memremote.NewHub(hubCredential),
		clock:     testutil.NewManualClock(start),
		notices:   &notify.Recorder{},
		result:    NewResult(),
		remote:    s.Mode == ModeRemote,
		autoFlush: s.Sync != SyncManual,
		vars:      make(map[string]string),
	}
	a, err := app.New(ctx, cfg, o.logger,
		app.WithDialer(r.hub.Dialer()),
		app.WithClock(r.clock.Now),
		app.WithIDs(ident.NewSequenceGenerator("id")),
		app.WithNotifier(r.notices),
	)
	if err != nil {
		return nil, fmt.Errorf("build instance: %w", err)
	}
	r.app = a

	if r.remote {
		if err := a.Engine.ConfigureRemote(ctx, hubEndpoint, hubCredential); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect harness hub: %w", err)
		}
	}
	return r, nil
}

// step runs one action, traces it and checks expect. Setup steps must be
// accepted.
func (r *runner) step(ctx context.Context, where, action, as string, raw map[string]any, expect *ExpectClause, setup bool) error {
	args, err := r.substitute(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", where, err)
	}
	r.result.AddInvocationTrace(action, args)

	out, err := actions[action](ctx, r, argMap(args))
	if err != nil {
		code, ok := caseOf(err)
		if !ok {
			return fmt.Errorf("%s: %s: %w", where, action, err)
		}
		if setup {
			return fmt.Errorf("%s: %s rejected: %w", where, action, err)
		}
		out = outcome{Case: code}
	}
	if out.Case == "" {
		out.Case = CaseOK
	}
	if r.autoFlush {
		if err := r.sync(ctx); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	}

	result := normalize(out.Result)
	r.result.AddCompletionTrace(action, out.Case, result, r.collectNotices())

	if as != "" {
		if out.ID == "" {
			return fmt.Errorf("%s: %s produced no id to bind to %q (case %s)", where, action, as, out.Case)
		}
		r.vars[as] = out.ID
	}

	if expect == nil {
		return nil
	}
	if out.Case != expect.Case {
		r.result.AddError(fmt.Sprintf("%s: %s: expected case %s, got %s", where, action, expect.Case, out.Case))
		return nil
	}
	if len(expect.Result) > 0 {
		want, err := r.substitute(expect.Result)
		if err != nil {
			return fmt.Errorf("%s.expect: %w", where, err)
		}
		m, _ := result.(map[string]any)
		if key, ok := matchFields(m, want); !ok {
			r.result.AddError(fmt.Sprintf("%s: %s: result field %q: expected %v, got %v",
				where, action, key, normalize(want[key]), m[key]))
		}
	}
	return nil
}

// bindAssertions substitutes variables in assertion args, where and expect.
func (r *runner) bindAssertions(in []Assertion) ([]Assertion, error) {
	out := make([]Assertion, len(in))
	for i, a := range in {
		var err error
		for _, m := range []*map[string]any{&a.Args, &a.Where, &a.Expect} {
			if *m == nil || err != nil {
				continue
			}
			*m, err = r.substitute(*m)
		}
		if err != nil {
			return nil, fmt.Errorf("assertions[%d]: %w", i, err)
		}
		out[i] = a
	}
	return out, nil
}

// sync delivers queued remote writes in remote mode.
func (r *runner) sync(ctx context.Context) error {
	if !r.remote || r.app.Engine.Mode() != engine.ModeRemote {
		return nil
	}
	if err := r.app.Engine.Flush(ctx); err != nil {
		return fmt.Errorf("flush remote writes: %w", err)
	}
	return nil
}

// collectNotices returns the notices recorded since the previous call.
func (r *runner) collectNotices() []string {
	all := r.notices.All()
	var out []string
	for _, n := range all[r.seen:] {
		out = append(out, fmt.Sprintf("%s %s: %s", n.Level, n.Code, n.Message))
	}
	r.seen = len(all)
	return out
}

// substitute replaces "$name" strings with bound ids, recursively.
func (r *runner) substitute(args map[string]any) (map[string]any, error) {
	v, err := r.substituteValue(args)
	if err != nil {
		return nil, err
	}
	m, _ := v.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func (r *runner) substituteValue(v any) (any, error) {
	switch x := v.(type) {
	case string:
		if !strings.HasPrefix(x, "$") {
			return x, nil
		}
		id, ok := r.vars[x[1:]]
		if !ok {
			return nil, fmt.Errorf("unbound variable %s", x)
		}
		return id, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			s, err := r.substituteValue(e)
			if err != nil {
				return nil, err
			}
			out[k] = s
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			s, err := r.substituteValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
		return out, nil
	}
	return v, nil
}

// caseOf maps a domain error to a completion case. Errors without a case are
// harness failures.
func caseOf(err error) (string, bool) {
	var ve *service.ValidationError
	var ce *engine.ConfigError
	switch {
	case errors.As(err, &ve):
		return ve.Code, true
	case errors.Is(err, service.ErrConfirmationRequired):
		return "CONFIRMATION_REQUIRED", true
	case deeplink.IsNotFoundError(err):
		return "NOT_FOUND", true
	case errors.Is(err, deeplink.ErrNoAction):
		return "NO_ACTION", true
	case errors.As(err, &ce):
		return "CONFIG_ERROR", true
	}
	return "", false
}

// normalize converts v to its JSON form (maps, slices, float64, string,
// bool) so results compare equal to values decoded from YAML.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Sprint(v)
	}
	return out
}
