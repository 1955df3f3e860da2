package deeplink

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/engine"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/ident"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/metrics"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/notify"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/remote/memremote"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/service"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/store"
	clock "github.com/pavel-vrtal-ict/rybari-registrace/internal/testutil"
)

const endpoint = "mem://club"

type fixture struct {
	hub *memremote.Hub
	eng *engine.Engine
	svc *service.Service
	met *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	hub := memremote.NewHub("secret")
	eng := engine.New(s,
		engine.WithDialer(hub.Dialer()),
		engine.WithRetryInterval(time.Millisecond),
		engine.WithMaxBackoff(5*time.Millisecond),
	)
	t.Cleanup(func() { eng.Close() })
	require.NoError(t, eng.ConfigureRemote(context.Background(), endpoint, "secret"))

	c := clock.MustParse("2025-05-01T10:00:00Z")
	svc := service.New(eng,
		service.WithClock(c.Now),
		service.WithIDs(ident.NewSequenceGenerator("id")),
		service.WithNotifier(&notify.Recorder{}),
	)
	return &fixture{hub: hub, eng: eng, svc: svc, met: metrics.New(prometheus.NewRegistry())}
}

// writeFromOtherClient stores a record through a second hub client, as if
// another device had created it.
func (f *fixture) writeFromOtherClient(t *testing.T, c record.Collection, rec record.Record) {
	t.Helper()
	other, err := f.hub.Dial(endpoint, "secret")
	require.NoError(t, err)
	defer other.Close()

	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, other.Set(context.Background(), string(c), rec.RecordID(), raw))
}

func (f *fixture) resolver(attempts int, interval time.Duration) *Resolver {
	return NewResolver(f.eng, f.svc, WithPoll(attempts, interval), WithMetrics(f.met))
}

func TestResolve_IdentityCheckInWaitsForLateAngler(t *testing.T) {
	f := newFixture(t)

	f.hub.Hold()
	f.writeFromOtherClient(t, record.Anglers, record.Angler{ID: "f1", Name: "Karel"})
	go func() {
		time.Sleep(30 * time.Millisecond)
		f.hub.Release()
	}()

	step, err := f.resolver(50, 10*time.Millisecond).Resolve(context.Background(),
		Link{Action: ActionCheckIn, FisherID: "f1"})
	require.NoError(t, err)

	assert.Equal(t, StepCheckedIn, step.Kind)
	assert.True(t, step.Created)
	assert.Equal(t, "2025-05-01", step.Attendance.Date)
	assert.Equal(t, "Karel", step.Angler.Name)

	require.NoError(t, f.eng.Flush(context.Background()))
	assert.Len(t, f.hub.Contents(string(record.Attendance)), 1)

	again, err := f.resolver(1, time.Millisecond).Resolve(context.Background(),
		Link{Action: ActionCheckIn, FisherID: "f1"})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, step.Attendance.ID, again.Attendance.ID)

	require.NoError(t, f.eng.Flush(context.Background()))
	assert.Len(t, f.hub.Contents(string(record.Attendance)), 1, "recorded exactly once")
	assert.Equal(t, 2.0, testutil.ToFloat64(f.met.DeepLinks.WithLabelValues("checkin", "ok")))
}

func TestResolve_NeverArrivesWritesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver(3, time.Millisecond).Resolve(context.Background(),
		Link{Action: ActionCheckIn, FisherID: "ghost"})

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "angler", nf.Kind)
	assert.Equal(t, "ghost", nf.ID)
	assert.Equal(t, 3, nf.Attempts)

	require.NoError(t, f.eng.Flush(context.Background()))
	assert.Empty(t, f.hub.Contents(string(record.Attendance)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.met.DeepLinks.WithLabelValues("checkin", "not_found")))
}

func TestResolve_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.resolver(100, 10*time.Millisecond).Resolve(ctx, Link{Action: ActionRegister, EventID: "e1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolve_EventSteps(t *testing.T) {
	f := newFixture(t)
	f.writeFromOtherClient(t, record.Events, record.Event{ID: "e1", Name: "Cup", Date: "2025-05-10", MaxEntrants: 10, SubLocations: []string{"A"}})
	f.writeFromOtherClient(t, record.Entrants, record.Entrant{ID: "p1", EventID: "e1", Name: "Jan"})
	f.writeFromOtherClient(t, record.Entrants, record.Entrant{ID: "p2", EventID: "e1", Name: "Eva"})
	f.writeFromOtherClient(t, record.Attendance, record.AttendanceRecord{ID: "a1", EventID: "e1", EntrantID: "p1", SubLocation: "A"})
	r := f.resolver(2, time.Millisecond)
	ctx := context.Background()

	step, err := r.Resolve(ctx, Link{Action: ActionRegister, EventID: "e1"})
	require.NoError(t, err)
	assert.Equal(t, StepRegister, step.Kind)
	assert.Equal(t, "Cup", step.Event.Name)

	step, err = r.Resolve(ctx, Link{Action: ActionCheckIn, EventID: "e1", SubLocation: "A"})
	require.NoError(t, err)
	assert.Equal(t, StepRoster, step.Kind)
	assert.Len(t, step.Roster, 2)
	assert.Equal(t, map[string]bool{"p1": true}, step.CheckedIn)

	step, err = r.Resolve(ctx, Link{Action: ActionCatch, EventID: "e1", EntrantID: "p2"})
	require.NoError(t, err)
	assert.Equal(t, StepCatch, step.Kind)
	assert.Equal(t, "Eva", step.Entrant.Name)

	_, err = r.Resolve(ctx, Link{Action: ActionCatch, EventID: "e1", EntrantID: "p9"})
	assert.True(t, IsNotFoundError(err))

	_, err = r.Resolve(ctx, Link{Action: "dance"})
	assert.ErrorIs(t, err, ErrNoAction)
}

func TestResolve_AnglerCatchStep(t *testing.T) {
	f := newFixture(t)
	f.writeFromOtherClient(t, record.Anglers, record.Angler{ID: "f1", Name: "Karel"})

	step, err := f.resolver(1, time.Millisecond).Resolve(context.Background(), Link{Action: ActionCatch, FisherID: "f1"})
	require.NoError(t, err)
	assert.Equal(t, StepCatch, step.Kind)
	assert.Equal(t, "Karel", step.Angler.Name)
}
