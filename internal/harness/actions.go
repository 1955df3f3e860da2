package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/deeplink"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/service"
)

// outcome is what an action produced. Case defaults to CaseOK; ID is the
// record a step's "as" binds to.
type outcome struct {
	Case   string
	Result any
	ID     string
}

type actionFunc func(ctx context.Context, r *runner, a *args) (outcome, error)

var errRemoteOnly = errors.New("action requires mode: remote")

// actions maps action names to their implementation.
var actions = map[string]actionFunc{
	"event.create":     createEvent,
	"event.update":     updateEvent,
	"event.delete":     deleteEvent,
	"event.summary":    eventSummary,
	"entrant.register": registerEntrant,
	"entrant.remove":   removeEntrant,
	"checkin":          checkIn,
	"catch.record":     recordCatch,
	"catch.club":       recordClubCatch,
	"angler.create":    createAngler,
	"angler.delete":    deleteAngler,
	"angler.checkin":   checkInAngler,
	"visit.record":     recordVisit,
	"link.resolve":     resolveLink,
	"link.build":       buildLink,
	"clock.advance":    advanceClock,
	"clock.set":        setClock,
	"remote.put":       remotePut,
	"sync.flush":       flush,
}

// Actions returns the names of every supported action.
func Actions() []string {
	out := make([]string, 0, len(actions))
	for name := range actions {
		out = append(out, name)
	}
	return out
}

func eventInput(a *args) service.EventInput {
	return service.EventInput{
		Name:         a.str("name"),
		Date:         a.str("date"),
		Time:         a.str("time"),
		Location:     a.str("location"),
		MaxEntrants:  a.optInt("maxEntrants"),
		SubLocations: a.strings("subLocations"),
		CatchLimit:   a.integer("catchLimit"),
		Description:  a.str("description"),
	}
}

func createEvent(ctx context.Context, r *runner, a *args) (outcome, error) {
	in := eventInput(a)
	if a.err != nil {
		return outcome{}, a.err
	}
	ev, err := r.app.Service.CreateEvent(ctx, in)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Result: ev, ID: ev.ID}, nil
}

func updateEvent(ctx context.Context, r *runner, a *args) (outcome, error) {
	id := a.required("id")
	in := eventInput(a)
	if a.err != nil {
		return outcome{}, a.err
	}
	ev, err := r.app.Service.UpdateEvent(ctx, id, in)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Result: ev, ID: ev.ID}, nil
}

func deleteEvent(ctx context.Context, r *runner, a *args) (outcome, error) {
	id, confirm := a.required("id"), a.boolean("confirm")
	if a.err != nil {
		return outcome{}, a.err
	}
	return outcome{}, r.app.Service.DeleteEvent(ctx, id, confirm)
}

func eventSummary(_ context.Context, r *runner, a *args) (outcome, error) {
	id := a.required("id")
	if a.err != nil {
		return outcome{}, a.err
	}
	for _, s := range r.app.Service.Events() {
		if s.Event.ID != id {
			continue
		}
		return outcome{ID: id, Result: map[string]any{
			"status":    s.Status,
			"entrants":  s.Entrants,
			"checkedIn": s.CheckedIn,
			"catches":   s.Catches,
		}}, nil
	}
	return outcome{}, &service.ValidationError{Code: service.CodeNotFound, Message: fmt.Sprintf("event %s not found", id)}
}

func registerEntrant(ctx context.Context, r *runner, a *args) (outcome, error) {
	in := service.Registration{
		EventID:  a.required("event"),
		Name:     a.str("name"),
		Club:     a.str("club"),
		Phone:    a.str("phone"),
		Email:    a.str("email"),
		Category: a.str("category"),
		Note:     a.str("note"),
	}
	if a.err != nil {
		return outcome{}, a.err
	}
	ent, err := r.app.Service.Register(ctx, in)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Result: ent, ID: ent.ID}, nil
}

func removeEntrant(ctx context.Context, r *runner, a *args) (outcome, error) {
	id, confirm := a.required("id"), a.boolean("confirm")
	if a.err != nil {
		return outcome{}, a.err
	}
	return outcome{}, r.app.Service.RemoveEntrant(ctx, id, confirm)
}

func checkIn(ctx context.Context, r *runner, a *args) (outcome, error) {
	event, entrant, pond := a.required("event"), a.required("entrant"), a.str("pond")
	if a.err != nil {
		return outcome{}, a.err
	}
	rec, err := r.app.Service.CheckIn(ctx, event, entrant, pond)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Result: rec, ID: rec.ID}, nil
}

func catchResult(res service.CatchResult) outcome {
	return outcome{
		Case: string(res.Outcome),
		ID:   res.Catch.ID,
		Result: map[string]any{
			"outcome": res.Outcome,
			"count":   res.Count,
			"limit":   res.Limit,
			"fee":     res.Fee,
		},
	}
}

func recordCatch(ctx context.Context, r *runner, a *args) (outcome, error) {
	event, entrant, pond := a.required("event"), a.required("entrant"), a.str("pond")
	if a.err != nil {
		return outcome{}, a.err
	}
	res, err := r.app.Service.RecordCatch(ctx, event, entrant, pond)
	if err != nil {
		return outcome{}, err
	}
	return catchResult(res), nil
}

func recordClubCatch(ctx context.Context, r *runner, a *args) (outcome, error) {
	in := service.ClubCatch{
		FisherID: a.required("fisher"),
		Species:  a.str("species"),
		Length:   a.number("length"),
		InRange:  a.boolean("inRange"),
		Kept:     a.optBool("kept"),
	}
	if a.err != nil {
		return outcome{}, a.err
	}
	res, err := r.app.Service.RecordClubCatch(ctx, in)
	if err != nil {
		return outcome{}, err
	}
	return catchResult(res), nil
}

func createAngler(ctx context.Context, r *runner, a *args) (outcome, error) {
	in := service.AnglerInput{
		Name:     a.str("name"),
		Club:     a.str("club"),
		Phone:    a.str("phone"),
		Email:    a.str("email"),
		MemberNo: a.str("memberNo"),
	}
	if a.err != nil {
		return outcome{}, a.err
	}
	an, err := r.app.Service.CreateAngler(ctx, in)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Result: an, ID: an.ID}, nil
}

func deleteAngler(ctx context.Context, r *runner, a *args) (outcome, error) {
	id, confirm := a.required("id"), a.boolean("confirm")
	if a.err != nil {
		return outcome{}, a.err
	}
	return outcome{}, r.app.Service.DeleteAngler(ctx, id, confirm)
}

func checkInAngler(ctx context.Context, r *runner, a *args) (outcome, error) {
	fisher := a.required("fisher")
	if a.err != nil {
		return outcome{}, a.err
	}
	rec, created, err := r.app.Service.CheckInAngler(ctx, fisher)
	if err != nil {
		return outcome{}, err
	}
	c := "EXISTING"
	if created {
		c = "CREATED"
	}
	return outcome{Case: c, Result: rec, ID: rec.ID}, nil
}

func recordVisit(ctx context.Context, r *runner, a *args) (outcome, error) {
	fisher, visitor, special := a.required("fisher"), a.str("visitor"), a.boolean("specialCatch")
	if a.err != nil {
		return outcome{}, a.err
	}
	v, err := r.app.Service.RecordVisit(ctx, fisher, visitor, special)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Result: v, ID: v.ID}, nil
}

func linkArgs(a *args) deeplink.Link {
	return deeplink.Link{
		Action:      deeplink.Action(a.str("action")),
		EventID:     a.str("event"),
		SubLocation: a.str("pond"),
		EntrantID:   a.str("entrant"),
		FisherID:    a.str("fisher"),
	}
}

// resolveLink resolves either a url argument or a link given by its parts
// (action, event, pond, entrant, fisher). It completes with the step kind as
// its case.
func resolveLink(ctx context.Context, r *runner, a *args) (outcome, error) {
	raw := a.str("url")
	l := linkArgs(a)
	if a.err != nil {
		return outcome{}, a.err
	}
	if raw != "" {
		var err error
		if l, err = deeplink.Parse(raw); err != nil {
			return outcome{}, err
		}
	}
	step, err := r.app.Resolver.Resolve(ctx, l)
	if err != nil {
		return outcome{}, err
	}

	res := map[string]any{"step": step.Kind}
	id := ""
	if step.Event.ID != "" {
		res["event"] = step.Event.ID
		id = step.Event.ID
	}
	if step.Entrant.ID != "" {
		res["entrant"] = step.Entrant.ID
		id = step.Entrant.ID
	}
	if step.Angler.ID != "" {
		res["angler"] = step.Angler.ID
		id = step.Angler.ID
	}
	switch step.Kind {
	case deeplink.StepRoster:
		names := make([]string, 0, len(step.Roster))
		for _, e := range step.Roster {
			names = append(names, e.Name)
		}
		res["roster"] = names
	case deeplink.StepCheckedIn:
		res["created"] = step.Created
		res["date"] = step.Attendance.Date
		id = step.Attendance.ID
	}
	return outcome{Case: string(step.Kind), Result: res, ID: id}, nil
}

func buildLink(_ context.Context, r *runner, a *args) (outcome, error) {
	l := linkArgs(a)
	if a.err != nil {
		return outcome{}, a.err
	}
	u, err := deeplink.Build(r.app.Config.App.BaseURL, l)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Result: map[string]any{"url": u}}, nil
}

func advanceClock(_ context.Context, r *runner, a *args) (outcome, error) {
	d := a.duration("by")
	if a.err != nil {
		return outcome{}, a.err
	}
	r.clock.Advance(d)
	return outcome{Result: map[string]any{"now": r.clock.Now().Format(time.RFC3339)}}, nil
}

func setClock(_ context.Context, r *runner, a *args) (outcome, error) {
	to := a.required("to")
	if a.err != nil {
		return outcome{}, a.err
	}
	t, err := time.Parse(time.RFC3339, to)
	if err != nil {
		return outcome{}, fmt.Errorf("argument \"to\": %w", err)
	}
	r.clock.Set(t)
	return outcome{Result: map[string]any{"now": t.Format(time.RFC3339)}}, nil
}

// remotePut writes a record through a second hub client, as another device
// would. With a delay the write happens in the background while later steps
// run; the scenario waits for it before evaluating assertions.
func remotePut(ctx context.Context, r *runner, a *args) (outcome, error) {
	if !r.remote {
		return outcome{}, errRemoteOnly
	}
	c := record.Collection(a.required("collection"))
	rec := a.object("record")
	delay := a.duration("delay")
	if a.err != nil {
		return outcome{}, a.err
	}
	if !c.Valid() {
		return outcome{}, fmt.Errorf("unknown collection %q", c)
	}
	id, _ := rec["id"].(string)
	if id == "" {
		return outcome{}, fmt.Errorf("record needs a string id")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return outcome{}, fmt.Errorf("encode record: %w", err)
	}

	write := func() error {
		other, err := r.hub.Dial(hubEndpoint, hubCredential)
		if err != nil {
			return err
		}
		defer other.Close()
		return other.Set(ctx, string(c), id, raw)
	}
	if delay <= 0 {
		return outcome{ID: id}, write()
	}
	r.late.Go(func() error {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		return write()
	})
	return outcome{ID: id}, nil
}

func flush(ctx context.Context, r *runner, _ *args) (outcome, error) {
	if !r.remote {
		return outcome{}, errRemoteOnly
	}
	pending, err := r.app.Engine.PendingWrites(ctx)
	if err != nil {
		return outcome{}, err
	}
	if err := r.sync(ctx); err != nil {
		return outcome{}, err
	}
	return outcome{Result: map[string]any{"delivered": pending}}, nil
}
