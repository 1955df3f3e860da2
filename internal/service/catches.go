package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/notify"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/quota"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/views"
)

// Notice codes per catch outcome.
const (
	CodeCatchRecorded  = "CATCH_RECORDED"
	CodeCatchAtLimit   = "CATCH_AT_LIMIT"
	CodeCatchOverLimit = "CATCH_OVER_LIMIT"
)

// CatchResult is the outcome of recording one catch.
type CatchResult struct {
	Catch   record.Catch
	Outcome quota.Outcome
	Count   int // catches including this one
	Limit   int
	Fee     int // owed for this catch; zero unless Outcome is Over
}

// RecordCatch logs one catch for an entrant of an event.
//
// The outcome is classified from the count before the write, so a catch
// arriving from another client afterwards cannot change it.
func (s *Service) RecordCatch(ctx context.Context, eventID, entrantID, subLocation string) (CatchResult, error) {
	ds := s.backend.Dataset()
	ev, ok := ds.FindEvent(eventID)
	if !ok {
		return CatchResult{}, s.reject(ctx, rejectf(CodeNotFound, "event %s not found", eventID))
	}
	ent, ok := ds.FindEntrant(entrantID)
	if !ok || ent.EventID != ev.ID {
		return CatchResult{}, s.reject(ctx, rejectf(CodeNotFound, "entrant %s not registered for %s", entrantID, ev.Name))
	}

	prior := views.CatchCount(ds, ev.ID, ent.ID)
	res := CatchResult{
		Outcome: quota.Classify(ev.CatchLimit, prior),
		Count:   prior + 1,
		Limit:   ev.CatchLimit,
	}
	res.Fee = s.fees.FeeFor(res.Outcome, "")
	res.Catch = record.Catch{
		ID:          s.ids.NewID(),
		EventID:     ev.ID,
		EntrantID:   ent.ID,
		SubLocation: subLocation,
		Time:        s.stamp(),
	}
	if err := s.backend.Put(ctx, record.Catches, res.Catch); err != nil {
		return CatchResult{}, fmt.Errorf("record catch: %w", err)
	}

	s.logger.Info("catch recorded", "event", ev.ID, "entrant", ent.ID, "count", res.Count, "outcome", res.Outcome)
	s.catchNotice(ctx, ent.Name, res)
	return res, nil
}

// ClubCatch is a catch logged by a club member outside a competition.
type ClubCatch struct {
	FisherID string
	Species  string
	Length   float64
	InRange  bool
	Kept     *bool
}

// RecordClubCatch logs one catch for an angler, classified against the daily
// limit. An Over catch owes the base surcharge plus the species surcharge.
func (s *Service) RecordClubCatch(ctx context.Context, in ClubCatch) (CatchResult, error) {
	species := strings.TrimSpace(in.Species)
	if species == "" {
		return CatchResult{}, s.reject(ctx, rejectf(CodeInvalidInput, "species is required"))
	}
	if in.Length < 0 {
		return CatchResult{}, s.reject(ctx, rejectf(CodeInvalidInput, "length must not be negative"))
	}

	ds := s.backend.Dataset()
	a, ok := ds.FindAngler(in.FisherID)
	if !ok {
		return CatchResult{}, s.reject(ctx, rejectf(CodeNotFound, "angler %s not found", in.FisherID))
	}

	today := s.today()
	prior := views.DailyCatchCount(ds, a.ID, today)
	res := CatchResult{
		Outcome: quota.Classify(s.dailyLimit, prior),
		Count:   prior + 1,
		Limit:   s.dailyLimit,
	}
	res.Fee = s.fees.FeeFor(res.Outcome, species)
	res.Catch = record.Catch{
		ID:        s.ids.NewID(),
		FisherID:  a.ID,
		Species:   species,
		Length:    in.Length,
		InRange:   in.InRange,
		Kept:      in.Kept,
		Date:      today,
		Timestamp: s.stamp(),
	}
	if err := s.backend.Put(ctx, record.Catches, res.Catch); err != nil {
		return CatchResult{}, fmt.Errorf("record club catch: %w", err)
	}

	s.logger.Info("club catch recorded", "angler", a.ID, "species", species, "count", res.Count, "outcome", res.Outcome)
	s.catchNotice(ctx, a.Name, res)
	return res, nil
}

func (s *Service) catchNotice(ctx context.Context, who string, res CatchResult) {
	s.metrics.Catch(string(res.Outcome))

	n := notify.Notice{Subject: res.Catch.ID}
	switch res.Outcome {
	case quota.Under:
		n.Level = notify.Info
		n.Code = CodeCatchRecorded
		n.Message = fmt.Sprintf("catch recorded for %s (%d/%d)", who, res.Count, res.Limit)
	case quota.AtLimit:
		n.Level = notify.Warning
		n.Code = CodeCatchAtLimit
		n.Message = fmt.Sprintf("last free catch for %s (%d/%d)", who, res.Count, res.Limit)
	case quota.Over:
		n.Level = notify.Blocking
		n.Code = CodeCatchOverLimit
		n.Fee = res.Fee
		n.Message = fmt.Sprintf("%s is over the limit (%d/%d), surcharge %s",
			who, res.Count, res.Limit, s.fees.Format(res.Fee))
	}
	s.notice(ctx, n)
}
