package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/notify"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/views"
)

// AnglerInput is a club member form submission.
type AnglerInput struct {
	Name     string
	Club     string
	Phone    string
	Email    string
	MemberNo string
}

// CreateAngler adds a club member. Names are unique case-insensitively.
func (s *Service) CreateAngler(ctx context.Context, in AnglerInput) (record.Angler, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return record.Angler{}, s.reject(ctx, rejectf(CodeInvalidInput, "name is required"))
	}
	for _, a := range s.backend.Dataset().Anglers {
		if record.SameName(a.Name, name) {
			return record.Angler{}, s.reject(ctx, rejectf(CodeDuplicateName, "angler %s already exists", name))
		}
	}

	a := record.Angler{
		ID:        s.ids.NewID(),
		Name:      name,
		Club:      strings.TrimSpace(in.Club),
		Phone:     strings.TrimSpace(in.Phone),
		Email:     strings.TrimSpace(in.Email),
		MemberNo:  strings.TrimSpace(in.MemberNo),
		CreatedAt: s.stamp(),
	}
	if err := s.backend.Put(ctx, record.Anglers, a); err != nil {
		return record.Angler{}, fmt.Errorf("create angler: %w", err)
	}
	s.logger.Info("angler created", "id", a.ID)
	s.notice(ctx, notify.Notice{Level: notify.Info, Code: "ANGLER_CREATED", Message: "angler created", Subject: a.ID})
	return a, nil
}

// DeleteAngler removes an angler with their attendance, catches and visits.
// Returns ErrConfirmationRequired unless confirmed.
func (s *Service) DeleteAngler(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if _, ok := s.backend.Dataset().FindAngler(id); !ok {
		return s.reject(ctx, rejectf(CodeNotFound, "angler %s not found", id))
	}

	ofAngler := func(r record.Record) bool {
		switch v := r.(type) {
		case record.AttendanceRecord:
			return v.FisherID == id
		case record.Catch:
			return v.FisherID == id
		case record.Visit:
			return v.FisherID == id
		}
		return false
	}
	for _, c := range []record.Collection{record.Visits, record.Catches, record.Attendance} {
		if _, err := s.backend.RemoveWhere(ctx, c, ofAngler); err != nil {
			return fmt.Errorf("delete angler %s: %w", id, err)
		}
	}
	if err := s.backend.Remove(ctx, record.Anglers, id); err != nil {
		return fmt.Errorf("delete angler %s: %w", id, err)
	}

	s.logger.Info("angler deleted", "id", id)
	s.notice(ctx, notify.Notice{Level: notify.Info, Code: "ANGLER_DELETED", Message: "angler deleted", Subject: id})
	return nil
}

// CheckInAngler records an angler's identity check-in for today.
//
// If the angler already checked in today the existing record is returned
// with created false and nothing is written.
func (s *Service) CheckInAngler(ctx context.Context, fisherID string) (record.AttendanceRecord, bool, error) {
	ds := s.backend.Dataset()
	a, ok := ds.FindAngler(fisherID)
	if !ok {
		return record.AttendanceRecord{}, false, s.reject(ctx, rejectf(CodeNotFound, "angler %s not found", fisherID))
	}

	today := s.today()
	if prev, ok := views.FindAnglerCheckIn(ds, a.ID, today); ok {
		s.notice(ctx, notify.Notice{
			Level:   notify.Info,
			Code:    "ALREADY_CHECKED_IN",
			Message: fmt.Sprintf("%s already checked in at %s", a.Name, s.clockOf(prev.Time)),
			Subject: prev.ID,
		})
		return prev, false, nil
	}

	rec := record.AttendanceRecord{
		ID:       s.ids.NewID(),
		FisherID: a.ID,
		Date:     today,
		Time:     s.stamp(),
	}
	if err := s.backend.Put(ctx, record.Attendance, rec); err != nil {
		return record.AttendanceRecord{}, false, fmt.Errorf("check in angler: %w", err)
	}

	s.logger.Info("angler checked in", "angler", a.ID, "date", today)
	s.notice(ctx, notify.Notice{
		Level:   notify.Info,
		Code:    "CHECKED_IN",
		Message: fmt.Sprintf("%s checked in", a.Name),
		Subject: rec.ID,
	})
	return rec, true, nil
}

// RecordVisit logs a guest brought by a member. The fee is the visit fee,
// plus the special catch fee when the guest took a special catch.
func (s *Service) RecordVisit(ctx context.Context, fisherID, visitorName string, tookSpecialCatch bool) (record.Visit, error) {
	visitorName = strings.TrimSpace(visitorName)
	if visitorName == "" {
		return record.Visit{}, s.reject(ctx, rejectf(CodeInvalidInput, "visitor name is required"))
	}
	a, ok := s.backend.Dataset().FindAngler(fisherID)
	if !ok {
		return record.Visit{}, s.reject(ctx, rejectf(CodeNotFound, "angler %s not found", fisherID))
	}

	v := record.Visit{
		ID:               s.ids.NewID(),
		FisherID:         a.ID,
		VisitorName:      visitorName,
		Date:             s.today(),
		TookSpecialCatch: tookSpecialCatch,
		Fee:              s.fees.VisitFeeFor(tookSpecialCatch),
		Timestamp:        s.stamp(),
	}
	if err := s.backend.Put(ctx, record.Visits, v); err != nil {
		return record.Visit{}, fmt.Errorf("record visit: %w", err)
	}

	s.logger.Info("visit recorded", "angler", a.ID, "fee", v.Fee)
	s.notice(ctx, notify.Notice{
		Level:   notify.Info,
		Code:    "VISIT_RECORDED",
		Message: fmt.Sprintf("guest %s of %s, fee %s", visitorName, a.Name, s.fees.Format(v.Fee)),
		Fee:     v.Fee,
		Subject: v.ID,
	})
	return v, nil
}
