package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/notify"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/views"
)

// Registration is a registration form submission.
type Registration struct {
	EventID  string
	Name     string
	Club     string
	Phone    string
	Email    string
	Category string
	Note     string
}

// Register adds an entrant to an open event.
//
// Rejected with EVENT_CLOSED once the event has started, EVENT_FULL at
// capacity, and DUPLICATE_NAME when the event already has an entrant whose
// name matches case-insensitively.
func (s *Service) Register(ctx context.Context, in Registration) (record.Entrant, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return record.Entrant{}, s.reject(ctx, rejectf(CodeInvalidInput, "name is required"))
	}

	ds := s.backend.Dataset()
	ev, ok := ds.FindEvent(in.EventID)
	if !ok {
		return record.Entrant{}, s.reject(ctx, rejectf(CodeNotFound, "event %s not found", in.EventID))
	}

	switch views.StatusOf(ds, ev, s.now()) {
	case views.StatusPast:
		return record.Entrant{}, s.reject(ctx, rejectf(CodeEventClosed, "%s is closed for registration", ev.Name))
	case views.StatusFull:
		return record.Entrant{}, s.reject(ctx, rejectf(CodeEventFull, "%s is full", ev.Name))
	}

	for _, e := range ds.EntrantsOf(ev.ID) {
		if record.SameName(e.Name, name) {
			return record.Entrant{}, s.reject(ctx, rejectf(CodeDuplicateName, "%s is already registered", name))
		}
	}

	ent := record.Entrant{
		ID:           s.ids.NewID(),
		EventID:      ev.ID,
		Name:         name,
		Club:         strings.TrimSpace(in.Club),
		Phone:        strings.TrimSpace(in.Phone),
		Email:        strings.TrimSpace(in.Email),
		Category:     in.Category,
		Note:         strings.TrimSpace(in.Note),
		RegisteredAt: s.stamp(),
	}
	if err := s.backend.Put(ctx, record.Entrants, ent); err != nil {
		return record.Entrant{}, fmt.Errorf("register: %w", err)
	}

	s.logger.Info("entrant registered", "event", ev.ID, "id", ent.ID)
	s.notice(ctx, notify.Notice{
		Level:   notify.Info,
		Code:    "REGISTERED",
		Message: fmt.Sprintf("%s registered", ent.Name),
		Subject: ent.ID,
	})
	return ent, nil
}

// RemoveEntrant removes an entrant with their attendance and catches.
// Returns ErrConfirmationRequired unless confirmed.
func (s *Service) RemoveEntrant(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if _, ok := s.backend.Dataset().FindEntrant(id); !ok {
		return s.reject(ctx, rejectf(CodeNotFound, "entrant %s not found", id))
	}

	ofEntrant := func(r record.Record) bool {
		switch v := r.(type) {
		case record.AttendanceRecord:
			return v.EntrantID == id
		case record.Catch:
			return v.EntrantID == id
		}
		return false
	}
	for _, c := range []record.Collection{record.Catches, record.Attendance} {
		if _, err := s.backend.RemoveWhere(ctx, c, ofEntrant); err != nil {
			return fmt.Errorf("remove entrant %s: %w", id, err)
		}
	}
	if err := s.backend.Remove(ctx, record.Entrants, id); err != nil {
		return fmt.Errorf("remove entrant %s: %w", id, err)
	}

	s.logger.Info("entrant removed", "id", id)
	s.notice(ctx, notify.Notice{Level: notify.Info, Code: "ENTRANT_REMOVED", Message: "entrant removed", Subject: id})
	return nil
}

// CheckIn records that an entrant arrived at a sub-location of an event.
//
// At most one check-in exists per (event, entrant, sub-location). A repeat is
// rejected with DUPLICATE_CHECKIN naming the time of the first one.
func (s *Service) CheckIn(ctx context.Context, eventID, entrantID, subLocation string) (record.AttendanceRecord, error) {
	ds := s.backend.Dataset()
	ev, ok := ds.FindEvent(eventID)
	if !ok {
		return record.AttendanceRecord{}, s.reject(ctx, rejectf(CodeNotFound, "event %s not found", eventID))
	}
	ent, ok := ds.FindEntrant(entrantID)
	if !ok || ent.EventID != ev.ID {
		return record.AttendanceRecord{}, s.reject(ctx, rejectf(CodeNotFound, "entrant %s not registered for %s", entrantID, ev.Name))
	}
	if !ev.HasSubLocation(subLocation) {
		return record.AttendanceRecord{}, s.reject(ctx, rejectf(CodeInvalidInput, "%s has no pond %q", ev.Name, subLocation))
	}
	if prev, ok := views.FindCheckIn(ds, ev.ID, ent.ID, subLocation); ok {
		return record.AttendanceRecord{}, s.reject(ctx, rejectf(CodeDuplicateCheckIn,
			"%s already checked in at %s", ent.Name, s.clockOf(prev.Time)))
	}

	a := record.AttendanceRecord{
		ID:          s.ids.NewID(),
		EventID:     ev.ID,
		EntrantID:   ent.ID,
		SubLocation: subLocation,
		Time:        s.stamp(),
	}
	if err := s.backend.Put(ctx, record.Attendance, a); err != nil {
		return record.AttendanceRecord{}, fmt.Errorf("check in: %w", err)
	}

	s.logger.Info("checked in", "event", ev.ID, "entrant", ent.ID, "pond", subLocation)
	s.notice(ctx, notify.Notice{
		Level:   notify.Info,
		Code:    "CHECKED_IN",
		Message: fmt.Sprintf("%s checked in", ent.Name),
		Subject: a.ID,
	})
	return a, nil
}

// Roster returns the entrants of an event for the roster-based check-in
// flow, with the set of those already checked in at subLocation.
func (s *Service) Roster(eventID, subLocation string) (record.Event, []record.Entrant, map[string]bool, bool) {
	ds := s.backend.Dataset()
	ev, ok := ds.FindEvent(eventID)
	if !ok {
		return record.Event{}, nil, nil, false
	}
	return ev, ds.EntrantsOf(ev.ID), views.CheckedInAt(ds, ev.ID, subLocation), true
}
