package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/notify"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/views"
)

// EventInput is the editable part of an event.
// A nil MaxEntrants means the configured default.
type EventInput struct {
	Name         string
	Date         string
	Time         string
	Location     string
	MaxEntrants  *int
	SubLocations []string
	CatchLimit   int
	Description  string
}

func (s *Service) validateEvent(in EventInput) *ValidationError {
	if strings.TrimSpace(in.Name) == "" {
		return rejectf(CodeInvalidInput, "event name is required")
	}
	if _, err := time.Parse(record.DateLayout, in.Date); err != nil {
		return rejectf(CodeInvalidInput, "invalid date %q", in.Date)
	}
	if in.Time != "" {
		if _, err := time.Parse(record.ClockLayout, in.Time); err != nil {
			return rejectf(CodeInvalidInput, "invalid time %q", in.Time)
		}
	}
	if in.MaxEntrants != nil && *in.MaxEntrants < 0 {
		return rejectf(CodeInvalidInput, "max entrants must not be negative")
	}
	if in.CatchLimit < 0 {
		return rejectf(CodeInvalidInput, "catch limit must not be negative")
	}
	return nil
}

func (s *Service) buildEvent(id, createdAt string, in EventInput) record.Event {
	maxEntrants := s.defaultMaxEntrants
	if in.MaxEntrants != nil {
		maxEntrants = *in.MaxEntrants
	}
	subs := make([]string, 0, len(in.SubLocations))
	for _, sub := range in.SubLocations {
		if sub = strings.TrimSpace(sub); sub != "" {
			subs = append(subs, sub)
		}
	}
	return record.Event{
		ID:           id,
		Name:         strings.TrimSpace(in.Name),
		Date:         in.Date,
		Time:         in.Time,
		Location:     strings.TrimSpace(in.Location),
		MaxEntrants:  maxEntrants,
		SubLocations: subs,
		CatchLimit:   in.CatchLimit,
		Description:  strings.TrimSpace(in.Description),
		CreatedAt:    createdAt,
	}
}

// CreateEvent validates in and stores a new event.
func (s *Service) CreateEvent(ctx context.Context, in EventInput) (record.Event, error) {
	if ve := s.validateEvent(in); ve != nil {
		return record.Event{}, s.reject(ctx, ve)
	}
	ev := s.buildEvent(s.ids.NewID(), s.stamp(), in)
	if err := s.backend.Put(ctx, record.Events, ev); err != nil {
		return record.Event{}, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info("event created", "id", ev.ID, "name", ev.Name, "date", ev.Date)
	s.notice(ctx, notify.Notice{Level: notify.Info, Code: "EVENT_CREATED", Message: "event created", Subject: ev.ID})
	return ev, nil
}

// UpdateEvent replaces the editable fields of an existing event.
// The original creation timestamp is kept.
func (s *Service) UpdateEvent(ctx context.Context, id string, in EventInput) (record.Event, error) {
	old, ok := s.backend.Dataset().FindEvent(id)
	if !ok {
		return record.Event{}, s.reject(ctx, rejectf(CodeNotFound, "event %s not found", id))
	}
	if ve := s.validateEvent(in); ve != nil {
		return record.Event{}, s.reject(ctx, ve)
	}
	ev := s.buildEvent(id, old.CreatedAt, in)
	if err := s.backend.Put(ctx, record.Events, ev); err != nil {
		return record.Event{}, fmt.Errorf("update event: %w", err)
	}
	s.logger.Info("event updated", "id", id)
	s.notice(ctx, notify.Notice{Level: notify.Info, Code: "EVENT_UPDATED", Message: "event updated", Subject: id})
	return ev, nil
}

// DeleteEvent removes an event with its entrants, attendance and catches.
// Returns ErrConfirmationRequired unless confirmed.
func (s *Service) DeleteEvent(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if _, ok := s.backend.Dataset().FindEvent(id); !ok {
		return s.reject(ctx, rejectf(CodeNotFound, "event %s not found", id))
	}

	ofEvent := func(r record.Record) bool {
		switch v := r.(type) {
		case record.Entrant:
			return v.EventID == id
		case record.AttendanceRecord:
			return v.EventID == id
		case record.Catch:
			return v.EventID == id
		}
		return false
	}
	for _, c := range []record.Collection{record.Catches, record.Attendance, record.Entrants} {
		if _, err := s.backend.RemoveWhere(ctx, c, ofEvent); err != nil {
			return fmt.Errorf("delete event %s: %w", id, err)
		}
	}
	if err := s.backend.Remove(ctx, record.Events, id); err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}

	s.logger.Info("event deleted", "id", id)
	s.notice(ctx, notify.Notice{Level: notify.Info, Code: "EVENT_DELETED", Message: "event deleted", Subject: id})
	return nil
}

// Events returns event summaries sorted by date.
func (s *Service) Events() []views.EventSummary {
	return views.Summaries(s.backend.Dataset(), s.now())
}
