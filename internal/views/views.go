// Package views computes display aggregates from a dataset snapshot.
//
// Everything here is a pure function of a record.Dataset and, where time
// matters, an explicit now. Nothing is cached; at the expected scale of a few
// hundred records recomputing on every render is cheap.
package views

import (
	"sort"
	"time"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
)

// Status is the derived state of an event. It is never stored.
type Status string

const (
	StatusOpen Status = "OPEN"
	StatusFull Status = "FULL"
	StatusPast Status = "PAST"
)

// EndOfDay is the start time assumed for events without one.
const EndOfDay = "23:59"

// Start returns the moment an event begins, in loc.
// Events without a time start at EndOfDay. ok is false if the date is unparsable.
func Start(ev record.Event, loc *time.Location) (time.Time, bool) {
	clock := ev.Time
	if clock == "" {
		clock = EndOfDay
	}
	t, err := time.ParseInLocation(record.DateLayout+" "+record.ClockLayout, ev.Date+" "+clock, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// EventStatus derives the status of ev with the given number of entrants.
//
// PAST once now is after the event start, regardless of fill level. Otherwise
// FULL when entrants reach MaxEntrants, else OPEN. An event with an
// unparsable date is never PAST.
func EventStatus(ev record.Event, entrants int, now time.Time) Status {
	if start, ok := Start(ev, now.Location()); ok && now.After(start) {
		return StatusPast
	}
	if entrants >= ev.MaxEntrants {
		return StatusFull
	}
	return StatusOpen
}

// StatusOf derives the status of ev from the entrants in ds.
func StatusOf(ds record.Dataset, ev record.Event, now time.Time) Status {
	return EventStatus(ev, EntrantCount(ds, ev.ID), now)
}

// EntrantCount returns the number of entrants registered for an event.
func EntrantCount(ds record.Dataset, eventID string) int {
	n := 0
	for _, e := range ds.Entrants {
		if e.EventID == eventID {
			n++
		}
	}
	return n
}

// CatchCount returns the number of catches for (eventID, entrantID).
func CatchCount(ds record.Dataset, eventID, entrantID string) int {
	n := 0
	for _, c := range ds.Catches {
		if c.EventID == eventID && c.EntrantID == entrantID {
			n++
		}
	}
	return n
}

// CatchCounts returns per-entrant catch counts for an event.
func CatchCounts(ds record.Dataset, eventID string) map[string]int {
	out := make(map[string]int)
	for _, c := range ds.Catches {
		if c.EventID == eventID && c.EntrantID != "" {
			out[c.EntrantID]++
		}
	}
	return out
}

// DailyCatchCount returns the number of catches an angler logged on date.
func DailyCatchCount(ds record.Dataset, fisherID, date string) int {
	n := 0
	for _, c := range ds.Catches {
		if c.FisherID == fisherID && c.Date == date {
			n++
		}
	}
	return n
}

// CheckedIn returns the entrants of an event with at least one check-in,
// at any sub-location.
func CheckedIn(ds record.Dataset, eventID string) map[string]bool {
	out := make(map[string]bool)
	for _, a := range ds.Attendance {
		if a.EventID == eventID && a.EntrantID != "" {
			out[a.EntrantID] = true
		}
	}
	return out
}

// CheckedInAt returns the entrants checked in at one sub-location of an event.
func CheckedInAt(ds record.Dataset, eventID, subLocation string) map[string]bool {
	out := make(map[string]bool)
	for _, a := range ds.Attendance {
		if a.EventID == eventID && a.SubLocation == subLocation && a.EntrantID != "" {
			out[a.EntrantID] = true
		}
	}
	return out
}

// FindCheckIn returns the attendance record for an (event, entrant, sub-location) triple.
func FindCheckIn(ds record.Dataset, eventID, entrantID, subLocation string) (record.AttendanceRecord, bool) {
	for _, a := range ds.Attendance {
		if a.EventID == eventID && a.EntrantID == entrantID && a.SubLocation == subLocation {
			return a, true
		}
	}
	return record.AttendanceRecord{}, false
}

// FindAnglerCheckIn returns an angler's identity check-in for a date.
func FindAnglerCheckIn(ds record.Dataset, fisherID, date string) (record.AttendanceRecord, bool) {
	for _, a := range ds.Attendance {
		if a.FisherID == fisherID && a.Date == date {
			return a, true
		}
	}
	return record.AttendanceRecord{}, false
}

// EventsByDate returns events sorted by start date and time, ascending.
// Events on the same date without a time sort after those with one.
func EventsByDate(events []record.Event) []record.Event {
	out := make([]record.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return sortKey(out[i]) < sortKey(out[j])
	})
	return out
}

func sortKey(ev record.Event) string {
	clock := ev.Time
	if clock == "" {
		clock = EndOfDay
	}
	return ev.Date + " " + clock
}

// EventSummary is one row of the event list.
type EventSummary struct {
	Event      record.Event
	Status     Status
	Entrants   int
	CheckedIn  int
	Catches    int
	Categories []CategoryCount
}

// Summaries returns a summary of every event, sorted by date.
func Summaries(ds record.Dataset, now time.Time) []EventSummary {
	events := EventsByDate(ds.Events)
	out := make([]EventSummary, 0, len(events))
	for _, ev := range events {
		catches := 0
		for _, n := range CatchCounts(ds, ev.ID) {
			catches += n
		}
		entrants := EntrantCount(ds, ev.ID)
		out = append(out, EventSummary{
			Event:      ev,
			Status:     EventStatus(ev, entrants, now),
			Entrants:   entrants,
			CheckedIn:  len(CheckedIn(ds, ev.ID)),
			Catches:    catches,
			Categories: CategoryCounts(ds, ev.ID),
		})
	}
	return out
}
