package views

import "github.com/pavel-vrtal-ict/rybari-registrace/internal/record"

// ExportRow is one entrant line of an event export, in column order
// [#, Name, Affiliation, Category, Phone, Email, CheckedIn, CatchCount, OverLimit].
type ExportRow struct {
	No          int
	Name        string
	Affiliation string
	Category    string
	Phone       string
	Email       string
	CheckedIn   bool
	CatchCount  int
	OverLimit   bool
}

// ExportRows builds the export table for an event, one row per entrant in
// registration order. ok is false when the event does not exist.
func ExportRows(ds record.Dataset, eventID string) (record.Event, []ExportRow, bool) {
	ev, ok := ds.FindEvent(eventID)
	if !ok {
		return record.Event{}, nil, false
	}

	checked := CheckedIn(ds, eventID)
	counts := CatchCounts(ds, eventID)

	var rows []ExportRow
	for _, e := range ds.EntrantsOf(eventID) {
		n := counts[e.ID]
		rows = append(rows, ExportRow{
			No:          len(rows) + 1,
			Name:        e.Name,
			Affiliation: e.Club,
			Category:    CategoryLabel(e.Category),
			Phone:       e.Phone,
			Email:       e.Email,
			CheckedIn:   checked[e.ID],
			CatchCount:  n,
			OverLimit:   n > ev.CatchLimit,
		})
	}
	return ev, rows, true
}
