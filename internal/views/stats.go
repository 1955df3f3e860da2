package views

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
)

// InYear reports whether an ISO date or timestamp starts with the 4-digit year.
func InYear(stamp string, year int) bool {
	prefix := strconv.Itoa(year)
	if len(prefix) != 4 {
		return false
	}
	return strings.HasPrefix(stamp, prefix)
}

// Standing is one participant's line in the year standings.
type Standing struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Attendance    int    `json:"attendance"`
	Catches       int    `json:"catches"`
}

// YearStats aggregates one calendar year.
type YearStats struct {
	Year          int `json:"year"`
	Events        int `json:"events"`
	Registrations int `json:"registrations"`
	CheckIns      int `json:"checkIns"`
	Catches       int `json:"catches"`
	Visits        int `json:"visits"`
	VisitFees     int `json:"visitFees"`

	// Averages are rounded to the nearest integer; zero when undefined.
	AvgEntrantsPerEvent    int `json:"avgEntrantsPerEvent"`
	AvgCatchesPerAttendee  int `json:"avgCatchesPerAttendee"`
	AvgAttendancePerMember int `json:"avgAttendancePerMember"`

	Standings []Standing `json:"standings"`
}

// Year computes statistics for one year.
//
// Events and their registrations are selected by event date; attendance,
// catches and visits by their own timestamp. Standings list every entrant or
// angler with attendance or catches in the year, sorted stably by attendance
// descending, then catches descending.
func Year(ds record.Dataset, year int) YearStats {
	st := YearStats{Year: year}

	eventsInYear := make(map[string]bool)
	for _, ev := range ds.Events {
		if InYear(ev.Date, year) {
			eventsInYear[ev.ID] = true
			st.Events++
		}
	}
	for _, e := range ds.Entrants {
		if eventsInYear[e.EventID] {
			st.Registrations++
		}
	}

	attendance := make(map[string]int)
	catches := make(map[string]int)
	for _, a := range ds.Attendance {
		if InYear(a.Stamp(), year) {
			st.CheckIns++
			if p := a.Participant(); p != "" {
				attendance[p]++
			}
		}
	}
	for _, c := range ds.Catches {
		if InYear(c.Stamp(), year) {
			st.Catches++
			if p := c.Participant(); p != "" {
				catches[p]++
			}
		}
	}
	for _, v := range ds.Visits {
		if InYear(v.Stamp(), year) {
			st.Visits++
			st.VisitFees += v.Fee
		}
	}

	st.Standings = standings(ds, attendance, catches)

	st.AvgEntrantsPerEvent = roundedRatio(st.Registrations, st.Events)
	st.AvgCatchesPerAttendee = roundedRatio(st.Catches, len(attendance))
	st.AvgAttendancePerMember = roundedRatio(anglerAttendance(ds, attendance), len(ds.Anglers))
	return st
}

func anglerAttendance(ds record.Dataset, attendance map[string]int) int {
	total := 0
	for _, a := range ds.Anglers {
		total += attendance[a.ID]
	}
	return total
}

// standings lists participants in dataset order (anglers, then entrants),
// then stable-sorts them.
func standings(ds record.Dataset, attendance, catches map[string]int) []Standing {
	var out []Standing
	seen := make(map[string]bool)
	add := func(id, name string) {
		if seen[id] || (attendance[id] == 0 && catches[id] == 0) {
			return
		}
		seen[id] = true
		out = append(out, Standing{
			ParticipantID: id,
			Name:          name,
			Attendance:    attendance[id],
			Catches:       catches[id],
		})
	}
	for _, a := range ds.Anglers {
		add(a.ID, a.Name)
	}
	for _, e := range ds.Entrants {
		add(e.ID, e.Name)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Attendance != out[j].Attendance {
			return out[i].Attendance > out[j].Attendance
		}
		return out[i].Catches > out[j].Catches
	})
	return out
}

func roundedRatio(num, den int) int {
	if den == 0 {
		return 0
	}
	return int(math.Round(float64(num) / float64(den)))
}
