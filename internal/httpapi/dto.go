package httpapi

import (
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/deeplink"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/quota"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/service"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/views"
)

type eventRequest struct {
	Name         string   `json:"name"`
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	Location     string   `json:"location"`
	MaxEntrants  *int     `json:"maxEntrants"`
	SubLocations []string `json:"subLocations"`
	CatchLimit   int      `json:"catchLimit"`
	Description  string   `json:"description"`
}

func (r eventRequest) input() service.EventInput {
	return service.EventInput{
		Name:         r.Name,
		Date:         r.Date,
		Time:         r.Time,
		Location:     r.Location,
		MaxEntrants:  r.MaxEntrants,
		SubLocations: r.SubLocations,
		CatchLimit:   r.CatchLimit,
		Description:  r.Description,
	}
}

type registrationRequest struct {
	Name     string `json:"name"`
	Club     string `json:"club"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Category string `json:"category"`
	Note     string `json:"note"`
}

type checkInRequest struct {
	EventID     string `json:"eventId"`
	EntrantID   string `json:"entrantId"`
	SubLocation string `json:"subLocation"`
	FisherID    string `json:"fisherId"`
}

type catchRequest struct {
	EventID     string  `json:"eventId"`
	EntrantID   string  `json:"entrantId"`
	SubLocation string  `json:"subLocation"`
	FisherID    string  `json:"fisherId"`
	Species     string  `json:"species"`
	Length      float64 `json:"length"`
	InRange     bool    `json:"inRange"`
	Kept        *bool   `json:"kept"`
}

type visitRequest struct {
	FisherID         string `json:"fisherId"`
	VisitorName      string `json:"visitorName"`
	TookSpecialCatch bool   `json:"tookSpecialCatch"`
}

type anglerRequest struct {
	Name     string `json:"name"`
	Club     string `json:"club"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	MemberNo string `json:"memberNo"`
}

type remoteRequest struct {
	Endpoint   string `json:"endpoint"`
	Credential string `json:"credential"`
}

type categoryCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type eventSummary struct {
	Event      record.Event    `json:"event"`
	Status     views.Status    `json:"status"`
	Entrants   int             `json:"entrants"`
	CheckedIn  int             `json:"checkedIn"`
	Catches    int             `json:"catches"`
	Categories []categoryCount `json:"categories"`
}

func summaryOf(s views.EventSummary) eventSummary {
	cats := make([]categoryCount, 0, len(s.Categories))
	for _, c := range s.Categories {
		cats = append(cats, categoryCount{Label: c.Label, Count: c.Count})
	}
	return eventSummary{
		Event:      s.Event,
		Status:     s.Status,
		Entrants:   s.Entrants,
		CheckedIn:  s.CheckedIn,
		Catches:    s.Catches,
		Categories: cats,
	}
}

type catchResponse struct {
	Catch   record.Catch  `json:"catch"`
	Outcome quota.Outcome `json:"outcome"`
	Count   int           `json:"count"`
	Limit   int           `json:"limit"`
	Fee     int           `json:"fee"`
	FeeText string        `json:"feeText,omitempty"`
}

type rosterResponse struct {
	Event     record.Event     `json:"event"`
	Entrants  []record.Entrant `json:"entrants"`
	CheckedIn map[string]bool  `json:"checkedIn"`
}

type stepResponse struct {
	Step       deeplink.StepKind        `json:"step"`
	CleanURL   string                   `json:"cleanUrl"`
	Event      *record.Event            `json:"event,omitempty"`
	Entrant    *record.Entrant          `json:"entrant,omitempty"`
	Angler     *record.Angler           `json:"angler,omitempty"`
	Roster     []record.Entrant         `json:"roster,omitempty"`
	CheckedIn  map[string]bool          `json:"checkedIn,omitempty"`
	Attendance *record.AttendanceRecord `json:"attendance,omitempty"`
	Created    bool                     `json:"created,omitempty"`
}

func stepOf(st deeplink.Step, clean string) stepResponse {
	out := stepResponse{Step: st.Kind, CleanURL: clean}
	if st.Event.ID != "" {
		out.Event = &st.Event
	}
	if st.Entrant.ID != "" {
		out.Entrant = &st.Entrant
	}
	if st.Angler.ID != "" {
		out.Angler = &st.Angler
	}
	if st.Kind == deeplink.StepRoster {
		out.Roster = st.Roster
		out.CheckedIn = st.CheckedIn
	}
	if st.Attendance.ID != "" {
		out.Attendance = &st.Attendance
		out.Created = st.Created
	}
	return out
}
