package record

import "encoding/json"

// Date and time layouts used on the wire.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Event is a scheduled competition or club session.
type Event struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Date         string   `json:"date"`
	Time         string   `json:"time,omitempty"`
	Location     string   `json:"location"`
	MaxEntrants  int      `json:"maxEntrants"`
	SubLocations []string `json:"subLocations"`
	CatchLimit   int      `json:"catchLimit"`
	Description  string   `json:"description,omitempty"`
	CreatedAt    string   `json:"createdAt"`
}

func (e Event) RecordID() string { return e.ID }

// HasSubLocation reports whether label is one of the event's ponds.
// An event without ponds accepts only the empty label.
func (e Event) HasSubLocation(label string) bool {
	if label == "" {
		return true
	}
	for _, s := range e.SubLocations {
		if s == label {
			return true
		}
	}
	return false
}

func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	var w struct {
		plain
		MaxParticipants *int     `json:"maxParticipants"`
		Ponds           []string `json:"ponds"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Event(w.plain)
	if w.MaxParticipants != nil && !hasKey(data, "maxEntrants") {
		e.MaxEntrants = *w.MaxParticipants
	}
	if e.SubLocations == nil {
		e.SubLocations = w.Ponds
	}
	if e.SubLocations == nil {
		e.SubLocations = []string{}
	}
	return nil
}

// Entrant is a participant registered for one event.
type Entrant struct {
	ID           string `json:"id"`
	EventID      string `json:"eventId"`
	Name         string `json:"name"`
	Club         string `json:"club,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Category     string `json:"category,omitempty"`
	Note         string `json:"note,omitempty"`
	RegisteredAt string `json:"registeredAt"`
}

func (e Entrant) RecordID() string { return e.ID }

func (e *Entrant) UnmarshalJSON(data []byte) error {
	type plain Entrant
	var w struct {
		plain
		CompetitionID string `json:"competitionId"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Entrant(w.plain)
	if e.EventID == "" {
		e.EventID = w.CompetitionID
	}
	return nil
}

// AttendanceRecord is one check-in. Roster check-ins carry EventID and
// EntrantID; identity-QR check-ins carry FisherID and Date.
type AttendanceRecord struct {
	ID          string `json:"id"`
	EventID     string `json:"eventId,omitempty"`
	EntrantID   string `json:"entrantId,omitempty"`
	FisherID    string `json:"fisherId,omitempty"`
	SubLocation string `json:"subLocation,omitempty"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time"`
}

func (a AttendanceRecord) RecordID() string { return a.ID }

// Participant returns whichever owner key the record carries.
func (a AttendanceRecord) Participant() string {
	if a.EntrantID != "" {
		return a.EntrantID
	}
	return a.FisherID
}

// Stamp returns the timestamp used for year filtering.
func (a AttendanceRecord) Stamp() string {
	if a.Time != "" {
		return a.Time
	}
	return a.Date
}

func (a *AttendanceRecord) UnmarshalJSON(data []byte) error {
	type plain AttendanceRecord
	var w struct {
		plain
		CompetitionID string `json:"competitionId"`
		ParticipantID string `json:"participantId"`
		Pond          string `json:"pond"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*a = AttendanceRecord(w.plain)
	if a.EventID == "" {
		a.EventID = w.CompetitionID
	}
	if a.EntrantID == "" {
		a.EntrantID = w.ParticipantID
	}
	if a.SubLocation == "" {
		a.SubLocation = w.Pond
	}
	return nil
}

// Catch is a logged fish. Competition catches carry EventID and EntrantID;
// club catches carry FisherID with species and length.
type Catch struct {
	ID          string  `json:"id"`
	EventID     string  `json:"eventId,omitempty"`
	EntrantID   string  `json:"entrantId,omitempty"`
	SubLocation string  `json:"subLocation,omitempty"`
	Time        string  `json:"time,omitempty"`
	FisherID    string  `json:"fisherId,omitempty"`
	Species     string  `json:"species,omitempty"`
	Length      float64 `json:"length,omitempty"`
	InRange     bool    `json:"inRange,omitempty"`
	Kept        *bool   `json:"kept,omitempty"`
	Date        string  `json:"date,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

func (c Catch) RecordID() string { return c.ID }

// Participant returns whichever owner key the record carries.
func (c Catch) Participant() string {
	if c.EntrantID != "" {
		return c.EntrantID
	}
	return c.FisherID
}

// Stamp returns the timestamp used for year filtering.
func (c Catch) Stamp() string {
	switch {
	case c.Time != "":
		return c.Time
	case c.Timestamp != "":
		return c.Timestamp
	default:
		return c.Date
	}
}

func (c *Catch) UnmarshalJSON(data []byte) error {
	type plain Catch
	var w struct {
		plain
		CompetitionID string `json:"competitionId"`
		ParticipantID string `json:"participantId"`
		Pond          string `json:"pond"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Catch(w.plain)
	if c.EventID == "" {
		c.EventID = w.CompetitionID
	}
	if c.EntrantID == "" {
		c.EntrantID = w.ParticipantID
	}
	if c.SubLocation == "" {
		c.SubLocation = w.Pond
	}
	return nil
}

// Visit is a guest brought by a member angler.
type Visit struct {
	ID               string `json:"id"`
	FisherID         string `json:"fisherId"`
	VisitorName      string `json:"visitorName"`
	Date             string `json:"date"`
	TookSpecialCatch bool   `json:"tookSpecialCatch"`
	Fee              int    `json:"fee"`
	Timestamp        string `json:"timestamp"`
}

func (v Visit) RecordID() string { return v.ID }

// Stamp returns the timestamp used for year filtering.
func (v Visit) Stamp() string {
	if v.Timestamp != "" {
		return v.Timestamp
	}
	return v.Date
}

// Angler is a club member identified by a personal QR code.
type Angler struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Club      string `json:"club,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	MemberNo  string `json:"memberNo,omitempty"`
	CreatedAt string `json:"createdAt"`
}

func (a Angler) RecordID() string { return a.ID }

// hasKey reports whether the top-level JSON object in data has the given key.
func hasKey(data []byte, key string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return false
	}
	_, ok := m[key]
	return ok
}
