package record

// Dataset is a typed view over one consistent snapshot of every collection.
type Dataset struct {
	Events     []Event
	Entrants   []Entrant
	Attendance []AttendanceRecord
	Catches    []Catch
	Visits     []Visit
	Anglers    []Angler
}

// NewDataset builds a typed view from per-collection record slices.
// Records of the wrong type for their collection are skipped.
func NewDataset(snap map[Collection][]Record) Dataset {
	return Dataset{
		Events:     typed[Event](snap[Events]),
		Entrants:   typed[Entrant](snap[Entrants]),
		Attendance: typed[AttendanceRecord](snap[Attendance]),
		Catches:    typed[Catch](snap[Catches]),
		Visits:     typed[Visit](snap[Visits]),
		Anglers:    typed[Angler](snap[Anglers]),
	}
}

func typed[T Record](recs []Record) []T {
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		if v, ok := r.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// FindEvent returns the event with the given id.
func (d Dataset) FindEvent(id string) (Event, bool) {
	for _, e := range d.Events {
		if e.ID == id {
			return e, true
		}
	}
	return Event{}, false
}

// FindEntrant returns the entrant with the given id.
func (d Dataset) FindEntrant(id string) (Entrant, bool) {
	for _, e := range d.Entrants {
		if e.ID == id {
			return e, true
		}
	}
	return Entrant{}, false
}

// FindAngler returns the angler with the given id.
func (d Dataset) FindAngler(id string) (Angler, bool) {
	for _, a := range d.Anglers {
		if a.ID == id {
			return a, true
		}
	}
	return Angler{}, false
}

// EntrantsOf returns the entrants registered for an event.
func (d Dataset) EntrantsOf(eventID string) []Entrant {
	var out []Entrant
	for _, e := range d.Entrants {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	return out
}
