// Package record defines the synchronized collections and their record types.
//
// Every collection is an unordered set of JSON records keyed by an opaque id.
// The wire shape is shared with other clients of the same remote store, so the
// decoders accept the alternate key names older deployments wrote
// (competitionId, participantId, pond, maxParticipants, ponds) and normalize
// them onto a single field set. Records without an id are rejected at decode
// time rather than propagated inward.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names a synchronized collection.
type Collection string

const (
	Events     Collection = "events"
	Entrants   Collection = "entrants"
	Attendance Collection = "attendance"
	Catches    Collection = "catches"
	Visits     Collection = "visits"
	Anglers    Collection = "anglers"
)

// All returns every collection in a fixed order.
func All() []Collection {
	return []Collection{Events, Entrants, Attendance, Catches, Visits, Anglers}
}

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	for _, known := range All() {
		if c == known {
			return true
		}
	}
	return false
}

// ErrMissingID is returned when a decoded record carries no id.
var ErrMissingID = errors.New("record has no id")

// Record is implemented by every collection record type.
// Records are values; once published into a snapshot they are never mutated.
type Record interface {
	RecordID() string
}

// Decode parses raw JSON into the record type of collection c.
func Decode(c Collection, raw []byte) (Record, error) {
	var (
		rec Record
		err error
	)
	switch c {
	case Events:
		var v Event
		err = json.Unmarshal(raw, &v)
		rec = v
	case Entrants:
		var v Entrant
		err = json.Unmarshal(raw, &v)
		rec = v
	case Attendance:
		var v AttendanceRecord
		err = json.Unmarshal(raw, &v)
		rec = v
	case Catches:
		var v Catch
		err = json.Unmarshal(raw, &v)
		rec = v
	case Visits:
		var v Visit
		err = json.Unmarshal(raw, &v)
		rec = v
	case Anglers:
		var v Angler
		err = json.Unmarshal(raw, &v)
		rec = v
	default:
		return nil, fmt.Errorf("decode: unknown collection %q", c)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", c, err)
	}
	if rec.RecordID() == "" {
		return nil, fmt.Errorf("decode %s: %w", c, ErrMissingID)
	}
	return rec, nil
}

// Encode serializes a record to its wire form.
func Encode(r Record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", r, err)
	}
	return data, nil
}

// CollectionOf returns the collection a record type belongs to.
func CollectionOf(r Record) (Collection, bool) {
	switch r.(type) {
	case Event:
		return Events, true
	case Entrant:
		return Entrants, true
	case AttendanceRecord:
		return Attendance, true
	case Catch:
		return Catches, true
	case Visit:
		return Visits, true
	case Angler:
		return Anglers, true
	}
	return "", false
}
