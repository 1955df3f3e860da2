package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventAliases(t *testing.T) {
	raw := []byte(`{"id":"e1","name":"Jarní závody","date":"2025-05-10","maxParticipants":30,"ponds":["A","B"]}`)

	rec, err := Decode(Events, raw)
	require.NoError(t, err)

	ev := rec.(Event)
	assert.Equal(t, 30, ev.MaxEntrants)
	assert.Equal(t, []string{"A", "B"}, ev.SubLocations)
}

func TestDecodeEventCanonicalWins(t *testing.T) {
	raw := []byte(`{"id":"e1","maxEntrants":10,"maxParticipants":30,"subLocations":["X"],"ponds":["A"]}`)

	rec, err := Decode(Events, raw)
	require.NoError(t, err)

	ev := rec.(Event)
	assert.Equal(t, 10, ev.MaxEntrants)
	assert.Equal(t, []string{"X"}, ev.SubLocations)
}

func TestDecodeEventExplicitZeroMaxEntrants(t *testing.T) {
	rec, err := Decode(Events, []byte(`{"id":"e1","maxEntrants":0,"maxParticipants":30}`))
	require.NoError(t, err)
	assert.Equal(t, 0, rec.(Event).MaxEntrants)
}

func TestDecodeEventNoSubLocations(t *testing.T) {
	rec, err := Decode(Events, []byte(`{"id":"e1"}`))
	require.NoError(t, err)
	assert.NotNil(t, rec.(Event).SubLocations)
	assert.Empty(t, rec.(Event).SubLocations)
}

func TestDecodeParticipantAliases(t *testing.T) {
	rec, err := Decode(Catches, []byte(`{"id":"c1","competitionId":"e1","participantId":"p1","pond":"A","time":"2025-05-10T08:00:00Z"}`))
	require.NoError(t, err)

	c := rec.(Catch)
	assert.Equal(t, "e1", c.EventID)
	assert.Equal(t, "p1", c.EntrantID)
	assert.Equal(t, "A", c.SubLocation)
	assert.Equal(t, "p1", c.Participant())

	rec, err = Decode(Attendance, []byte(`{"id":"a1","competitionId":"e1","participantId":"p1","pond":"B","time":"t"}`))
	require.NoError(t, err)
	a := rec.(AttendanceRecord)
	assert.Equal(t, "e1", a.EventID)
	assert.Equal(t, "p1", a.EntrantID)
	assert.Equal(t, "B", a.SubLocation)

	rec, err = Decode(Entrants, []byte(`{"id":"p1","competitionId":"e1","name":"Jan"}`))
	require.NoError(t, err)
	assert.Equal(t, "e1", rec.(Entrant).EventID)
}

func TestDecodeRejectsMissingID(t *testing.T) {
	_, err := Decode(Anglers, []byte(`{"name":"Jan"}`))
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestDecodeRejectsUnknownCollection(t *testing.T) {
	_, err := Decode(Collection("boats"), []byte(`{"id":"x"}`))
	assert.Error(t, err)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode(Events, []byte(`{"id":`))
	assert.Error(t, err)
}

func TestEncodeUsesCanonicalKeys(t *testing.T) {
	data, err := Encode(Catch{ID: "c1", EventID: "e1", EntrantID: "p1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"c1","eventId":"e1","entrantId":"p1"}`, string(data))
}

func TestCollectionOf(t *testing.T) {
	c, ok := CollectionOf(Visit{ID: "v"})
	assert.True(t, ok)
	assert.Equal(t, Visits, c)

	assert.True(t, Collection("anglers").Valid())
	assert.False(t, Collection("boats").Valid())
}

func TestStampFallbacks(t *testing.T) {
	assert.Equal(t, "2024-01-02T10:00:00Z", Catch{Time: "2024-01-02T10:00:00Z", Date: "2023-01-01"}.Stamp())
	assert.Equal(t, "2024-03-03", Catch{Date: "2024-03-03"}.Stamp())
	assert.Equal(t, "2024-03-03", AttendanceRecord{Date: "2024-03-03"}.Stamp())
	assert.Equal(t, "2024-03-03", Visit{Date: "2024-03-03"}.Stamp())
}

func TestSameName(t *testing.T) {
	assert.True(t, SameName("Jan Novák", "  JAN NOVÁK "))
	assert.True(t, SameName("Jan Novák", "jan novák"))
	assert.False(t, SameName("Jan Novák", "Jan Novak"))
}

func TestNewDatasetSkipsMistypedRecords(t *testing.T) {
	ds := NewDataset(map[Collection][]Record{
		Events:   {Event{ID: "e1"}, Angler{ID: "a1"}},
		Entrants: {Entrant{ID: "p1", EventID: "e1"}, Entrant{ID: "p2", EventID: "e2"}},
	})

	assert.Len(t, ds.Events, 1)
	_, ok := ds.FindEvent("e1")
	assert.True(t, ok)
	assert.Len(t, ds.EntrantsOf("e1"), 1)
	assert.Empty(t, ds.Anglers)
}
