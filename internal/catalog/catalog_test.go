package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/engine"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/ident"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/notify"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/service"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/store"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/testutil"
)

const season = `
event: spring: {
	name:         "Jarní závody"
	date:         "2025-05-10"
	time:         "07:00"
	maxEntrants:  40
	subLocations: ["Horní", "Dolní"]
	catchLimit:   3
}

event: "kids-cup": {
	name: "Dětské závody"
	date: "2025-06-01"
}
`

func TestLoadBytes_DecodesInOrder(t *testing.T) {
	entries, err := NewLoader().LoadBytes("season.cue", []byte(season))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	spring := entries[0]
	assert.Equal(t, "spring", spring.Key)
	assert.Equal(t, "Jarní závody", spring.Name)
	assert.Equal(t, "07:00", spring.Time)
	require.NotNil(t, spring.MaxEntrants)
	assert.Equal(t, 40, *spring.MaxEntrants)
	assert.Equal(t, []string{"Horní", "Dolní"}, spring.SubLocations)
	assert.Equal(t, 3, spring.CatchLimit)

	kids := entries[1]
	assert.Equal(t, "kids-cup", kids.Key)
	assert.Nil(t, kids.MaxEntrants, "absent capacity falls back to the configured default")
	assert.Equal(t, 0, kids.CatchLimit)
}

func TestLoadBytes_SchemaViolations(t *testing.T) {
	cases := map[string]struct {
		src  string
		want string
	}{
		"bad date":       {`event: a: {name: "A", date: "10.5.2025"}`, "date"},
		"unknown field":  {`event: a: {name: "A", date: "2025-05-10", catchlimit: 3}`, "catchlimit"},
		"negative limit": {`event: a: {name: "A", date: "2025-05-10", catchLimit: -1}`, "catchLimit"},
		"empty name":     {`event: a: {name: "", date: "2025-05-10"}`, "name"},
		"missing date":   {`event: a: {name: "A"}`, "date"},
		"syntax":         {`event: a: {name: `, "catalog"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewLoader().LoadBytes("bad.cue", []byte(tc.src))
			require.Error(t, err)
			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadBytes_NoEvents(t *testing.T) {
	_, err := NewLoader().LoadBytes("empty.cue", []byte(`other: 1`))
	assert.ErrorContains(t, err, "no event field")
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cue"), []byte(`event: b: {name: "B", date: "2025-07-01"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), []byte(`event: a: {name: "A", date: "2025-06-01"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	entries, err := NewLoader().Load(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "b", entries[1].Key)

	_, err = NewLoader().Load(t.TempDir())
	assert.ErrorContains(t, err, "no .cue files")
}

func newService(t *testing.T) *service.Service {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	eng := engine.New(s)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { eng.Close() })

	return service.New(eng,
		service.WithClock(testutil.MustParse("2025-05-01T10:00:00Z").Now),
		service.WithIDs(ident.NewSequenceGenerator("ev")),
		service.WithNotifier(&notify.Recorder{}),
	)
}

func TestImport_SkipsExistingEvents(t *testing.T) {
	svc := newService(t)
	entries, err := NewLoader().LoadBytes("season.cue", []byte(season))
	require.NoError(t, err)

	res, err := Import(context.Background(), svc, entries)
	require.NoError(t, err)
	require.Len(t, res.Created, 2)
	assert.Equal(t, 40, res.Created[0].MaxEntrants)
	assert.Equal(t, 50, res.Created[1].MaxEntrants)
	assert.Empty(t, res.Skipped)

	res, err = Import(context.Background(), svc, entries)
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Equal(t, []string{"spring", "kids-cup"}, res.Skipped)
	assert.Len(t, svc.Events(), 2)
}

func TestImport_DuplicateWithinBatch(t *testing.T) {
	svc := newService(t)
	entries := []Entry{
		{Key: "a", Name: "Cup", Date: "2025-06-01"},
		{Key: "b", Name: "CUP", Date: "2025-06-01"},
		{Key: "c", Name: "Cup", Date: "2025-06-02"},
	}
	res, err := Import(context.Background(), svc, entries)
	require.NoError(t, err)
	assert.Len(t, res.Created, 2)
	assert.Equal(t, []string{"b"}, res.Skipped)
}

func TestImport_StopsOnRejection(t *testing.T) {
	svc := newService(t)
	entries := []Entry{
		{Key: "ok", Name: "Cup", Date: "2025-06-01"},
		{Key: "bad", Name: "Broken", Date: "2025-13-45"},
	}
	res, err := Import(context.Background(), svc, entries)
	assert.True(t, service.IsValidationError(err, service.CodeInvalidInput))
	assert.ErrorContains(t, err, "import bad")
	assert.Len(t, res.Created, 1)
}
