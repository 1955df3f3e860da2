package deeplink

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Aliases(t *testing.T) {
	cases := []struct {
		raw  string
		want Link
	}{
		{
			"https://club.example/?action=checkin&comp=e1&pond=Velk%C3%BD%20rybn%C3%ADk",
			Link{Action: ActionCheckIn, EventID: "e1", SubLocation: "Velký rybník"},
		},
		{
			"https://club.example/app?action=catch&event=e1&entrant=p1",
			Link{Action: ActionCatch, EventID: "e1", EntrantID: "p1"},
		},
		{
			"https://club.example/?action=checkin&fisher=f1",
			Link{Action: ActionCheckIn, FisherID: "f1"},
		},
		{
			"action=REGISTER&competition=e9",
			Link{Action: ActionRegister, EventID: "e9"},
		},
	}
	for _, tc := range cases {
		got, err := Parse(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestParse_NoAction(t *testing.T) {
	for _, raw := range []string{
		"https://club.example/",
		"https://club.example/?comp=e1",
		"https://club.example/?action=dance&comp=e1",
		"https://club.example/?action=register",
		"https://club.example/?action=catch&comp=e1",
		"https://club.example/?action=checkin&pond=A",
	} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrNoAction, raw)
	}
}

func TestBuild_RoundTripsThroughParse(t *testing.T) {
	l := Link{Action: ActionCheckIn, EventID: "e1", SubLocation: "Pond & co"}

	raw, err := Build("https://club.example/?lang=cs&event=stale", l)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "cs", u.Query().Get("lang"))
	assert.Empty(t, u.Query().Get("event"), "alias keys are replaced by canonical ones")

	back, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, l, back)
}

func TestBuild_RejectsIncompleteLink(t *testing.T) {
	_, err := Build("https://club.example/", Link{Action: ActionCatch, EventID: "e1"})
	assert.ErrorIs(t, err, ErrNoAction)
}

func TestCleanURL(t *testing.T) {
	got, err := CleanURL("https://club.example/app?action=catch&comp=e1&pid=p1&f=x&lang=cs#top")
	require.NoError(t, err)
	assert.Equal(t, "https://club.example/app?lang=cs#top", got)

	got, err = CleanURL("https://club.example/?action=checkin&pond=A")
	require.NoError(t, err)
	assert.Equal(t, "https://club.example/", got)
}
