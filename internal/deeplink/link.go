// Package deeplink parses, builds and resolves the action links encoded in
// QR codes.
//
// A link is a base URL with query parameters naming an action and its
// targets, e.g. https://club.example/?action=checkin&comp=<id>&pond=A.
// Deployments used different parameter names over time; every known alias is
// accepted on parse and the canonical name is written on build.
package deeplink

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Action is the workflow a link resumes.
type Action string

const (
	ActionRegister Action = "register"
	ActionCheckIn  Action = "checkin"
	ActionCatch    Action = "catch"
)

// ErrNoAction is returned for links that carry no actionable instruction:
// missing or unknown action, or missing targets. Callers take no action.
var ErrNoAction = errors.New("no deep-link action")

// Canonical query parameter names.
const (
	ParamAction  = "action"
	ParamEvent   = "comp"
	ParamPond    = "pond"
	ParamEntrant = "pid"
	ParamAngler  = "f"
)

var aliases = map[string][]string{
	ParamEvent:   {"comp", "event", "eventId", "competition"},
	ParamPond:    {"pond", "sub", "subLocation"},
	ParamEntrant: {"pid", "entrant", "participant"},
	ParamAngler:  {"f", "fisher", "angler"},
}

// Link is a parsed action link.
type Link struct {
	Action      Action
	EventID     string
	SubLocation string
	EntrantID   string
	FisherID    string
}

// Parse extracts a link from a full URL or a bare query string.
func Parse(raw string) (Link, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, fmt.Errorf("parse link: %w", err)
	}
	q := u.Query()
	if u.RawQuery == "" && !strings.Contains(raw, "?") && strings.Contains(raw, "=") {
		q, err = url.ParseQuery(raw)
		if err != nil {
			return Link{}, fmt.Errorf("parse link: %w", err)
		}
	}
	return FromQuery(q)
}

// FromQuery extracts a link from query parameters.
func FromQuery(q url.Values) (Link, error) {
	l := Link{
		Action:      Action(strings.ToLower(strings.TrimSpace(q.Get(ParamAction)))),
		EventID:     lookup(q, ParamEvent),
		SubLocation: lookup(q, ParamPond),
		EntrantID:   lookup(q, ParamEntrant),
		FisherID:    lookup(q, ParamAngler),
	}
	if err := l.Validate(); err != nil {
		return Link{}, err
	}
	return l, nil
}

func lookup(q url.Values, canonical string) string {
	for _, key := range aliases[canonical] {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			return v
		}
	}
	return ""
}

// Validate reports ErrNoAction when l cannot be acted on.
func (l Link) Validate() error {
	switch l.Action {
	case ActionRegister:
		if l.EventID == "" {
			return fmt.Errorf("%w: register without event", ErrNoAction)
		}
	case ActionCheckIn:
		if l.EventID == "" && l.FisherID == "" {
			return fmt.Errorf("%w: checkin without event or angler", ErrNoAction)
		}
	case ActionCatch:
		if l.FisherID == "" && (l.EventID == "" || l.EntrantID == "") {
			return fmt.Errorf("%w: catch without entrant or angler", ErrNoAction)
		}
	case "":
		return ErrNoAction
	default:
		return fmt.Errorf("%w: unknown action %q", ErrNoAction, l.Action)
	}
	return nil
}

// Build returns the URL encoding l on top of base, for rendering as a QR
// code. Existing query parameters of base are kept.
func Build(base string, l Link) (string, error) {
	if err := l.Validate(); err != nil {
		return "", err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("build link: %w", err)
	}

	q := u.Query()
	stripActionParams(q)
	q.Set(ParamAction, string(l.Action))
	set := func(key, v string) {
		if v != "" {
			q.Set(key, v)
		}
	}
	set(ParamEvent, l.EventID)
	set(ParamPond, l.SubLocation)
	set(ParamEntrant, l.EntrantID)
	set(ParamAngler, l.FisherID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CleanURL removes every action parameter from raw so reloading the page
// does not replay the action. Other parameters are kept.
func CleanURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("clean link: %w", err)
	}
	q := u.Query()
	stripActionParams(q)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func stripActionParams(q url.Values) {
	q.Del(ParamAction)
	for _, keys := range aliases {
		for _, k := range keys {
			q.Del(k)
		}
	}
}
