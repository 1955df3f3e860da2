// Package catalog imports event definitions written in CUE.
//
// A catalog file declares events under the top-level "event" field, keyed by
// a short label:
//
//	event: spring: {
//		name:         "Jarní závody"
//		date:         "2025-05-10"
//		time:         "07:00"
//		maxEntrants:  40
//		subLocations: ["Horní", "Dolní"]
//		catchLimit:   3
//	}
//
// Every file is unified with Schema before decoding, so typos in field names,
// malformed dates and negative limits are reported with their position.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/service"
)

// Schema constrains catalog files.
const Schema = `
#Event: {
	name:          string & !=""
	date:          =~"^[0-9]{4}-[0-9]{2}-[0-9]{2}$"
	time?:         =~"^[0-2][0-9]:[0-5][0-9]$"
	location?:     string
	maxEntrants?:  int & >=0
	subLocations?: [...string & !=""]
	catchLimit:    *0 | (int & >=0)
	description?:  string
}

event: [string]: #Event
`

// Entry is one event definition from a catalog file.
type Entry struct {
	Key          string   `json:"-"`
	Name         string   `json:"name"`
	Date         string   `json:"date"`
	Time         string   `json:"time,omitempty"`
	Location     string   `json:"location,omitempty"`
	MaxEntrants  *int     `json:"maxEntrants,omitempty"`
	SubLocations []string `json:"subLocations,omitempty"`
	CatchLimit   int      `json:"catchLimit"`
	Description  string   `json:"description,omitempty"`
}

// Input converts e to a service event input.
func (e Entry) Input() service.EventInput {
	return service.EventInput{
		Name:         e.Name,
		Date:         e.Date,
		Time:         e.Time,
		Location:     e.Location,
		MaxEntrants:  e.MaxEntrants,
		SubLocations: e.SubLocations,
		CatchLimit:   e.CatchLimit,
		Description:  e.Description,
	}
}

// Error is a catalog load failure, with the CUE position when known.
type Error struct {
	Key     string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	where := e.Key
	if where == "" {
		where = "catalog"
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), where, e.Message)
	}
	return fmt.Sprintf("%s: %s", where, e.Message)
}

// Loader compiles catalog files against Schema.
type Loader struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewLoader compiles the schema.
func NewLoader() *Loader {
	ctx := cuecontext.New()
	return &Loader{ctx: ctx, schema: ctx.CompileString(Schema, cue.Filename("schema.cue"))}
}

// Load reads a .cue file, or every .cue file of a directory in name order.
func (l *Loader) Load(path string) ([]Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.cue"))
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		sort.Strings(files)
		if len(files) == 0 {
			return nil, &Error{Message: fmt.Sprintf("no .cue files in %s", path)}
		}
	}

	var out []Entry
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		entries, err := l.LoadBytes(f, data)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

// LoadBytes compiles one catalog file. name is used in error positions.
func (l *Loader) LoadBytes(name string, data []byte) ([]Entry, error) {
	v := l.ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, cueError("", err)
	}
	v = l.schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError("", err)
	}

	events := v.LookupPath(cue.ParsePath("event"))
	if !events.Exists() {
		return nil, &Error{Message: "no event field", Pos: v.Pos()}
	}
	iter, err := events.Fields()
	if err != nil {
		return nil, cueError("event", err)
	}

	var out []Entry
	for iter.Next() {
		key := iter.Selector().Unquoted()
		var e Entry
		if err := iter.Value().Decode(&e); err != nil {
			return nil, cueError(key, err)
		}
		e.Key = key
		out = append(out, e)
	}
	return out, nil
}

// cueError keeps the first error and its position.
func cueError(key string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Key: key, Message: err.Error()}
	}
	first := errs[0]
	out := &Error{Key: key, Message: first.Error()}
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		out.Pos = pos[0]
	}
	return out
}

// Result summarizes an import.
type Result struct {
	Created []record.Event
	// Skipped lists keys of entries matching an existing event by name and date.
	Skipped []string
}

// Import creates an event for every entry not already present. An event is
// present when one with the same date has the same name, compared
// case-insensitively. Import stops at the first rejected entry.
func Import(ctx context.Context, svc *service.Service, entries []Entry) (Result, error) {
	var res Result
	var known []record.Event
	for _, s := range svc.Events() {
		known = append(known, s.Event)
	}
	for _, e := range entries {
		dup := false
		for _, ev := range known {
			if ev.Date == e.Date && record.SameName(ev.Name, e.Name) {
				dup = true
				break
			}
		}
		if dup {
			res.Skipped = append(res.Skipped, e.Key)
			continue
		}
		ev, err := svc.CreateEvent(ctx, e.Input())
		if err != nil {
			return res, fmt.Errorf("import %s: %w", e.Key, err)
		}
		res.Created = append(res.Created, ev)
		known = append(known, ev)
	}
	return res, nil
}
