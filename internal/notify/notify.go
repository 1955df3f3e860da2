// Package notify delivers user-facing notices produced by feature logic.
//
// A notice is what the presentation layer turns into a toast or a modal: a
// confirmation, a warning ("last free catch"), or a blocking message that
// must be acknowledged ("surcharge owed"). Notifiers never decide whether an
// operation succeeds; a failed notification is logged by the caller and the
// mutation stands.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Level is the presentation weight of a notice.
type Level string

const (
	// Info is an ordinary confirmation toast.
	Info Level = "info"
	// Warning is a toast that should stand out.
	Warning Level = "warning"
	// Blocking must be acknowledged before the user continues.
	Blocking Level = "blocking"
)

// Notice is one user-facing notification.
type Notice struct {
	Level    Level     `json:"level"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	Fee      int       `json:"fee,omitempty"`
	Currency string    `json:"currency,omitempty"`
	Subject  string    `json:"subject,omitempty"`
	At       time.Time `json:"at"`
}

// Notifier delivers notices.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, n Notice) error

// Notify calls f.
func (f Func) Notify(ctx context.Context, n Notice) error {
	return f(ctx, n)
}

type multi []Notifier

// Multi fans a notice out to every notifier. All are tried; errors are joined.
func Multi(ns ...Notifier) Notifier {
	return multi(ns)
}

func (m multi) Notify(ctx context.Context, n Notice) error {
	var errs []error
	for _, x := range m {
		if err := x.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every notice in memory. Used by tests and the scenario harness.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify records n.
func (r *Recorder) Notify(_ context.Context, n Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

// All returns a copy of every recorded notice.
func (r *Recorder) All() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Last returns the most recent notice.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

// Reset forgets every recorded notice.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = nil
}
