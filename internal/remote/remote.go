// Package remote defines the realtime collection store the engine can sync with.
//
// A remote store holds one id→record map per collection. Every subscriber of a
// collection receives the full current contents once when it subscribes and
// again after every change by any client, including its own writes. Deliveries
// for one subscription are serialized; intermediate states may be coalesced.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidEndpoint is returned when an endpoint cannot be parsed.
	ErrInvalidEndpoint = errors.New("invalid remote endpoint")
	// ErrUnauthorized is returned when the credential is rejected.
	ErrUnauthorized = errors.New("remote credential rejected")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("remote store closed")
)

// Snapshot is the full contents of one collection, keyed by record id.
type Snapshot map[string]json.RawMessage

// Handler receives collection snapshots.
type Handler func(Snapshot)

// Store is a connected remote collection store.
type Store interface {
	// Set writes record under id, replacing any previous value.
	Set(ctx context.Context, collection, id string, record json.RawMessage) error
	// Remove deletes id. Removing a missing id is not an error.
	Remove(ctx context.Context, collection, id string) error
	// Subscribe delivers the current snapshot to h before returning, then
	// again on every change until the returned cancel func is called.
	Subscribe(ctx context.Context, collection string, h Handler) (cancel func(), err error)
	// Close tears down the connection and every subscription.
	Close() error
}

// Dialer connects to a remote store.
type Dialer func(ctx context.Context, endpoint, credential string) (Store, error)

// Mux returns a dialer that picks one of dialers by the endpoint's URL
// scheme, e.g. "redis" for redis://host:6379/0.
func Mux(dialers map[string]Dialer) Dialer {
	return func(ctx context.Context, endpoint, credential string) (Store, error) {
		scheme, _, ok := strings.Cut(endpoint, "://")
		if !ok || scheme == "" {
			return nil, fmt.Errorf("dial %q: %w: missing scheme", endpoint, ErrInvalidEndpoint)
		}
		d, ok := dialers[strings.ToLower(scheme)]
		if !ok {
			return nil, fmt.Errorf("dial %q: %w: unsupported scheme %q", endpoint, ErrInvalidEndpoint, scheme)
		}
		return d(ctx, endpoint, credential)
	}
}
