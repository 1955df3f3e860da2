// Package memremote is an in-process remote store.
//
// A Hub stands in for the shared backend: every client dialed from the same
// hub sees the same data and receives the same snapshots. It is used by tests
// and the scenario harness to exercise remote mode without a network.
package memremote

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/remote"
)

// Scheme is the endpoint scheme accepted by Hub dialers.
const Scheme = "mem://"

type subscriber struct {
	id         int
	collection string
	handler    remote.Handler
}

// Hub is the shared state behind all clients dialed from it.
type Hub struct {
	// deliverMu serializes mutation+delivery so subscribers observe
	// snapshots in write order. Handlers must not write back to the hub.
	deliverMu sync.Mutex

	mu         sync.Mutex
	credential string
	data       map[string]map[string]json.RawMessage
	subs       map[int]*subscriber
	nextSub    int
	held       bool
	dirty      map[string]bool
	writeErr   error
	writes     int
}

// NewHub creates an empty hub that accepts the given credential.
func NewHub(credential string) *Hub {
	return &Hub{
		credential: credential,
		data:       make(map[string]map[string]json.RawMessage),
		subs:       make(map[int]*subscriber),
		dirty:      make(map[string]bool),
	}
}

// Dialer returns a remote.Dialer connecting to this hub.
// Endpoints must use the mem:// scheme; the credential must match the hub's.
func (h *Hub) Dialer() remote.Dialer {
	return func(ctx context.Context, endpoint, credential string) (remote.Store, error) {
		return h.Dial(endpoint, credential)
	}
}

// Dial connects a new client to the hub.
func (h *Hub) Dial(endpoint, credential string) (*Client, error) {
	if !strings.HasPrefix(endpoint, Scheme) || len(endpoint) == len(Scheme) {
		return nil, fmt.Errorf("dial %q: %w", endpoint, remote.ErrInvalidEndpoint)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if credential != h.credential {
		return nil, fmt.Errorf("dial %q: %w", endpoint, remote.ErrUnauthorized)
	}
	return &Client{hub: h, subs: make(map[int]bool)}, nil
}

// Hold stops delivering snapshots until Release is called.
// Writes still apply; subscribers see the latest state on release.
func (h *Hub) Hold() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.held = true
}

// Release resumes delivery and sends the latest snapshot of every
// collection changed while held.
func (h *Hub) Release() {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	h.held = false
	var collections []string
	for c := range h.dirty {
		collections = append(collections, c)
	}
	h.dirty = make(map[string]bool)
	h.mu.Unlock()

	for _, c := range collections {
		h.deliver(c)
	}
}

// FailWrites makes every subsequent Set and Remove return err.
// Pass nil to restore normal operation.
func (h *Hub) FailWrites(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writeErr = err
}

// Writes returns the number of successful writes applied to the hub.
func (h *Hub) Writes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writes
}

// Contents returns a copy of one collection's current contents.
func (h *Hub) Contents(collection string) remote.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked(collection)
}

func (h *Hub) snapshotLocked(collection string) remote.Snapshot {
	snap := make(remote.Snapshot, len(h.data[collection]))
	for id, rec := range h.data[collection] {
		snap[id] = rec
	}
	return snap
}

// apply mutates one collection and fans the new contents out to subscribers.
func (h *Hub) apply(collection string, mutate func(m map[string]json.RawMessage)) error {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	if h.writeErr != nil {
		err := h.writeErr
		h.mu.Unlock()
		return err
	}
	m := h.data[collection]
	if m == nil {
		m = make(map[string]json.RawMessage)
		h.data[collection] = m
	}
	mutate(m)
	h.writes++
	if h.held {
		h.dirty[collection] = true
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	h.deliver(collection)
	return nil
}

// deliver must be called with deliverMu held.
func (h *Hub) deliver(collection string) {
	h.mu.Lock()
	snap := h.snapshotLocked(collection)
	var targets []remote.Handler
	for id := 0; id < h.nextSub; id++ {
		if s, ok := h.subs[id]; ok && s.collection == collection {
			targets = append(targets, s.handler)
		}
	}
	h.mu.Unlock()

	for _, fn := range targets {
		fn(copySnapshot(snap))
	}
}

func (h *Hub) subscribe(collection string, handler remote.Handler) int {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = &subscriber{id: id, collection: collection, handler: handler}
	snap := h.snapshotLocked(collection)
	h.mu.Unlock()

	handler(snap)
	return id
}

func (h *Hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

func copySnapshot(s remote.Snapshot) remote.Snapshot {
	out := make(remote.Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
