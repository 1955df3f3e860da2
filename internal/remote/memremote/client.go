package memremote

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/remote"
)

// Client is one connection to a Hub. It implements remote.Store.
type Client struct {
	hub *Hub

	mu     sync.Mutex
	subs   map[int]bool
	closed bool
}

var _ remote.Store = (*Client)(nil)

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Set writes a record to the hub.
func (c *Client) Set(ctx context.Context, collection, id string, record json.RawMessage) error {
	if c.isClosed() {
		return remote.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := append(json.RawMessage(nil), record...)
	return c.hub.apply(collection, func(m map[string]json.RawMessage) {
		m[id] = rec
	})
}

// Remove deletes a record from the hub.
func (c *Client) Remove(ctx context.Context, collection, id string) error {
	if c.isClosed() {
		return remote.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.hub.apply(collection, func(m map[string]json.RawMessage) {
		delete(m, id)
	})
}

// Subscribe registers h for snapshots of collection.
func (c *Client) Subscribe(ctx context.Context, collection string, h remote.Handler) (func(), error) {
	if c.isClosed() {
		return nil, remote.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := c.hub.subscribe(collection, h)

	// Close may have run while the initial snapshot was delivered.
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.hub.unsubscribe(id)
		return nil, remote.ErrClosed
	}
	c.subs[id] = true
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.hub.unsubscribe(id)
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}, nil
}

// Close cancels every subscription opened by this client.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	c.subs = nil
	c.mu.Unlock()

	for _, id := range ids {
		c.hub.unsubscribe(id)
	}
	return nil
}
