// Package redisremote implements the remote collection store on Redis.
//
// Each collection is a hash at "<namespace>:<collection>" mapping record id to
// record JSON. Every write updates the hash and publishes the record id on
// "<namespace>:<collection>:changed" in one MULTI/EXEC transaction.
// Subscribers re-read the whole hash on each notification, so a burst of
// writes may be observed as fewer, later snapshots.
package redisremote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/remote"
)

// DefaultNamespace prefixes every key when none is configured.
const DefaultNamespace = "fishsync"

const pingTimeout = 2 * time.Second

// Store is a remote.Store backed by a Redis client.
type Store struct {
	client    *redis.Client
	namespace string
	logger    *slog.Logger

	mu     sync.Mutex
	subs   map[*redis.PubSub]context.CancelFunc
	closed bool
}

var _ remote.Store = (*Store)(nil)

// NewDialer returns a dialer that connects to redis:// or rediss:// endpoints.
// A non-empty credential overrides any password in the URL.
func NewDialer(namespace string, logger *slog.Logger) remote.Dialer {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, endpoint, credential string) (remote.Store, error) {
		opts, err := redis.ParseURL(endpoint)
		if err != nil {
			return nil, fmt.Errorf("dial redis: %w: %v", remote.ErrInvalidEndpoint, err)
		}
		if credential != "" {
			opts.Password = credential
		}
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("dial redis %s: %w", opts.Addr, err)
		}
		return New(client, namespace, logger), nil
	}
}

// New wraps an existing client.
func New(client *redis.Client, namespace string, logger *slog.Logger) *Store {
	return &Store{
		client:    client,
		namespace: namespace,
		logger:    logger,
		subs:      make(map[*redis.PubSub]context.CancelFunc),
	}
}

func (s *Store) hashKey(collection string) string {
	return s.namespace + ":" + collection
}

func (s *Store) channel(collection string) string {
	return s.namespace + ":" + collection + ":changed"
}

// Set writes a record and notifies subscribers.
func (s *Store) Set(ctx context.Context, collection, id string, record json.RawMessage) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.hashKey(collection), id, string(record))
		p.Publish(ctx, s.channel(collection), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Remove deletes a record and notifies subscribers.
func (s *Store) Remove(ctx context.Context, collection, id string) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, s.hashKey(collection), id)
		p.Publish(ctx, s.channel(collection), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) snapshot(ctx context.Context, collection string) (remote.Snapshot, error) {
	m, err := s.client.HGetAll(ctx, s.hashKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	snap := make(remote.Snapshot, len(m))
	for id, v := range m {
		snap[id] = json.RawMessage(v)
	}
	return snap, nil
}

// Subscribe listens for change notifications on collection.
//
// The subscription is confirmed before the initial snapshot is read, so no
// write between the two is missed.
func (s *Store) Subscribe(ctx context.Context, collection string, h remote.Handler) (func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, remote.ErrClosed
	}
	s.mu.Unlock()

	ps := s.client.Subscribe(ctx, s.channel(collection))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}

	snap, err := s.snapshot(ctx, collection)
	if err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}
	h(snap)

	loopCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		ps.Close()
		return nil, remote.ErrClosed
	}
	s.subs[ps] = cancel
	s.mu.Unlock()

	go func() {
		for range ps.Channel() {
			snap, err := s.snapshot(loopCtx, collection)
			if err != nil {
				if loopCtx.Err() != nil {
					return
				}
				s.logger.Warn("snapshot refresh failed", "collection", collection, "error", err)
				continue
			}
			h(snap)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ps)
			s.mu.Unlock()
			cancel()
			ps.Close()
		})
	}, nil
}

// Close cancels all subscriptions and closes the client.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for ps, cancel := range subs {
		cancel()
		ps.Close()
	}
	return s.client.Close()
}
