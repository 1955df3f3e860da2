package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/metrics"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/remote"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/store"
)

// Mode is the engine's current backing mode.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// Defaults for engine options.
const (
	DefaultKeyPrefix     = "ryb_"
	DefaultMaxAttempts   = 8
	DefaultRetryInterval = 2 * time.Second
	DefaultMaxBackoff    = time.Minute
	DefaultWriteTimeout  = 5 * time.Second
)

const outboxBatch = 64

// Listener receives change notifications from the dispatch loop.
// Listeners run one at a time and must not block for long.
type Listener func(Change)

// Engine is the local-first sync engine.
//
// Thread-safety model:
//   - Put, Remove, RemoveWhere, readers: safe from any goroutine
//   - ConfigureRemote, DisconnectRemote: safe from any goroutine, serialized by mu
//   - Run: must be called from exactly one goroutine
//
// INVARIANTS:
//   - Collection slices are replaced, never modified in place
//   - In remote mode, memory changes only when a snapshot arrives
//   - Snapshots from a torn-down connection are ignored (generation check)
type Engine struct {
	store   *store.Store
	dial    remote.Dialer
	logger  *slog.Logger
	metrics *metrics.Metrics

	keyPrefix     string
	maxAttempts   int
	retryInterval time.Duration
	maxBackoff    time.Duration
	writeTimeout  time.Duration

	mu       sync.RWMutex
	data     map[record.Collection][]record.Record
	mode     Mode
	remote   remote.Store
	endpoint string
	cancels  []func()
	gen      uint64 // incremented whenever the remote connection changes

	listenersMu  sync.Mutex
	listeners    map[int]Listener
	nextListener int

	changes   *changeQueue
	kick      chan struct{}
	drainMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithDialer sets the dialer used by ConfigureRemote.
func WithDialer(d remote.Dialer) Option {
	return func(e *Engine) {
		e.dial = d
	}
}

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics sets the collectors the engine reports to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithKeyPrefix sets the prefix of local collection keys. Default: "ryb_".
func WithKeyPrefix(prefix string) Option {
	return func(e *Engine) {
		e.keyPrefix = prefix
	}
}

// WithMaxAttempts sets how many delivery attempts a remote write gets before
// it is dead-lettered.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		e.maxAttempts = n
	}
}

// WithRetryInterval sets the first retry delay and the idle poll interval of
// the outbox loop.
func WithRetryInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.retryInterval = d
	}
}

// WithMaxBackoff caps the exponential retry delay. Non-positive values keep
// DefaultMaxBackoff.
func WithMaxBackoff(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.maxBackoff = d
		}
	}
}

// WithWriteTimeout bounds a single remote write.
func WithWriteTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.writeTimeout = d
	}
}

// New creates an engine in local mode with empty collections.
// Call Start to load persisted data.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:         s,
		logger:        slog.Default(),
		keyPrefix:     DefaultKeyPrefix,
		maxAttempts:   DefaultMaxAttempts,
		retryInterval: DefaultRetryInterval,
		maxBackoff:    DefaultMaxBackoff,
		writeTimeout:  DefaultWriteTimeout,
		data:          make(map[record.Collection][]record.Record),
		mode:          ModeLocal,
		listeners:     make(map[int]Listener),
		changes:       newChangeQueue(),
		kick:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	for _, c := range record.All() {
		e.data[c] = []record.Record{}
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.maxAttempts < 1 {
		e.maxAttempts = 1
	}
	return e
}

// Key returns the local persistence key of a collection.
func (e *Engine) Key(c record.Collection) string {
	return e.keyPrefix + string(c)
}

// Start loads every collection from local persistence and, if a remote
// credential was saved by an earlier ConfigureRemote, reconnects.
//
// A failed reconnect is returned as a *ConfigError; the engine is still
// usable in local mode.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	for _, c := range record.All() {
		e.data[c] = e.loadLocal(ctx, c)
	}
	e.mu.Unlock()

	credential, ok, err := e.store.Setting(ctx, store.SettingRemoteCredential)
	if err != nil {
		e.logger.Warn("saved remote credential unreadable, staying local", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	endpoint, _, err := e.store.Setting(ctx, store.SettingRemoteEndpoint)
	if err != nil {
		e.logger.Warn("saved remote endpoint unreadable, staying local", "error", err)
		return nil
	}

	e.logger.Info("reconnecting to saved remote", "endpoint", endpoint)
	return e.ConfigureRemote(ctx, endpoint, credential)
}

func (e *Engine) loadLocal(ctx context.Context, c record.Collection) []record.Record {
	raws := e.store.Load(ctx, e.Key(c))
	recs := make([]record.Record, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		rec, err := record.Decode(c, raw)
		if err != nil {
			dropped++
			e.logger.Warn("dropping unreadable local record", "collection", c, "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	e.metrics.Dropped(string(c), dropped)
	return recs
}

// persistLocked writes collection c to local persistence.
// Failures are logged, never returned. Caller must hold mu.
func (e *Engine) persistLocked(ctx context.Context, c record.Collection) {
	recs := e.data[c]
	raws := make([]json.RawMessage, 0, len(recs))
	for _, r := range recs {
		raw, err := record.Encode(r)
		if err != nil {
			e.logger.Error("skipping unencodable record", "collection", c, "id", r.RecordID(), "error", err)
			continue
		}
		raws = append(raws, raw)
	}
	if err := e.store.Save(ctx, e.Key(c), raws); err != nil {
		e.logger.Error("local persist failed", "collection", c, "error", err)
	}
}

func checkRecord(c record.Collection, rec record.Record) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	if rec == nil || rec.RecordID() == "" {
		return ErrEmptyID
	}
	if rc, ok := record.CollectionOf(rec); !ok || rc != c {
		return fmt.Errorf("%w: %T into %s", ErrWrongCollection, rec, c)
	}
	return nil
}

// Put inserts rec into collection c, replacing any record with the same id.
//
// In local mode the change is in memory and persisted when Put returns. In
// remote mode the write is queued for delivery and becomes visible only
// when the remote snapshot arrives. The returned error covers invalid input
// and a failure to queue; remote delivery failures are never returned.
func (e *Engine) Put(ctx context.Context, c record.Collection, rec record.Record) error {
	if err := checkRecord(c, rec); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	id := rec.RecordID()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode == ModeRemote {
		raw, err := record.Encode(rec)
		if err != nil {
			return fmt.Errorf("put %s/%s: %w", c, id, err)
		}
		return e.enqueueLocked(ctx, c, id, store.OpSet, raw)
	}

	old := e.data[c]
	next := make([]record.Record, 0, len(old)+1)
	replaced := false
	for _, r := range old {
		if r.RecordID() == id {
			next = append(next, rec)
			replaced = true
			continue
		}
		next = append(next, r)
	}
	if !replaced {
		next = append(next, rec)
	}
	e.data[c] = next
	e.persistLocked(ctx, c)
	return nil
}

// Remove deletes the record with the given id. Removing a missing id is a no-op.
// Same dual-mode behavior as Put.
func (e *Engine) Remove(ctx context.Context, c record.Collection, id string) error {
	if !c.Valid() {
		return fmt.Errorf("remove: %w: %q", ErrUnknownCollection, c)
	}
	if id == "" {
		return fmt.Errorf("remove: %w", ErrEmptyID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode == ModeRemote {
		return e.enqueueLocked(ctx, c, id, store.OpRemove, nil)
	}

	old := e.data[c]
	next := make([]record.Record, 0, len(old))
	for _, r := range old {
		if r.RecordID() != id {
			next = append(next, r)
		}
	}
	if len(next) == len(old) {
		return nil
	}
	e.data[c] = next
	e.persistLocked(ctx, c)
	return nil
}

// RemoveWhere removes every record of c matching the predicate.
//
// Matches are computed once against the current snapshot, then one Remove is
// issued per id. In remote mode a snapshot arriving in between can make some
// matches stale; the removes are still issued. Returns the number of removes
// issued.
func (e *Engine) RemoveWhere(ctx context.Context, c record.Collection, match func(record.Record) bool) (int, error) {
	if !c.Valid() {
		return 0, fmt.Errorf("remove where: %w: %q", ErrUnknownCollection, c)
	}
	var ids []string
	for _, r := range e.Snapshot(c) {
		if match(r) {
			ids = append(ids, r.RecordID())
		}
	}
	for i, id := range ids {
		if err := e.Remove(ctx, c, id); err != nil {
			return i, err
		}
	}
	return len(ids), nil
}

func (e *Engine) enqueueLocked(ctx context.Context, c record.Collection, id string, op store.Op, raw json.RawMessage) error {
	if _, err := e.store.Enqueue(ctx, string(c), id, op, raw); err != nil {
		return fmt.Errorf("queue %s %s/%s: %w", op, c, id, err)
	}
	e.metrics.Enqueued(string(c))
	e.logger.Debug("remote write queued", "collection", c, "id", id, "op", op)

	select {
	case e.kick <- struct{}{}:
	default:
	}
	return nil
}

// ConfigureRemote connects to a remote store and switches to remote mode.
//
// On success one subscription per collection is established, each collection
// is replaced by the remote contents before ConfigureRemote returns, and the
// endpoint and credential are saved so Start reconnects automatically.
//
// On failure the engine stays in local mode with its previous data and a
// *ConfigError is returned.
func (e *Engine) ConfigureRemote(ctx context.Context, endpoint, credential string) error {
	if e.dial == nil {
		e.metrics.Connect(false)
		return &ConfigError{Endpoint: endpoint, Err: ErrNoDialer}
	}

	st, err := e.dial(ctx, endpoint, credential)
	if err != nil {
		e.metrics.Connect(false)
		e.logger.Warn("remote configuration failed", "endpoint", endpoint, "error", err)
		return &ConfigError{Endpoint: endpoint, Err: err}
	}

	e.mu.Lock()
	prevData := e.copyDataLocked()
	prevStore, prevCancels := e.remote, e.cancels
	e.gen++
	gen := e.gen
	e.remote = st
	e.endpoint = endpoint
	e.cancels = nil
	e.mode = ModeRemote
	e.mu.Unlock()
	e.closeRemote(prevStore, prevCancels)

	var cancels []func()
	for _, c := range record.All() {
		cancel, err := st.Subscribe(ctx, string(c), e.snapshotHandler(gen, c))
		if err != nil {
			e.mu.Lock()
			if e.gen == gen {
				e.gen++
				e.remote = nil
				e.endpoint = ""
				e.mode = ModeLocal
				e.data = prevData
			}
			e.mu.Unlock()
			e.closeRemote(st, cancels)

			e.metrics.Connect(false)
			e.logger.Warn("remote subscription failed", "endpoint", endpoint, "collection", c, "error", err)
			return &ConfigError{Endpoint: endpoint, Err: fmt.Errorf("subscribe %s: %w", c, err)}
		}
		cancels = append(cancels, cancel)
	}

	e.mu.Lock()
	if e.gen != gen {
		// Disconnected or reconfigured while subscribing.
		e.mu.Unlock()
		e.closeRemote(nil, cancels)
		return &ConfigError{Endpoint: endpoint, Err: errors.New("connection superseded")}
	}
	e.cancels = cancels
	e.mu.Unlock()

	if err := e.store.SetSetting(ctx, store.SettingRemoteEndpoint, endpoint); err != nil {
		e.logger.Error("saving remote endpoint failed", "error", err)
	}
	if err := e.store.SetSetting(ctx, store.SettingRemoteCredential, credential); err != nil {
		e.logger.Error("saving remote credential failed", "error", err)
	}

	e.metrics.Connect(true)
	e.logger.Info("remote mode enabled", "endpoint", endpoint)
	e.changes.Enqueue(Change{Kind: ChangeMode, Mode: ModeRemote})

	select {
	case e.kick <- struct{}{}:
	default:
	}
	return nil
}

// snapshotHandler returns the subscription callback for one collection of
// connection generation gen.
func (e *Engine) snapshotHandler(gen uint64, c record.Collection) remote.Handler {
	return func(snap remote.Snapshot) {
		recs := e.decodeSnapshot(c, snap)

		e.mu.Lock()
		if e.gen != gen {
			e.mu.Unlock()
			return
		}
		e.data[c] = recs
		e.mu.Unlock()

		e.metrics.Snapshot(string(c))
		e.logger.Debug("remote snapshot applied", "collection", c, "records", len(recs))
		e.changes.Enqueue(Change{Kind: ChangeSnapshot, Collection: c})
	}
}

// decodeSnapshot converts a remote snapshot to records ordered by id.
// Undecodable records are dropped.
func (e *Engine) decodeSnapshot(c record.Collection, snap remote.Snapshot) []record.Record {
	recs := make([]record.Record, 0, len(snap))
	dropped := 0
	for key, raw := range snap {
		rec, err := record.Decode(c, raw)
		if err != nil {
			dropped++
			e.logger.Warn("dropping unreadable remote record", "collection", c, "key", key, "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	e.metrics.Dropped(string(c), dropped)

	slices.SortFunc(recs, func(a, b record.Record) int {
		return strings.Compare(a.RecordID(), b.RecordID())
	})
	return recs
}

// DisconnectRemote tears down the remote connection and returns to local mode.
//
// Whatever is currently in memory becomes the local baseline and is persisted.
// The saved endpoint and credential are deleted and undelivered writes are
// discarded. Calling DisconnectRemote in local mode is a no-op.
func (e *Engine) DisconnectRemote(ctx context.Context) error {
	e.mu.Lock()
	if e.mode != ModeRemote {
		e.mu.Unlock()
		return nil
	}
	st, cancels := e.remote, e.cancels
	e.gen++
	e.remote = nil
	e.cancels = nil
	e.endpoint = ""
	e.mode = ModeLocal
	for _, c := range record.All() {
		e.persistLocked(ctx, c)
	}
	e.mu.Unlock()

	e.closeRemote(st, cancels)

	var errs []error
	if err := e.store.DeleteSetting(ctx, store.SettingRemoteCredential); err != nil {
		errs = append(errs, err)
	}
	if err := e.store.DeleteSetting(ctx, store.SettingRemoteEndpoint); err != nil {
		errs = append(errs, err)
	}
	n, err := e.store.DiscardPending(ctx)
	if err != nil {
		errs = append(errs, err)
	} else if n > 0 {
		e.logger.Warn("discarded undelivered remote writes", "count", n)
	}

	e.metrics.Disconnect()
	e.logger.Info("remote mode disabled")
	e.changes.Enqueue(Change{Kind: ChangeMode, Mode: ModeLocal})

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("disconnect remote: %w", err)
	}
	return nil
}

func (e *Engine) closeRemote(st remote.Store, cancels []func()) {
	for _, cancel := range cancels {
		cancel()
	}
	if st != nil {
		if err := st.Close(); err != nil {
			e.logger.Warn("closing remote store", "error", err)
		}
	}
}

func (e *Engine) copyDataLocked() map[record.Collection][]record.Record {
	out := make(map[record.Collection][]record.Record, len(e.data))
	for c, recs := range e.data {
		out[c] = recs
	}
	return out
}

// OnChange registers a listener and returns a func that unregisters it.
func (e *Engine) OnChange(l Listener) func() {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()

	id := e.nextListener
	e.nextListener++
	e.listeners[id] = l

	return func() {
		e.listenersMu.Lock()
		defer e.listenersMu.Unlock()
		delete(e.listeners, id)
	}
}

// Run starts the dispatch and outbox loops.
// Blocks until ctx is cancelled or Close is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "mode", e.Mode())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.runDispatch(gctx) })
	g.Go(func() error { return e.runOutbox(gctx) })
	return g.Wait()
}

func (e *Engine) runDispatch(ctx context.Context) error {
	for {
		if c, ok := e.changes.TryDequeue(); ok {
			e.dispatch(c)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("dispatch stopping: context cancelled")
			return ctx.Err()

		case <-e.changes.Wait():
			// The signal channel closes with the queue, so this also fires on Close.
			if e.changes.Len() == 0 {
				select {
				case <-e.done:
					e.logger.Info("dispatch stopping: engine closed")
					return nil
				default:
				}
			}
		}
	}
}

func (e *Engine) dispatch(c Change) {
	e.listenersMu.Lock()
	ids := make([]int, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, e.listeners[id])
	}
	e.listenersMu.Unlock()

	for _, l := range ls {
		l(c)
	}
}

// Close tears down any remote connection without forgetting the saved
// credential, and stops Run. The store is owned by the caller and stays open.
func (e *Engine) Close() error {
	e.mu.Lock()
	st, cancels := e.remote, e.cancels
	e.gen++
	e.remote = nil
	e.cancels = nil
	e.mu.Unlock()

	e.closeRemote(st, cancels)

	e.closeOnce.Do(func() {
		close(e.done)
		e.changes.Close()
	})
	return nil
}

// Mode returns the current backing mode.
func (e *Engine) Mode() Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// Endpoint returns the connected remote endpoint, or "" in local mode.
func (e *Engine) Endpoint() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.endpoint
}

// Snapshot returns the current records of c.
// The returned slice is shared and must not be modified.
func (e *Engine) Snapshot(c record.Collection) []record.Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.data[c]
}

// Find returns the record of c with the given id.
func (e *Engine) Find(c record.Collection, id string) (record.Record, bool) {
	for _, r := range e.Snapshot(c) {
		if r.RecordID() == id {
			return r, true
		}
	}
	return nil, false
}

// Dataset returns a typed view of every collection taken under one lock.
func (e *Engine) Dataset() record.Dataset {
	e.mu.RLock()
	snap := e.copyDataLocked()
	e.mu.RUnlock()
	return record.NewDataset(snap)
}

// All returns the records of c that have type T.
func All[T record.Record](e *Engine, c record.Collection) []T {
	recs := e.Snapshot(c)
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		if v, ok := r.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
