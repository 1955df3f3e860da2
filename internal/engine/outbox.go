package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/remote"
	"github.com/pavel-vrtal-ict/rybari-registrace/internal/store"
)

func (e *Engine) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retryInterval
	b.MaxInterval = e.maxBackoff
	b.MaxElapsedTime = 0 // dead-lettering bounds retries, not elapsed time
	b.Reset()
	return b
}

// runOutbox delivers queued remote writes until ctx is cancelled or the
// engine is closed.
//
// Entries are delivered strictly in queue order. When the head entry fails,
// the loop backs off exponentially and retries the same entry; later entries
// wait behind it so a remove never overtakes the set it follows.
func (e *Engine) runOutbox(ctx context.Context) error {
	b := e.newBackoff()
	for {
		wait := e.retryInterval
		kick := e.kick

		err := e.drainOnce(ctx)
		switch {
		case err == nil:
			b.Reset()
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrNotConnected):
			// Nothing to do until a remote is configured.
		default:
			wait = b.NextBackOff()
			kick = nil // new writes queue behind the failing one anyway
			e.logger.Warn("remote write failed, retrying", "in", wait, "error", err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-e.done:
			timer.Stop()
			return nil
		case <-kick:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// drainOnce delivers pending entries until the outbox is empty or an entry
// fails without being dead-lettered.
//
// Returns nil when the outbox is empty, ErrNotConnected when entries are
// pending but no remote is connected, and the delivery error otherwise.
func (e *Engine) drainOnce(ctx context.Context) error {
	e.drainMu.Lock()
	defer e.drainMu.Unlock()

	for {
		entries, err := e.store.Pending(ctx, outboxBatch)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		e.mu.RLock()
		st := e.remote
		e.mu.RUnlock()
		if st == nil {
			return ErrNotConnected
		}

		for _, entry := range entries {
			err := e.deliver(ctx, st, entry)
			if err == nil {
				if err := e.store.MarkDelivered(ctx, entry.ID); err != nil {
					return err
				}
				e.metrics.Delivered(entry.Collection)
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			dead, ferr := e.recordFailure(ctx, entry, err)
			if ferr != nil {
				return ferr
			}
			if !dead {
				return fmt.Errorf("deliver %s %s/%s: %w", entry.Op, entry.Collection, entry.RecordID, err)
			}
		}
	}
}

func (e *Engine) deliver(ctx context.Context, st remote.Store, entry store.OutboxEntry) error {
	wctx, cancel := context.WithTimeout(ctx, e.writeTimeout)
	defer cancel()

	switch entry.Op {
	case store.OpSet:
		return st.Set(wctx, entry.Collection, entry.RecordID, entry.Payload)
	case store.OpRemove:
		return st.Remove(wctx, entry.Collection, entry.RecordID)
	default:
		return fmt.Errorf("unknown outbox op %q", entry.Op)
	}
}

// recordFailure counts a failed attempt and dead-letters the entry once it
// has used all its attempts. Reports whether the entry was dead-lettered.
func (e *Engine) recordFailure(ctx context.Context, entry store.OutboxEntry, cause error) (bool, error) {
	e.metrics.Failed(entry.Collection)

	attempts, err := e.store.MarkAttempt(ctx, entry.ID, cause)
	if err != nil {
		return false, err
	}
	if attempts < e.maxAttempts {
		return false, nil
	}

	if err := e.store.MarkDead(ctx, entry.ID); err != nil {
		return false, err
	}
	e.metrics.Dead(entry.Collection)
	e.logger.Error("remote write dead-lettered",
		"collection", entry.Collection,
		"id", entry.RecordID,
		"op", entry.Op,
		"attempts", attempts,
		"error", cause,
	)
	e.changes.Enqueue(Change{
		Kind:       ChangeWriteFailed,
		Collection: record.Collection(entry.Collection),
		RecordID:   entry.RecordID,
		Err: &WriteFailedError{
			Collection: entry.Collection,
			RecordID:   entry.RecordID,
			Attempts:   attempts,
			Err:        cause,
		},
	})
	return true, nil
}

// Flush delivers every pending remote write, retrying failures with backoff.
//
// Used by one-shot commands that exit right after a mutation. Returns nil
// once the outbox is empty, ErrNotConnected when writes are pending in local
// mode, and the last delivery error when retries run out.
func (e *Engine) Flush(ctx context.Context) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(e.newBackoff(), uint64(e.maxAttempts)), ctx)
	return backoff.Retry(func() error {
		err := e.drainOnce(ctx)
		if errors.Is(err, ErrNotConnected) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// PendingWrites returns the number of remote writes not yet delivered.
func (e *Engine) PendingWrites(ctx context.Context) (int, error) {
	return e.store.PendingCount(ctx)
}
