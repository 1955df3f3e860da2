package redisremote

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/remote"
)

func TestDialer_InvalidEndpoint(t *testing.T) {
	dial := NewDialer("", nil)

	_, err := dial(context.Background(), "not a url", "")
	assert.ErrorIs(t, err, remote.ErrInvalidEndpoint)

	_, err = dial(context.Background(), "http://localhost:6379", "")
	assert.ErrorIs(t, err, remote.ErrInvalidEndpoint)
}

func TestDialer_Unreachable(t *testing.T) {
	dial := NewDialer("", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := dial(ctx, "redis://127.0.0.1:1/0", "")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, remote.ErrInvalidEndpoint)
}

// Requires a running Redis; set FISHSYNC_TEST_REDIS_URL to enable.
func TestRedis_SetRemoveSubscribe(t *testing.T) {
	url := os.Getenv("FISHSYNC_TEST_REDIS_URL")
	if url == "" {
		t.Skip("FISHSYNC_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	ns := "fishsync-test-" + uuid.NewString()

	dial := NewDialer(ns, nil)
	st, err := dial(ctx, url, "")
	require.NoError(t, err)
	defer st.Close()

	var (
		mu   sync.Mutex
		last remote.Snapshot
		n    int
	)
	cancel, err := st.Subscribe(ctx, "events", func(s remote.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		last = s
		n++
	})
	require.NoError(t, err)
	defer cancel()

	mu.Lock()
	assert.Equal(t, 1, n)
	assert.Empty(t, last)
	mu.Unlock()

	require.NoError(t, st.Set(ctx, "events", "e1", json.RawMessage(`{"id":"e1"}`)))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		_, ok := last["e1"]
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, st.Remove(ctx, "events", "e1"))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(last) == 0
	}, 5*time.Second, 20*time.Millisecond)
}
