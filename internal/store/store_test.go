package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func raws(items ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, it := range items {
		out[i] = json.RawMessage(it)
	}
	return out
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"collections", "settings", "outbox"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found", table)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestLoad_NeverSaved(t *testing.T) {
	s := createTestStore(t)

	got := s.Load(context.Background(), "ryb_events")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	items := raws(`{"id":"a","name":"Jan"}`, `{"id":"b","n":[1,2,3]}`)
	require.NoError(t, s.Save(ctx, "ryb_entrants", items))

	got := s.Load(ctx, "ryb_entrants")
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"id":"a","name":"Jan"}`, string(got[0]))
	assert.JSONEq(t, `{"id":"b","n":[1,2,3]}`, string(got[1]))
}

func TestSave_Replaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "k", raws(`{"id":"a"}`, `{"id":"b"}`)))
	require.NoError(t, s.Save(ctx, "k", raws(`{"id":"c"}`)))

	got := s.Load(ctx, "k")
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"id":"c"}`, string(got[0]))
}

func TestSave_NilIsEmptyArray(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "k", nil))
	assert.Empty(t, s.Load(ctx, "k"))
}

func TestLoad_CorruptPayload(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, payload := range []string{`not json`, `{"id":"a"}`, `[{"id":`, `null`} {
		require.NoError(t, s.SaveRaw(ctx, "k", payload))
		got := s.Load(ctx, "k")
		assert.NotNil(t, got, "payload %q", payload)
		assert.Empty(t, got, "payload %q", payload)
	}
}

func TestLoad_ClosedDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), "k", raws(`{"id":"a"}`)))
	s.Close()

	assert.Empty(t, s.Load(context.Background(), "k"))
}

func TestSettings(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Setting(ctx, SettingRemoteCredential)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetSetting(ctx, SettingRemoteCredential, "one"))
	require.NoError(t, s.SetSetting(ctx, SettingRemoteCredential, "two"))

	v, ok, err := s.Setting(ctx, SettingRemoteCredential)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", v)

	require.NoError(t, s.DeleteSetting(ctx, SettingRemoteCredential))
	require.NoError(t, s.DeleteSetting(ctx, SettingRemoteCredential))
	_, ok, err = s.Setting(ctx, SettingRemoteCredential)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOutbox_FIFO(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id1, err := s.Enqueue(ctx, "events", "e1", OpSet, json.RawMessage(`{"id":"e1"}`))
	require.NoError(t, err)
	id2, err := s.Enqueue(ctx, "events", "e1", OpRemove, nil)
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	pending, err := s.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, OpSet, pending[0].Op)
	assert.JSONEq(t, `{"id":"e1"}`, string(pending[0].Payload))
	assert.Equal(t, OpRemove, pending[1].Op)
	assert.Nil(t, pending[1].Payload)

	require.NoError(t, s.MarkDelivered(ctx, id1))
	n, err := s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOutbox_AttemptsAndDeadLetter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.Enqueue(ctx, "catches", "c1", OpSet, json.RawMessage(`{"id":"c1"}`))
	require.NoError(t, err)

	attempts, err := s.MarkAttempt(ctx, id, errors.New("connection refused"))
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	attempts, err = s.MarkAttempt(ctx, id, errors.New("timeout"))
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	require.NoError(t, s.MarkDead(ctx, id))

	pending, err := s.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	dead, err := s.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, 2, dead[0].Attempts)
	assert.Equal(t, "timeout", dead[0].LastError)
}

func TestOutbox_DiscardPendingKeepsDead(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	dead, err := s.Enqueue(ctx, "events", "e1", OpSet, json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, s.MarkDead(ctx, dead))
	_, err = s.Enqueue(ctx, "events", "e2", OpSet, json.RawMessage(`{}`))
	require.NoError(t, err)

	n, err := s.DiscardPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	letters, err := s.DeadLetters(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, letters, 1)
}
