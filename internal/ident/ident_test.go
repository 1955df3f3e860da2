package ident

import (
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_Format(t *testing.T) {
	id := UUIDv7Generator{}.NewID()

	assert.Len(t, id, 36)
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	const goroutines = 50
	const perGoroutine = 200

	var (
		mu   sync.Mutex
		seen = make(map[string]bool, goroutines*perGoroutine)
		wg   sync.WaitGroup
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := UUIDv7Generator{}.NewID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestUUIDv7Generator_SortsByCreation(t *testing.T) {
	g := UUIDv7Generator{}
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = g.NewID()
	}

	assert.True(t, sort.StringsAreSorted(ids), "uuidv7 ids generated in sequence should sort lexically")
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")

	assert.Equal(t, "a", g.NewID())
	assert.Equal(t, "b", g.NewID())
	assert.Panics(t, func() { g.NewID() })
}

func TestSequenceGenerator(t *testing.T) {
	g := NewSequenceGenerator("ev")

	assert.Equal(t, "ev-000001", g.NewID())
	assert.Equal(t, "ev-000002", g.NewID())
}
