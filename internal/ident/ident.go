// Package ident generates opaque record identifiers.
//
// Identifiers are UUIDv7 strings: a millisecond timestamp in the most
// significant bits followed by random bits. Two clients only collide if they
// generate within the same millisecond and draw the same 74 random bits.
// Because the prefix is time-ordered, sorting identifiers lexically also sorts
// records by creation time, which the engine relies on to give snapshots a
// stable order.
package ident

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator produces identifiers for new records.
type Generator interface {
	NewID() string
}

// UUIDv7Generator is the production generator.
// It is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID returns a hyphenated UUIDv7 string.
//
// Panics if the system random source fails, which uuid only reports when
// crypto/rand is broken.
func (UUIDv7Generator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined identifiers, for tests and scenarios.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// NewID returns the next predetermined id.
//
// Panics once all ids have been consumed so a test that creates more records
// than it planned for fails loudly.
func (g *FixedGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// SequenceGenerator returns prefix-1, prefix-2, ... without ever running out.
// Used by the scenario harness where the number of records is not known up front.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator producing ids with the given prefix.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// NewID returns the next id in the sequence. Ids are zero padded so they sort
// in creation order, matching the UUIDv7 property.
func (g *SequenceGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%06d", g.prefix, g.n)
}
