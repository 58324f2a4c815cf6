// Package store holds entity records in memory, keyed by (type, id).
//
// The store is the only shared mutable resource in the engine. Operations
// on independent ids are fully independent; two concurrent writers to the
// same id race, and the last write to complete wins. Enumeration never
// fails under concurrent mutation; it returns a weakly consistent
// snapshot taken under a read lock.
package store

import (
	"sync"

	"github.com/google/uuid"

	"github.com/crmock/crmock/internal/record"
)

// Store is a thread-safe set of per-type collections.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*Collection
}

// New creates an empty store.
func New() *Store {
	return &Store{collections: make(map[string]*Collection)}
}

// Collection returns the collection for an entity type, creating it on
// first use.
func (s *Store) Collection(entityType string) *Collection {
	s.mu.RLock()
	c, ok := s.collections[entityType]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[entityType]; ok {
		return c
	}
	c = &Collection{rows: make(map[uuid.UUID]*record.Entity)}
	s.collections[entityType] = c
	return c
}

// Upsert inserts or replaces the record at (entityType, id).
func (s *Store) Upsert(entityType string, id uuid.UUID, e *record.Entity) {
	s.Collection(entityType).Upsert(id, e)
}

// Remove deletes the record at (entityType, id), reporting whether it
// existed.
func (s *Store) Remove(entityType string, id uuid.UUID) bool {
	return s.Collection(entityType).Remove(id)
}

// TryGet returns the record at (entityType, id), if present.
func (s *Store) TryGet(entityType string, id uuid.UUID) (*record.Entity, bool) {
	return s.Collection(entityType).TryGet(id)
}

// Enumerate returns a snapshot of all records of a type. The snapshot is
// weakly consistent with respect to concurrent writers.
func (s *Store) Enumerate(entityType string) []*record.Entity {
	return s.Collection(entityType).Enumerate()
}

// Collection is the id → entity map for one type.
type Collection struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*record.Entity
}

// Upsert inserts or replaces a slot. Slot replacement is atomic; there is
// no merge with any previous value.
func (c *Collection) Upsert(id uuid.UUID, e *record.Entity) {
	c.mu.Lock()
	c.rows[id] = e
	c.mu.Unlock()
}

// Remove deletes a slot, reporting whether it existed.
func (c *Collection) Remove(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rows[id]; !ok {
		return false
	}
	delete(c.rows, id)
	return true
}

// TryGet returns the record in a slot, if present.
func (c *Collection) TryGet(id uuid.UUID) (*record.Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.rows[id]
	return e, ok
}

// Enumerate returns a snapshot slice of the current records.
func (c *Collection) Enumerate() []*record.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*record.Entity, 0, len(c.rows))
	for _, e := range c.rows {
		out = append(out, e)
	}
	return out
}

// Len returns the number of records in the collection.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}
