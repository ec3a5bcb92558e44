// Package store holds the normalized entity table for one active
// subscription: at most one record per (kind, id), fed exclusively through
// Merge. Mutation is single-writer (the owning paginator); reads are safe
// from any goroutine and always return copies.
package store

import (
	"sync"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/model"
)

// record wraps an entity with its tombstone flag. Deletions are explicit:
// absence of a key means "never seen", a removed record means "deleted".
type record struct {
	ent     model.Entity
	removed bool
}

// Store is the in-memory entity table.
type Store struct {
	mu      sync.RWMutex
	records map[model.Key]*record
}

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[model.Key]*record)}
}

// Merge upserts deltas by (kind, id) with field-level merge, marking
// tombstones where a delta says so. Records are never removed implicitly.
// It returns the keys the batch touched so narrow observers can filter.
func (s *Store) Merge(deltas []model.Delta) []model.Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make([]model.Key, 0, len(deltas))
	for _, d := range deltas {
		key := d.Key()

		rec, ok := s.records[key]
		if !ok {
			ent, err := model.NewEntity(key.Kind, key.ID)
			if err != nil {
				continue
			}
			rec = &record{ent: ent}
			s.records[key] = rec
		}

		if d.Removed {
			rec.removed = true
			touched = append(touched, key)
			continue
		}
		if d.Entity == nil {
			continue
		}

		// An update after a tombstone revives the record: the backend said
		// it exists again, and last delivered wins.
		rec.removed = false
		rec.ent.MergeFrom(d.Entity)
		touched = append(touched, key)
	}
	return touched
}

// Clear empties the store atomically. Used when a fresh subscription replaces
// a previous one, so nothing leaks across lifecycles.
func (s *Store) Clear() {
	s.mu.Lock()
	s.records = make(map[model.Key]*record)
	s.mu.Unlock()
}

// Get returns a copy of a live record. ok is false for unknown and for
// tombstoned records.
func (s *Store) Get(kind model.Kind, id string) (model.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[model.Key{Kind: kind, ID: id}]
	if !ok || rec.removed {
		return nil, false
	}
	return rec.ent.Clone(), true
}

// All returns copies of every live record of a kind.
func (s *Store) All(kind model.Kind) []model.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Entity
	for key, rec := range s.records {
		if key.Kind != kind || rec.removed {
			continue
		}
		out = append(out, rec.ent.Clone())
	}
	return out
}

// Contains reports whether the store tracks the id at all, tombstoned or not.
func (s *Store) Contains(kind model.Kind, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[model.Key{Kind: kind, ID: id}]
	return ok
}

// IsRemoved reports whether the record exists as a tombstone.
func (s *Store) IsRemoved(kind model.Kind, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[model.Key{Kind: kind, ID: id}]
	return ok && rec.removed
}

// Len returns the number of live records of a kind.
func (s *Store) Len(kind model.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for key, rec := range s.records {
		if key.Kind == kind && !rec.removed {
			n++
		}
	}
	return n
}
