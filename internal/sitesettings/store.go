package sitesettings

import (
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/JakeFAU/site-shields/internal/hostpattern"
)

// Store maps host patterns to site settings records. It is an immutable value:
// every mutator returns a new Store and leaves the receiver untouched, so a Store
// may be shared freely between goroutines. The zero Store is empty.
//
// Only the entry map is copied on write; records are never mutated in place, so
// unchanged records are shared between versions.
type Store struct {
	entries map[string]Record
}

// NewStore builds a Store from a pattern-to-record map. Inputs are copied.
func NewStore(entries map[string]Record) Store {
	s := Store{entries: make(map[string]Record, len(entries))}
	for pattern, rec := range entries {
		s.entries[hostpattern.NormalizePattern(pattern)] = rec.Clone()
	}
	return s
}

func (s Store) lookup(pattern string) (Record, bool) {
	rec, ok := s.entries[pattern]
	return rec, ok
}

func (s Store) withEntries() map[string]Record {
	out := make(map[string]Record, len(s.entries)+1)
	maps.Copy(out, s.entries)
	return out
}

// Get returns a copy of the record stored for the exact pattern.
func (s Store) Get(pattern string) (Record, bool) {
	rec, ok := s.lookup(hostpattern.NormalizePattern(pattern))
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// SetAll replaces the whole record for pattern.
func (s Store) SetAll(pattern string, rec Record) Store {
	entries := s.withEntries()
	if rec == nil {
		rec = Record{}
	}
	entries[hostpattern.NormalizePattern(pattern)] = rec.Clone()
	return Store{entries: entries}
}

// MergeOne sets key on the record for pattern, creating the record when needed
// and preserving its other keys.
func (s Store) MergeOne(pattern, key string, v Value) Store {
	pattern = hostpattern.NormalizePattern(pattern)
	entries := s.withEntries()
	entries[pattern] = entries[pattern].With(key, v)
	return Store{entries: entries}
}

// Remove deletes every setting stored for pattern.
func (s Store) Remove(pattern string) Store {
	pattern = hostpattern.NormalizePattern(pattern)
	if _, ok := s.entries[pattern]; !ok {
		return s
	}
	entries := s.withEntries()
	delete(entries, pattern)
	return Store{entries: entries}
}

// RemoveKey deletes a single key from the record for pattern. The (possibly
// empty) record itself is kept.
func (s Store) RemoveKey(pattern, key string) Store {
	pattern = hostpattern.NormalizePattern(pattern)
	rec, ok := s.entries[pattern]
	if !ok {
		return s
	}
	entries := s.withEntries()
	entries[pattern] = rec.Without(key)
	return Store{entries: entries}
}

// ClearKey deletes key from every record in the store.
func (s Store) ClearKey(key string) Store {
	entries := make(map[string]Record, len(s.entries))
	for pattern, rec := range s.entries {
		if _, ok := rec[key]; ok {
			rec = rec.Without(key)
		}
		entries[pattern] = rec
	}
	return Store{entries: entries}
}

// MergeDeep merges other into s record by record; other's keys win.
func (s Store) MergeDeep(other Store) Store {
	if other.Len() == 0 {
		return s
	}
	entries := s.withEntries()
	for pattern, rec := range other.entries {
		if base, ok := entries[pattern]; ok {
			entries[pattern] = base.Merge(rec)
			continue
		}
		entries[pattern] = rec
	}
	return Store{entries: entries}
}

// Len returns the number of patterns with stored records.
func (s Store) Len() int {
	return len(s.entries)
}

// Patterns returns the stored patterns in sorted order.
func (s Store) Patterns() []string {
	return slices.Sorted(maps.Keys(s.entries))
}

// All yields every pattern and a copy of its record in sorted pattern order.
func (s Store) All() iter.Seq2[string, Record] {
	return func(yield func(string, Record) bool) {
		for _, pattern := range s.Patterns() {
			if !yield(pattern, s.entries[pattern].Clone()) {
				return
			}
		}
	}
}

// Equal reports whether both stores hold the same patterns and records.
func (s Store) Equal(other Store) bool {
	return maps.EqualFunc(s.entries, other.entries, Record.Equal)
}

// MarshalJSON encodes the store as {pattern: {key: primitive}}.
func (s Store) MarshalJSON() ([]byte, error) {
	entries := s.entries
	if entries == nil {
		entries = map[string]Record{}
	}
	out, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal site settings: %w", err)
	}
	return out, nil
}

// UnmarshalJSON decodes {pattern: {key: primitive}}.
func (s *Store) UnmarshalJSON(data []byte) error {
	var entries map[string]Record
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("unmarshal site settings: %w", err)
	}
	*s = NewStore(entries)
	return nil
}
