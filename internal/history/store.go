// Package history holds per-user event history with embeddings and answers
// nearest-neighbor queries scoped by exact metadata match.
package history

import (
	"fmt"
	"sort"
	"sync"

	"phalanx/internal/embedding"
	"phalanx/internal/schema"
)

// StoreError wraps an embedding or backend failure. Callers degrade the
// novelty check when they see one; it never aborts a whole evaluation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("history %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Filter restricts a nearest-neighbor query to entries whose metadata
// matches exactly.
type Filter struct {
	UserID    string
	EventType string
}

// Neighbor is one nearest-neighbor result.
type Neighbor struct {
	Distance float64
	Event    *schema.Event
	Document string
}

type record struct {
	vector   []float32
	document string
	event    *schema.Event
}

// Store is an in-memory vector store over event history. Brute-force cosine
// scan; histories in this system are small enough that an index would not
// pay for itself. Safe for concurrent readers with a serialized writer.
type Store struct {
	mu       sync.RWMutex
	embedder embedding.Embedder
	scheme   string
	entries  map[string]*record
}

// NewStore creates a Store bound to one embedder. The embedder's scheme is
// pinned at construction: vectors computed under any other scheme must never
// enter this store.
func NewStore(e embedding.Embedder) *Store {
	return &Store{
		embedder: e,
		scheme:   e.Scheme(),
		entries:  make(map[string]*record),
	}
}

// Scheme returns the embedding scheme this store was built with.
func (s *Store) Scheme() string {
	return s.scheme
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Insert embeds and stores the given events, returning how many were stored.
// Synthetic ids are "{user_id}-{timestamp}-{index}"; a duplicate id silently
// overwrites the earlier entry. Each event becomes visible to readers
// atomically; a query running concurrently never observes a half-written
// entry. Fails only if the embedder fails.
func (s *Store) Insert(events []*schema.Event) (int, error) {
	if s.embedder.Scheme() != s.scheme {
		return 0, &StoreError{Op: "insert", Err: fmt.Errorf("embedding scheme changed from %q to %q", s.scheme, s.embedder.Scheme())}
	}

	count := 0
	for i, ev := range events {
		doc := ev.Serialize()
		vec, err := s.embedder.Embed(doc)
		if err != nil {
			return count, &StoreError{Op: "insert", Err: err}
		}

		id := fmt.Sprintf("%s-%s-%d", ev.UserID, ev.Timestamp, i)
		rec := &record{vector: vec, document: doc, event: ev.Clone()}

		s.mu.Lock()
		s.entries[id] = rec
		s.mu.Unlock()
		count++
	}
	return count, nil
}

// QueryNearest embeds the query event with the same serialization used at
// insert time and returns up to k neighbors matching the filter, ordered by
// ascending distance. No matching entries is an empty result, not an error.
func (s *Store) QueryNearest(ev *schema.Event, k int, filter Filter) ([]Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}

	vec, err := s.embedder.Embed(ev.Serialize())
	if err != nil {
		return nil, &StoreError{Op: "query", Err: err}
	}

	s.mu.RLock()
	matches := make([]Neighbor, 0, k)
	for _, rec := range s.entries {
		if rec.event.UserID != filter.UserID || rec.event.EventType != filter.EventType {
			continue
		}
		matches = append(matches, Neighbor{
			Distance: embedding.CosineDistance(vec, rec.vector),
			Event:    rec.event,
			Document: rec.document,
		})
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}
