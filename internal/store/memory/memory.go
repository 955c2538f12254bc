// Package memory provides an in-process links.Store. Nothing survives a
// restart; it backs tests and throwaway deployments.
package memory

import (
	"context"
	"sync"

	"github.com/sundayezeilo/customlinks/internal/links"
)

type item struct {
	id      string
	payload map[string]any
}

// Store keeps the persisted payloads of the collection in memory.
type Store struct {
	mu    sync.RWMutex
	items []item
}

var _ links.Store = (*Store)(nil)

// New returns a store seeded with entries.
func New(entries ...links.Entry) *Store {
	s := &Store{}
	s.items = toItems(entries)
	return s
}

// Load decodes the stored payloads in order.
func (s *Store) Load(ctx context.Context) ([]links.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]links.Entry, 0, len(s.items))
	for _, it := range s.items {
		rec, err := links.DecodeRecord(it.payload)
		if err != nil {
			return nil, err
		}
		out = append(out, links.Entry{ID: it.id, Record: rec})
	}
	return out, nil
}

// Save replaces the collection.
func (s *Store) Save(ctx context.Context, entries []links.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	items := toItems(entries)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	return nil
}

// Len reports the number of stored links.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func toItems(entries []links.Entry) []item {
	items := make([]item, 0, len(entries))
	for _, e := range entries {
		items = append(items, item{id: e.ID, payload: e.Record.Payload()})
	}
	return items
}
