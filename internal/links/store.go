package links

import "context"

// Store is the host configuration store holding the link collection.
// Load returns the entries in their persisted order. Save replaces the whole
// collection and flushes it to durable storage before returning; a failed
// Save must leave the previously persisted collection readable.
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
}

// Service defines the operations exposed over the link collection.
type Service interface {
	List(ctx context.Context, q Query) []Entry
	Get(ctx context.Context, id string) (Entry, error)
	NavLinks(ctx context.Context) []Entry
	MenuLinks(ctx context.Context) []Entry
	Add(ctx context.Context, fields Fields) (string, error)
	Update(ctx context.Context, id string, overrides Fields) (Entry, error)
	Delete(ctx context.Context, id string) (bool, error)
}
