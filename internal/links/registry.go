package links

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/sundayezeilo/customlinks/internal/errx"
	"github.com/sundayezeilo/customlinks/internal/idgen"
)

// snapshot is an immutable view of the collection. Mutations build a new
// snapshot and swap it in only after the store has saved it.
type snapshot struct {
	entries []Entry
	index   map[string]int
}

func newSnapshot(entries []Entry) snapshot {
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e.ID] = i
	}
	return snapshot{entries: entries, index: index}
}

func (s snapshot) has(id string) bool {
	_, ok := s.index[id]
	return ok
}

func (s snapshot) appended(e Entry) snapshot {
	return newSnapshot(append(slices.Clip(s.entries), e))
}

func (s snapshot) replaced(pos int, e Entry) snapshot {
	entries := slices.Clone(s.entries)
	entries[pos] = e
	return newSnapshot(entries)
}

func (s snapshot) removed(pos int) snapshot {
	return newSnapshot(slices.Delete(slices.Clone(s.entries), pos, pos+1))
}

// Registry is the in-memory, order-preserving mirror of the link collection.
// Reads run concurrently; each mutation holds exclusive access through
// validate, save and swap.
type Registry struct {
	mu        sync.RWMutex
	snap      snapshot
	store     Store
	validator *Validator
	ids       idgen.Generator
	logger    *slog.Logger
}

var _ Service = (*Registry)(nil)

// RegistryConfig holds optional collaborators for the registry.
type RegistryConfig struct {
	Validator   *Validator
	IDGenerator idgen.Generator
	Logger      *slog.Logger
}

// Open loads the collection from store and re-validates every entry.
func Open(ctx context.Context, store Store, config *RegistryConfig) (*Registry, error) {
	const op = "links.Open"

	if store == nil {
		return nil, errx.E(op, errx.Internal, errors.New("store is required"))
	}
	if config == nil {
		config = &RegistryConfig{}
	}

	v := config.Validator
	if v == nil {
		v = NewValidator(ValidatorConfig{DefaultActive: true})
	}
	ids := config.IDGenerator
	if ids == nil {
		ids = idgen.NewSequential(idgen.DefaultPrefix)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		return nil, errx.E(op, errx.Unavailable, err)
	}

	entries := make([]Entry, 0, len(loaded))
	seen := make(map[string]struct{}, len(loaded))
	for _, e := range loaded {
		if e.ID == "" {
			return nil, errx.E(op, errx.Invalid, errors.New("stored link has an empty id"))
		}
		if _, dup := seen[e.ID]; dup {
			return nil, errx.Errorf(op, errx.Invalid, "stored link %s appears more than once", e.ID)
		}
		seen[e.ID] = struct{}{}

		rec, err := v.Build(e.Record.Fields())
		if err != nil {
			return nil, errx.E(op, errx.Invalid, fmt.Errorf("stored link %s: %w", e.ID, err))
		}
		entries = append(entries, Entry{ID: e.ID, Record: rec})
	}

	logger.Info("link registry loaded", "links", len(entries))

	return &Registry{
		snap:      newSnapshot(entries),
		store:     store,
		validator: v,
		ids:       ids,
		logger:    logger,
	}, nil
}

// List returns the entries matching q in insertion order. It never fails;
// no match yields an empty slice.
func (r *Registry) List(_ context.Context, q Query) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.snap.entries))
	for _, e := range r.snap.entries {
		if q.Match(e) {
			out = append(out, e.clone())
		}
	}
	return out
}

// Get returns the entry with the given id.
func (r *Registry) Get(ctx context.Context, id string) (Entry, error) {
	const op = "links.registry.Get"

	matches := r.List(ctx, Query{ID: Exact(id)})
	switch len(matches) {
	case 0:
		return Entry{}, errx.Errorf(op, errx.NotFound, "link %q not found", id)
	case 1:
		return matches[0], nil
	default:
		return Entry{}, errx.Errorf(op, errx.Internal, "link %q matched %d entries", id, len(matches))
	}
}

// NavLinks returns the active links placed in the nav bar.
func (r *Registry) NavLinks(ctx context.Context) []Entry {
	return r.List(ctx, Query{Location: Exact(LocationNav), Active: Exact(true)})
}

// MenuLinks returns the active links placed in the menu.
func (r *Registry) MenuLinks(ctx context.Context) []Entry {
	return r.List(ctx, Query{Location: Exact(LocationMenu), Active: Exact(true)})
}

// Add validates fields, assigns a fresh id and persists the collection.
func (r *Registry) Add(ctx context.Context, fields Fields) (string, error) {
	const op = "links.registry.Add"

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.validator.Build(fields)
	if err != nil {
		return "", errx.E(op, errx.Invalid, err)
	}

	id, err := r.ids.Next(len(r.snap.entries), r.snap.has)
	if err != nil {
		return "", errx.E(op, errx.Internal, err)
	}
	if id == "" || r.snap.has(id) {
		return "", errx.Errorf(op, errx.Internal, "id generator returned unusable id %q", id)
	}

	if err := r.commit(ctx, op, r.snap.appended(Entry{ID: id, Record: rec})); err != nil {
		return "", err
	}

	r.logger.InfoContext(ctx, "link created",
		"link_id", id,
		"location", rec.Location,
		"active", rec.Active,
	)
	return id, nil
}

// Update merges overrides into the existing record and persists the result.
// On any failure the stored record is left untouched.
func (r *Registry) Update(ctx context.Context, id string, overrides Fields) (Entry, error) {
	const op = "links.registry.Update"

	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.snap.index[id]
	if !ok {
		return Entry{}, errx.Errorf(op, errx.NotFound, "link %q not found", id)
	}

	merged := r.snap.entries[pos].Record.Fields()
	maps.Copy(merged, overrides)

	rec, err := r.validator.Build(merged)
	if err != nil {
		return Entry{}, errx.E(op, errx.Invalid, err)
	}

	updated := Entry{ID: id, Record: rec}
	if err := r.commit(ctx, op, r.snap.replaced(pos, updated)); err != nil {
		return Entry{}, err
	}

	r.logger.InfoContext(ctx, "link updated",
		"link_id", id,
		"location", rec.Location,
		"active", rec.Active,
	)
	return updated.clone(), nil
}

// Delete removes the link. It reports false without error when the id is
// empty or unknown.
func (r *Registry) Delete(ctx context.Context, id string) (bool, error) {
	const op = "links.registry.Delete"

	if id == "" {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.snap.index[id]
	if !ok {
		return false, nil
	}

	if err := r.commit(ctx, op, r.snap.removed(pos)); err != nil {
		return false, err
	}

	r.logger.InfoContext(ctx, "link deleted", "link_id", id)
	return true, nil
}

// commit saves next and swaps it in. Callers hold the write lock.
func (r *Registry) commit(ctx context.Context, op string, next snapshot) error {
	if err := r.store.Save(ctx, next.entries); err != nil {
		r.logger.ErrorContext(ctx, "failed to persist links",
			"operation", op,
			"error", err.Error(),
		)
		return errx.E(op, errx.Unavailable, err)
	}
	r.snap = next
	return nil
}
