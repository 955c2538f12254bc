package idgen

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// DefaultPrefix is prepended to every generated link id.
const DefaultPrefix = "custom_link_"

// Generator produces link ids that are unused in the current collection.
// size is the number of links currently held; taken reports whether an id
// is already assigned. Callers serialise calls to Next with their writes.
type Generator interface {
	Next(size int, taken func(id string) bool) (string, error)
}

// Scheme selects an id generation strategy.
type Scheme string

const (
	Sequential Scheme = "sequential"
	UUID       Scheme = "uuid"
	Base62     Scheme = "base62"
)

// ParseScheme validates a scheme name.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case Sequential, UUID, Base62:
		return Scheme(s), nil
	default:
		return "", fmt.Errorf("unknown id scheme %q (must be one of: sequential, uuid, base62)", s)
	}
}

/***************
 * Sequential
 ***************/

type sequentialGen struct {
	prefix string
}

// NewSequential returns a Generator producing <prefix><n>. The search starts
// at size+1 and walks upward until an unused suffix is found, so gaps left by
// deletions never cause a collision.
func NewSequential(prefix string) Generator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return sequentialGen{prefix: prefix}
}

func (g sequentialGen) Next(size int, taken func(string) bool) (string, error) {
	if size < 0 {
		size = 0
	}
	// At most size ids can be taken, so size+1 probes always find a free one.
	for n := size + 1; n <= 2*size+1; n++ {
		id := g.prefix + strconv.Itoa(n)
		if taken == nil || !taken(id) {
			return id, nil
		}
	}
	return "", errors.New("no free sequential id")
}

/***************
 * UUID v7
 ***************/

type uuidGen struct {
	prefix     string
	maxRetries int
}

type UUIDOption func(*uuidGen)

// WithRetries sets how many extra attempts are made when uuid.NewV7 fails or
// yields an id that is already taken. Defaults to 1. Set to 0 to disable retries.
func WithRetries(n int) UUIDOption {
	return func(g *uuidGen) {
		if n >= 0 {
			g.maxRetries = n
		}
	}
}

// NewUUID returns a Generator producing <prefix><uuid v7>.
func NewUUID(prefix string, opts ...UUIDOption) Generator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	g := &uuidGen{prefix: prefix, maxRetries: 1}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *uuidGen) Next(_ int, taken func(string) bool) (string, error) {
	var last error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		u, err := uuid.NewV7()
		if err != nil {
			last = err
			continue
		}
		id := g.prefix + u.String()
		if taken != nil && taken(id) {
			last = fmt.Errorf("generated id %s already taken", id)
			continue
		}
		return id, nil
	}
	return "", fmt.Errorf("uuid id generation failed after %d attempts: %w", g.maxRetries+1, last)
}

// New returns a Generator for the requested scheme. Unknown schemes fall back
// to Sequential.
func New(scheme Scheme, prefix string) Generator {
	switch scheme {
	case UUID:
		return NewUUID(prefix)
	case Base62:
		return NewBase62(prefix, DefaultBase62Length, 3)
	default:
		return NewSequential(prefix)
	}
}
