package idgen

import (
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// DefaultBase62Length gives 62^8 possible suffixes.
	DefaultBase62Length = 8
)

type base62Gen struct {
	prefix     string
	length     int
	maxRetries int
}

// NewBase62 returns a Generator producing <prefix><length random base62
// characters>. Taken ids are retried up to maxRetries extra times.
func NewBase62(prefix string, length, maxRetries int) Generator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if length <= 0 {
		length = DefaultBase62Length
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &base62Gen{prefix: prefix, length: length, maxRetries: maxRetries}
}

func (g *base62Gen) Next(_ int, taken func(string) bool) (string, error) {
	var last error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		suffix, err := randomBase62(g.length)
		if err != nil {
			last = err
			continue
		}
		id := g.prefix + suffix
		if taken != nil && taken(id) {
			last = fmt.Errorf("generated id %s already taken", id)
			continue
		}
		return id, nil
	}
	return "", fmt.Errorf("base62 id generation failed after %d attempts: %w", g.maxRetries+1, last)
}

func randomBase62(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = base62Chars[int(b[i])%len(base62Chars)]
	}
	return string(b), nil
}
