// Package store keeps annotated batch results for later download.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned for unknown or expired keys.
var ErrNotFound = errors.New("store: not found")

// Store is a byte-value store with per-entry expiry.
type Store interface {
	Name() string
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend   string // "memory" or "redis"
	RedisAddr string
	RedisDB   int
}

// New opens the configured backend. The redis backend is pinged before
// returning.
func New(ctx context.Context, o Options) (Store, error) {
	switch o.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		s, err := NewRedisStore(ctx, o.RedisAddr, o.RedisDB)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", o.Backend)
	}
}
