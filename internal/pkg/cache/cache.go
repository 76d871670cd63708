// Package cache provides a small key/value cache with in-memory and Redis backends.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss indicates the key was not found or has expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the caching operations used by the services.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Noop is a Cache that never stores anything.
type Noop struct{}

// Get always misses.
func (Noop) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }

// Set does nothing.
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Delete does nothing.
func (Noop) Delete(context.Context, string) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }
