// Package memory is an in-process db.Store backed by an expiring LRU.
package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ShikharMathco/merck-agentic-poc/internal/db"
)

// Compile-time checks.
var (
	_ db.Store       = (*Store)(nil)
	_ db.MultiGetter = (*Store)(nil)
)

// Store keeps at most size entries; entries expire after ttl (0 = never).
type Store struct {
	lru *expirable.LRU[string, []byte]
}

// NewStore creates a bounded in-memory store.
func NewStore(size int, ttl time.Duration) *Store {
	return &Store{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close drops every entry.
func (s *Store) Close() { s.lru.Purge() }

// Get returns a copy of the stored value.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.lru.Get(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

// GetMany returns copies of the stored values; absent keys yield nil.
func (s *Store) GetMany(_ context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if v, ok := s.lru.Get(k); ok {
			out[i] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

// Set stores a copy of value using the store-wide ttl.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.lru.Add(key, append([]byte(nil), value...))
	return nil
}

// SetWithTTL stores value; per-key ttl is not supported and the store-wide ttl applies.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, _ time.Duration) error {
	return s.Set(ctx, key, value)
}

// Len returns the number of live entries.
func (s *Store) Len() int { return s.lru.Len() }
