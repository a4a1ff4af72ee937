package repository

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps values in process memory. Nothing survives a restart.
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: cache.New(cache.NoExpiration, 0)}
}

// Get retrieves a copy of the value stored under key
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if x, found := s.cache.Get(key); found {
		value := x.([]byte)
		out := make([]byte, len(value))
		copy(out, value)
		return out, nil
	}
	return nil, ErrKeyNotFound
}

// Set stores a copy of value under key
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	s.cache.Set(key, stored, cache.NoExpiration)
	return nil
}

// Delete removes a key
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// Close drops every value
func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}
