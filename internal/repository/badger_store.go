package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/timshannon/badgerhold/v4"
)

// kvRecord is the badgerhold value type for one slot
type kvRecord struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

// BadgerStore keeps key/value pairs in an embedded Badger database
type BadgerStore struct {
	store *badgerhold.Store
}

// NewBadgerStore opens (or creates) a Badger database in dir
func NewBadgerStore(dir string) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerStore{store: store}, nil
}

// Get retrieves a value by key
func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var rec kvRecord
	err := s.store.Get(key, &rec)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return rec.Value, nil
}

// Set inserts or replaces a value
func (s *BadgerStore) Set(ctx context.Context, key string, value []byte) error {
	rec := kvRecord{Key: key, Value: value, UpdatedAt: time.Now()}
	if err := s.store.Upsert(key, &rec); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// Delete removes a key; deleting a missing key is not an error
func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	err := s.store.Delete(key, &kvRecord{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// Close closes the database
func (s *BadgerStore) Close() error {
	return s.store.Close()
}
