package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/liliang-cn/medbrief/internal/config"
)

// ErrKeyNotFound is returned by Get when a key holds no value
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore is the raw storage contract behind the session mirror
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Store drivers
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverMemory = "memory"
)

// Open creates the key-value store selected by cfg.Driver
func Open(cfg config.StoreConfig) (KeyValueStore, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		db, err := NewDB(cfg.Path)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(db), nil
	case DriverBadger:
		return NewBadgerStore(cfg.Path)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}
