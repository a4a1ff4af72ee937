package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/liliang-cn/medbrief/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]KeyValueStore {
	t.Helper()
	dir := t.TempDir()

	sqliteStore, err := Open(config.StoreConfig{Driver: DriverSQLite, Path: filepath.Join(dir, "kv.db")})
	require.NoError(t, err)
	badgerStore, err := Open(config.StoreConfig{Driver: DriverBadger, Path: filepath.Join(dir, "badger")})
	require.NoError(t, err)
	memoryStore, err := Open(config.StoreConfig{Driver: DriverMemory})
	require.NoError(t, err)

	stores := map[string]KeyValueStore{
		DriverSQLite: sqliteStore,
		DriverBadger: badgerStore,
		DriverMemory: memoryStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestKeyValueStores(t *testing.T) {
	ctx := context.Background()

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrKeyNotFound)

			require.NoError(t, store.Set(ctx, "records", []byte(`"first"`)))
			require.NoError(t, store.Set(ctx, "records", []byte(`"second"`)))

			got, err := store.Get(ctx, "records")
			require.NoError(t, err)
			assert.Equal(t, `"second"`, string(got))

			require.NoError(t, store.Delete(ctx, "records"))
			_, err = store.Get(ctx, "records")
			assert.ErrorIs(t, err, ErrKeyNotFound)

			// Deleting twice is fine
			assert.NoError(t, store.Delete(ctx, "records"))
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(config.StoreConfig{Driver: "etcd"})
	assert.Error(t, err)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	db, err := NewDB(path)
	require.NoError(t, err)
	store := NewSQLiteStore(db)
	require.NoError(t, store.Set(ctx, "records", []byte(`"kept"`)))
	require.NoError(t, store.Close())

	db, err = NewDB(path)
	require.NoError(t, err)
	store = NewSQLiteStore(db)
	defer store.Close()

	got, err := store.Get(ctx, "records")
	require.NoError(t, err)
	assert.Equal(t, `"kept"`, string(got))
}
