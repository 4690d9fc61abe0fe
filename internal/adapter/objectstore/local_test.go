package objectstore

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/energy-forecast/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_PutGetDeleteList(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(filepath.Join(t.TempDir(), "objects"))
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "forecast/prediction.parquet", []byte("p"), "application/octet-stream"))
	require.NoError(t, store.Put(ctx, "forecast/input.parquet", []byte("i"), "application/octet-stream"))
	require.NoError(t, store.Put(ctx, "training_datasets/view_1/version_1.csv", []byte("a,b\n"), "text/csv"))

	data, err := store.Get(ctx, "forecast/prediction.parquet")
	require.NoError(t, err)
	assert.Equal(t, []byte("p"), data)

	keys, err := store.List(ctx, "forecast/")
	require.NoError(t, err)
	assert.Equal(t, []string{"forecast/input.parquet", "forecast/prediction.parquet"}, keys)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, store.Delete(ctx, "forecast/input.parquet"))
	_, err = store.Get(ctx, "forecast/input.parquet")
	assert.ErrorIs(t, err, ErrNotExist)
	assert.ErrorIs(t, store.Delete(ctx, "forecast/input.parquet"), ErrNotExist)
}

func TestLocal_RejectsEscapingKeys(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../outside", "a/../../outside", ""} {
		_, err := store.Get(context.Background(), key)
		assert.Error(t, err, "key %q", key)
		assert.NotErrorIs(t, err, ErrNotExist, "key %q", key)
	}
}

func TestOpen_Local(t *testing.T) {
	cfg := &config.Config{ObjectStore: config.ObjectStoreLocal, LocalObjectDir: t.TempDir()}

	store, err := Open(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &Local{}, store)
	assert.NoError(t, Close(store))
}

func TestOpen_Unknown(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{ObjectStore: "ftp"}, slog.Default())
	assert.EqualError(t, err, `unknown object store "ftp"`)
}
