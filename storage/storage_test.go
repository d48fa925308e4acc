package storage_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/storage"
)

var (
	_ session.CredentialStore = (*storage.MemoryStore)(nil)
	_ session.CredentialStore = (*storage.FileStore)(nil)
	_ session.CredentialStore = (*storage.RedisStore)(nil)
	_ session.CredentialStore = (*storage.BunStore)(nil)
)

func assertCredentialSlot(t *testing.T, store session.CredentialStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok, "fresh store must report absence")

	require.NoError(t, store.Set(ctx, "token", "tok-123"))
	value, ok, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-123", value)

	require.NoError(t, store.Set(ctx, "token", "tok-456"))
	value, ok, err = store.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-456", value)

	require.NoError(t, store.Delete(ctx, "token"))
	_, ok, err = store.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, "token"), "deleting an absent key is not an error")

	_, _, err = store.Get(ctx, "")
	assert.ErrorIs(t, err, storage.ErrEmptyKey)
	assert.ErrorIs(t, store.Set(ctx, "", "x"), storage.ErrEmptyKey)
	assert.ErrorIs(t, store.Delete(ctx, ""), storage.ErrEmptyKey)
}

func TestMemoryStore(t *testing.T) {
	assertCredentialSlot(t, storage.NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	assertCredentialSlot(t, storage.NewFileStore(path))
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.json")

	require.NoError(t, storage.NewFileStore(path).Set(ctx, "token", "tok-123"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	value, ok, err := storage.NewFileStore(path).Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-123", value)
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, _, err := storage.NewFileStore(path).Get(context.Background(), "token")
	require.Error(t, err)
	assert.Equal(t, storage.TextCodeStorageFailed, session.TextCode(err))

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryOperation, richErr.Category)
	assert.Equal(t, "file", richErr.Metadata["backend"])
	assert.Equal(t, path, richErr.Metadata["path"])
}

func TestDefaultFilePathUsesXDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	assert.Equal(t, filepath.Join(dir, "shell", "credentials.json"), storage.DefaultFilePath("shell"))
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore(t *testing.T) {
	_, client := newTestRedis(t)
	assertCredentialSlot(t, storage.NewRedisStore(client))
}

func TestRedisStorePrefixAndTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	store := storage.NewRedisStore(client, storage.WithRedisPrefix("app:"), storage.WithRedisTTL(time.Minute))
	require.NoError(t, store.Set(ctx, "token", "tok-123"))

	assert.True(t, mr.Exists("app:token"))
	assert.Equal(t, time.Minute, mr.TTL("app:token"))

	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, _, err = storage.NewRedisStore(client).Get(context.Background(), "token")
	require.Error(t, err)
	assert.True(t, session.HasTextCode(err, storage.TextCodeStorageFailed))
	assert.Equal(t, session.FailureUnreachable, session.ClassifyFailure(err))
}

func setupBunStore(t *testing.T) *storage.BunStore {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	store := storage.NewBunStore(db)
	require.NoError(t, store.CreateSchema(context.Background()))
	return store
}

func TestBunStore(t *testing.T) {
	assertCredentialSlot(t, setupBunStore(t))
}

func TestBunStoreCreateSchemaIsIdempotent(t *testing.T) {
	store := setupBunStore(t)
	require.NoError(t, store.CreateSchema(context.Background()))
}
