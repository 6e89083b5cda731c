package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"video-studio/internal/models"
	"video-studio/internal/storage"
)

var _ storage.Artifacts = (*storage.FileStore)(nil)
var _ storage.Artifacts = (*storage.MinioStore)(nil)

func TestFileStore_RoundTrip(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key, err := store.Put(ctx, "/videos/1/output/clip.mp4", []byte("mp4"), "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, "videos/1/output/clip.mp4", key)

	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "mp4", string(data))

	path, err := store.Path(key)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.NoError(t, store.Delete(ctx, key))
}

func TestFileStore_RejectsTraversal(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Write(context.Background(), "../outside.txt", []byte("x"))
	assert.ErrorContains(t, err, "invalid key")

	_, err = store.Write(context.Background(), "  ", []byte("x"))
	assert.ErrorContains(t, err, "key is required")
}

func TestFileStore_RemoveAll(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Write(ctx, "videos/9/images/a.jpg", []byte("a"))
	require.NoError(t, err)
	_, err = store.Write(ctx, "videos/9/audio/b.mp3", []byte("b"))
	require.NoError(t, err)

	require.NoError(t, store.RemoveAll("videos/9"))
	_, err = os.Stat(filepath.Join(dir, "videos", "9"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileStore_CancelledContext(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Write(ctx, "a.txt", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewMinioStore_RejectsEndpointWithPath(t *testing.T) {
	_, err := storage.NewMinioStore("localhost:9000/videos", "key", "secret", "videos", false)
	assert.Error(t, err)
}

func TestNewMinioStore(t *testing.T) {
	store, err := storage.NewMinioStore("localhost:9000", "key", "secret", "videos", false)
	require.NoError(t, err)
	assert.NotNil(t, store)
}
