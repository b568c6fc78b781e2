package minio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/naufalaziz23/piplinee/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
)

func TestStorageIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	endpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	storage, err := NewStorage(StorageConfig{
		Endpoint:     endpoint,
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		UploadBucket: "uploads",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBucket(ctx))
	require.NoError(t, storage.EnsureBucket(ctx))

	dir := t.TempDir()
	src := filepath.Join(dir, "clip.avi")
	require.NoError(t, os.WriteFile(src, []byte("not really an avi"), 0o644))
	require.NoError(t, storage.PutVideo(ctx, "user/clip.avi", src, "video/x-msvideo"))

	t.Run("resolves and downloads", func(t *testing.T) {
		in, err := storage.Input(ctx, "user/clip.avi")
		require.NoError(t, err)
		assert.Equal(t, entity.ContainerAVI, in.Container())

		dest := filepath.Join(dir, "input.avi")
		require.NoError(t, in.SaveTo(ctx, dest))
		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "not really an avi", string(data))
	})

	t.Run("missing object", func(t *testing.T) {
		_, err := storage.Input(ctx, "user/missing.mp4")
		assert.True(t, entity.IsUploadError(err))
	})

	t.Run("empty key", func(t *testing.T) {
		_, err := storage.Input(ctx, "")
		assert.True(t, entity.IsUploadError(err))
	})

	t.Run("unsupported content", func(t *testing.T) {
		notes := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(notes, []byte("hello"), 0o644))
		require.NoError(t, storage.PutVideo(ctx, "user/notes.txt", notes, "text/plain"))

		_, err := storage.Input(ctx, "user/notes.txt")
		assert.True(t, entity.IsUploadError(err))
	})
}
