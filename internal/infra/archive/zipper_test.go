package archive

import (
	"archive/zip"
	"context"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/naufalaziz23/piplinee/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func readZip(t *testing.T, path string) map[string][]byte {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	out := map[string][]byte{}
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, zip.Deflate, f.Method)
		out[f.Name] = data
	}
	return out
}

func TestArchiverRoundTrip(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, entity.CollectionDirName)
	archivePath := filepath.Join(root, entity.ArchiveName)

	a := NewArchiver(90)
	require.NoError(t, a.Reset(dir))

	colors := []color.Color{color.RGBA{R: 255, A: 255}, color.RGBA{G: 255, A: 255}, color.RGBA{B: 255, A: 255}}
	for i, c := range colors {
		require.NoError(t, a.WriteFrame(dir, entity.FrameName(i+1), solid(c)))
	}

	require.NoError(t, a.PackageArchive(context.Background(), dir, archivePath))

	entries := readZip(t, archivePath)
	require.Len(t, entries, len(colors))

	for i := range colors {
		name := entity.FrameName(i + 1)
		onDisk, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)

		data, ok := entries[entity.CollectionDirName+"/"+name]
		require.True(t, ok, "missing %s", name)
		assert.Equal(t, onDisk, data)
	}
}

func TestArchiverResetDropsStaleFrames(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "frames")
	archivePath := filepath.Join(root, "out.zip")

	a := NewArchiver(80)
	require.NoError(t, a.Reset(dir))
	for i := 1; i <= 4; i++ {
		require.NoError(t, a.WriteFrame(dir, entity.FrameName(i), solid(color.White)))
	}

	require.NoError(t, a.Reset(dir))
	require.NoError(t, a.WriteFrame(dir, entity.FrameName(1), solid(color.Black)))
	require.NoError(t, a.PackageArchive(context.Background(), dir, archivePath))

	entries := readZip(t, archivePath)
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"frames/objek_1.jpg"}, names)
}

func TestArchiverWrittenFrameIsJPEG(t *testing.T) {
	dir := t.TempDir()
	a := NewArchiver(90)
	require.NoError(t, a.WriteFrame(dir, "objek_1.jpg", solid(color.White)))

	f, err := os.Open(filepath.Join(dir, "objek_1.jpg"))
	require.NoError(t, err)
	defer f.Close()

	_, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestArchiverWriteFrameIntoMissingDir(t *testing.T) {
	a := NewArchiver(90)
	err := a.WriteFrame(filepath.Join(t.TempDir(), "missing"), "objek_1.jpg", solid(color.White))
	require.Error(t, err)
	assert.True(t, entity.IsIOError(err))
}

func TestArchiverFailureLeavesNoArchive(t *testing.T) {
	root := t.TempDir()
	archivePath := filepath.Join(root, "out.zip")

	a := NewArchiver(90)
	err := a.PackageArchive(context.Background(), filepath.Join(root, "missing"), archivePath)
	require.Error(t, err)
	assert.True(t, entity.IsIOError(err))

	_, statErr := os.Stat(archivePath)
	assert.True(t, os.IsNotExist(statErr))

	leftovers, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range leftovers {
		assert.False(t, strings.HasPrefix(e.Name(), ".out.zip.tmp-"), "temp archive left behind: %s", e.Name())
	}
}

func TestArchiverHonoursCancellation(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "frames")
	a := NewArchiver(90)
	require.NoError(t, a.Reset(dir))
	require.NoError(t, a.WriteFrame(dir, "objek_1.jpg", solid(color.White)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.PackageArchive(ctx, dir, filepath.Join(root, "out.zip"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
