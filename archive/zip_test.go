package archive

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readZip(t *testing.T, data []byte) map[string]*zip.File {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		files[f.Name] = f
	}
	return files
}

func content(t *testing.T, f *zip.File) string {
	t.Helper()
	rc, err := f.Open()
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestBuffer_RoundTrip(t *testing.T) {
	z := NewBuffer()
	require.NoError(t, z.Create("images/1.png", []byte("PNGDATA")))
	require.NoError(t, z.Create("metadata/1", []byte(`{"name":"Foo #1"}`)))
	assert.Equal(t, 2, z.Entries())

	_, err := z.Bytes()
	assert.ErrorIs(t, err, ErrNotClosed)

	require.NoError(t, z.Finalize())
	data, err := z.Bytes()
	require.NoError(t, err)

	files := readZip(t, data)
	require.Len(t, files, 2)
	assert.Equal(t, zip.Store, files["images/1.png"].Method)
	assert.Equal(t, zip.Deflate, files["metadata/1"].Method)
	assert.Equal(t, "PNGDATA", content(t, files["images/1.png"]))
	assert.Equal(t, `{"name":"Foo #1"}`, content(t, files["metadata/1"]))
}

func TestZip_FinalizeOnce(t *testing.T) {
	z := NewBuffer()
	require.NoError(t, z.Finalize())
	assert.ErrorIs(t, z.Finalize(), ErrClosed)
	assert.ErrorIs(t, z.Create("late", nil), ErrClosed)
	assert.NoError(t, z.Discard())
}

func TestZip_DiscardedBufferCannotFinalize(t *testing.T) {
	z := NewBuffer()
	require.NoError(t, z.Create("metadata/1", []byte("{}")))
	require.NoError(t, z.Discard())
	assert.ErrorIs(t, z.Finalize(), ErrClosed)
	_, err := z.Bytes()
	assert.ErrorIs(t, err, ErrNotClosed)
}

func TestFile_AppearsOnlyAfterFinalize(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out", "collection.zip")

	z, err := Create(dest)
	require.NoError(t, err)
	assert.Equal(t, dest, z.Path())
	require.NoError(t, z.Create("images/1.jpg", []byte("JPEG")))

	_, err = os.Stat(dest)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, z.Finalize())
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	files := readZip(t, data)
	assert.Equal(t, "JPEG", content(t, files["images/1.jpg"]))

	left, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, left, 1, "temporary file left behind")
}

func TestFile_DiscardLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	z, err := Create(filepath.Join(dir, "collection.zip"))
	require.NoError(t, err)
	require.NoError(t, z.Create("metadata/1", []byte("{}")))
	require.NoError(t, z.Discard())

	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestWithModTime_Reproducible(t *testing.T) {
	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	build := func() []byte {
		z := NewBuffer(WithModTime(stamp))
		require.NoError(t, z.Create("images/1.png", []byte("a")))
		require.NoError(t, z.Create("metadata/1", []byte("b")))
		require.NoError(t, z.Finalize())
		data, err := z.Bytes()
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, build(), build())
}
