package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStorage(t *testing.T) (*LocalStorage, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewLocalStorage(LocalConfig{BasePath: dir}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s, dir
}

func TestLocalStorage_PutStatDelete(t *testing.T) {
	s, dir := newTestLocalStorage(t)
	ctx := context.Background()
	key := ObjectKey("abc", "photo.png")

	obj, err := s.Put(ctx, key, strings.NewReader("png-bytes"), PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, Object{Key: key, Size: 9, ContentType: "image/png"}, obj)

	body, err := os.ReadFile(filepath.Join(dir, "abc", "photo.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))

	stat, err := s.Stat(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, obj, stat)

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Stat(ctx, key)
	assert.True(t, IsNotFound(err))
	assert.NoDirExists(t, filepath.Join(dir, "abc"))

	assert.NoError(t, s.Delete(ctx, key), "deleting a missing object is not an error")
}

func TestLocalStorage_KeysAreWrittenOnce(t *testing.T) {
	s, dir := newTestLocalStorage(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "k/a.pdf", strings.NewReader("one"), PutOptions{ContentType: "application/pdf"})
	require.NoError(t, err)

	_, err = s.Put(ctx, "k/a.pdf", strings.NewReader("two"), PutOptions{})
	assert.True(t, IsKeyExists(err))

	body, err := os.ReadFile(filepath.Join(dir, "k", "a.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(body))

	entries, err := os.ReadDir(filepath.Join(dir, "k"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLocalStorage_PutTooLargeLeavesNothing(t *testing.T) {
	s, dir := newTestLocalStorage(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "big/file.bin", bytes.NewReader(make([]byte, 11)), PutOptions{MaxSize: 10})
	assert.True(t, IsTooLarge(err))

	entries, err := os.ReadDir(filepath.Join(dir, "big"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s, _ := newTestLocalStorage(t)
	ctx := context.Background()

	for _, key := range []string{"", "../escape.txt", "a/../../escape.txt", "/etc/passwd", `a\..\b`, "a//b"} {
		_, err := s.Put(ctx, key, strings.NewReader("x"), PutOptions{})
		assert.True(t, IsInvalidKey(err), "key %q should be rejected", key)
	}

	err := s.Delete(ctx, "../escape.txt")
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ProviderLocal, se.Backend)
	assert.Equal(t, "delete", se.Op)
}

func TestLocalStorage_StatDirectoryIsInvalid(t *testing.T) {
	s, _ := newTestLocalStorage(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "conv/out.png", strings.NewReader("x"), PutOptions{})
	require.NoError(t, err)

	_, err = s.Stat(ctx, "conv")
	assert.True(t, IsInvalidKey(err))
}

func TestLocalStorage_CanceledContext(t *testing.T) {
	s, _ := newTestLocalStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Put(ctx, "k/a.png", strings.NewReader("x"), PutOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "id/photo.png", ObjectKey("id", "photo.png"))
	assert.Equal(t, "id/passwd", ObjectKey("id", "../../etc/passwd"))
	assert.Equal(t, "id/evil.png", ObjectKey("id", `..\..\evil.png`))
	assert.Equal(t, "id/file", ObjectKey("id", ".."))
	assert.Equal(t, "id/file", ObjectKey("id", ""))
	assert.NoError(t, checkKey(ObjectKey("id", "my photo.png")))
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", DetectContentType("", "a/b.JPG"))
	assert.Equal(t, "application/pdf", DetectContentType("", "x.pdf"))
	assert.Equal(t, "text/custom", DetectContentType("text/custom", "x.pdf"))
	assert.Equal(t, "application/octet-stream", DetectContentType("", "noext"))
}
