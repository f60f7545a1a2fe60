package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) (*LocalStorage, string) {
	t.Helper()
	root := t.TempDir()
	s, err := NewLocalStorage(map[string]string{
		BucketDocuments: filepath.Join(root, "documents"),
	})
	require.NoError(t, err)
	return s, root
}

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, root := newTestStorage(t)

	path, err := s.Upload(ctx, BucketDocuments, "abc.txt", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "documents", "abc.txt"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))

	entries, err := os.ReadDir(filepath.Join(root, "documents"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	require.NoError(t, s.Delete(ctx, BucketDocuments, "abc.txt"))
	assert.NoFileExists(t, path)
}

func TestLocalStorage_UnknownBucket(t *testing.T) {
	s, _ := newTestStorage(t)

	_, err := s.Upload(context.Background(), "nope", "a.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnknownBucket)
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s, _ := newTestStorage(t)

	_, err := s.LocalPath(BucketDocuments, "../escape.txt")
	assert.Error(t, err)
}
