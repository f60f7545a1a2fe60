package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	BucketDocuments = "documents"
	BucketVectors   = "vectors"
)

var ErrUnknownBucket = errors.New("unknown storage bucket")

type Storage interface {
	Upload(ctx context.Context, bucket, path string, data io.Reader) (string, error)
	Delete(ctx context.Context, bucket, path string) error
	LocalPath(bucket, path string) (string, error)
}

// LocalStorage keeps each bucket in its own directory on the local disk.
type LocalStorage struct {
	buckets map[string]string
}

// NewLocalStorage creates the bucket directories if they do not exist.
func NewLocalStorage(buckets map[string]string) (*LocalStorage, error) {
	dirs := make(map[string]string, len(buckets))
	for name, dir := range buckets {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", name, err)
		}
		dirs[name] = dir
	}
	return &LocalStorage{buckets: dirs}, nil
}

// Dir returns the directory backing bucket.
func (s *LocalStorage) Dir(bucket string) (string, error) {
	dir, ok := s.buckets[bucket]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
	}
	return dir, nil
}

func (s *LocalStorage) LocalPath(bucket, path string) (string, error) {
	dir, err := s.Dir(bucket)
	if err != nil {
		return "", err
	}
	clean := filepath.Clean("/" + path)
	if clean == "/" || strings.Contains(path, "..") {
		return "", fmt.Errorf("invalid object path %q", path)
	}
	return filepath.Join(dir, clean), nil
}

// Upload writes data to a temporary file in the bucket and renames it into
// place. It returns the stored file path.
func (s *LocalStorage) Upload(ctx context.Context, bucket, path string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dest, err := s.LocalPath(bucket, path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("move object into place: %w", err)
	}

	return dest, nil
}

func (s *LocalStorage) Delete(ctx context.Context, bucket, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := s.LocalPath(bucket, path)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
