package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalStorage keeps objects as files under a base directory, one
// subdirectory per conversion.
type LocalStorage struct {
	basePath string
	logger   *slog.Logger
}

// NewLocalStorage resolves and creates the base directory.
func NewLocalStorage(cfg LocalConfig, logger *slog.Logger) (*LocalStorage, error) {
	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	logger.Info("initialized local storage", "base_path", absPath)

	return &LocalStorage{basePath: absPath, logger: logger}, nil
}

// Put writes to a temp file and hard-links it into place. The link fails
// when the key exists, so a reader never sees a partial file and an
// existing object is never replaced.
func (s *LocalStorage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	filePath, err := s.resolve(key)
	if err != nil {
		return Object{}, s.fail("put", key, err)
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Object{}, s.fail("put", key, fmt.Errorf("create directory: %w", err))
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return Object{}, s.fail("put", key, fmt.Errorf("create temp file: %w", err))
	}
	defer os.Remove(tmp.Name())

	src := data
	if opts.MaxSize > 0 {
		src = io.LimitReader(data, opts.MaxSize+1)
	}
	written, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Object{}, s.fail("put", key, fmt.Errorf("write: %w", err))
	}
	if opts.MaxSize > 0 && written > opts.MaxSize {
		return Object{}, s.fail("put", key, ErrTooLarge)
	}

	if err := os.Link(tmp.Name(), filePath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Object{}, s.fail("put", key, ErrKeyExists)
		}
		return Object{}, s.fail("put", key, fmt.Errorf("link into place: %w", err))
	}

	obj := Object{Key: key, Size: written, ContentType: DetectContentType(opts.ContentType, key)}
	s.logger.Debug("stored file", "key", key, "size", written, "content_type", obj.ContentType)
	return obj, nil
}

// Stat reports the file at key.
func (s *LocalStorage) Stat(ctx context.Context, key string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	filePath, err := s.resolve(key)
	if err != nil {
		return Object{}, s.fail("stat", key, err)
	}

	info, err := os.Stat(filePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Object{}, s.fail("stat", key, ErrNotFound)
	case err != nil:
		return Object{}, s.fail("stat", key, err)
	case info.IsDir():
		return Object{}, s.fail("stat", key, ErrInvalidKey)
	}
	return Object{Key: key, Size: info.Size(), ContentType: DetectContentType("", key)}, nil
}

// Delete removes the file and then its conversion directory if that is
// now empty.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filePath, err := s.resolve(key)
	if err != nil {
		return s.fail("delete", key, err)
	}

	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return s.fail("delete", key, err)
	}
	if dir := filepath.Dir(filePath); dir != s.basePath {
		_ = os.Remove(dir) // fails while other files remain
	}

	s.logger.Debug("deleted file", "key", key)
	return nil
}

// resolve maps a key to a path under basePath.
func (s *LocalStorage) resolve(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}

func (s *LocalStorage) fail(op, key string, err error) error {
	return &StorageError{Backend: ProviderLocal, Op: op, Key: key, Err: err}
}
