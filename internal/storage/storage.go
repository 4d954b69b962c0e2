// Package storage keeps uploaded images and converted outputs.
//
// Two backends implement Storage:
//   - LocalStorage: a directory on disk (UPLOAD_DIR / OUTPUT_DIR)
//   - R2Storage: a Cloudflare R2 bucket, one key prefix per area
//
// Keys are produced by ObjectKey as "{conversionID}/{filename}" and are
// written once. Retention deletes them; nothing rewrites them.
package storage

import (
	"context"
	"io"
	"path"
	"strings"
)

// Storage is one area (uploads or outputs) of the object store.
type Storage interface {
	// Put writes data under key and reports what was stored. An existing
	// key is ErrKeyExists. If opts.MaxSize is set and data is longer,
	// nothing is kept and ErrTooLarge is returned.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) (Object, error)

	// Stat reports the stored object, or ErrNotFound.
	Stat(ctx context.Context, key string) (Object, error)

	// Delete removes the object. A missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// PutOptions configures a write.
type PutOptions struct {
	// ContentType is detected from the key's extension when empty.
	ContentType string

	// MaxSize in bytes; 0 means no limit.
	MaxSize int64
}

// Object describes a stored file.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory, created if absent.
	// Example: "static/uploads"
	BasePath string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// Prefix is prepended to every key so uploads and outputs can share
	// a bucket. Example: "uploads"
	Prefix string

	// Region is required by the AWS SDK. R2 accepts "auto".
	Region string
}

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// ObjectKey builds the key for one file of a conversion.
//
// filename must already be sanitized; any directory part is stripped again
// here so a key can never point outside its conversion.
func ObjectKey(conversionID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		name = "file"
	}
	return conversionID + "/" + name
}

// checkKey rejects keys that ObjectKey could not have produced: empty,
// absolute, backslashed or climbing out with "..".
func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
