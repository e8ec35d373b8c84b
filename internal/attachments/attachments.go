// Package attachments stores files uploaded with records (images, PDFs)
// behind a small S3-like interface.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Driver names a storage backend.
type Driver string

const (
	DriverMemory     Driver = "memory"
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

var (
	// ErrNotFound is returned for a missing key.
	ErrNotFound = errors.New("attachments: not found")
	// ErrExists is returned when putting over an existing key.
	ErrExists = errors.New("attachments: key already exists")
	// ErrUnsupported is returned for capabilities a driver lacks.
	ErrUnsupported = errors.New("attachments: unsupported operation")
)

// Info describes a stored file.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the attachment backend.
type Store interface {
	// Put stores r at key. It fails with ErrExists if key is taken.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns the files under prefix ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	// URL returns a link the admin pages can use to fetch key.
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Driver() Driver
}

// NewKey builds a unique key for an upload of entity named filename, e.g.
// "advisories/3f2a…/flood.png".
func NewKey(entity, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" || base == "" {
		base = "file"
	}
	return entity + "/" + uuid.NewString() + "/" + base
}

// ValidateKey rejects empty, absolute and traversing keys.
func ValidateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return fmt.Errorf("attachments: empty key")
	case strings.HasPrefix(key, "/"):
		return fmt.Errorf("attachments: absolute key %q", key)
	case strings.Contains(key, ".."):
		return fmt.Errorf("attachments: key %q contains '..'", key)
	}
	return nil
}
