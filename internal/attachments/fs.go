package attachments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// metaSuffix marks the sidecar holding a file's metadata.
const metaSuffix = ".meta"

type fsMeta struct {
	ContentType string    `json:"content_type,omitempty"`
	ETag        string    `json:"etag"`
	Size        int64     `json:"size"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Filesystem stores attachments under a local directory with a JSON
// metadata sidecar per file.
type Filesystem struct {
	root string
}

// NewFilesystem returns a store rooted at root, creating the directory.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		root = "./uploads"
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create attachment root: %w", err)
	}
	return &Filesystem{root: root}, nil
}

func (f *Filesystem) Driver() Driver { return DriverFilesystem }

func (f *Filesystem) paths(key string) (data, meta string, err error) {
	if err := ValidateKey(key); err != nil {
		return "", "", err
	}
	data = filepath.Join(f.root, filepath.FromSlash(key))
	return data, data + metaSuffix, nil
}

func (f *Filesystem) Put(_ context.Context, key string, r io.Reader, contentType string) (Info, error) {
	dataPath, metaPath, err := f.paths(key)
	if err != nil {
		return Info{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return Info{}, fmt.Errorf("%w: %s", ErrExists, key)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o750); err != nil {
		return Info{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".upload-*")
	if err != nil {
		return Info{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Info{}, fmt.Errorf("write upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return Info{}, err
	}

	meta := fsMeta{ContentType: contentType, ETag: hex.EncodeToString(h.Sum(nil)), Size: size, UpdatedAt: time.Now().UTC()}
	b, err := json.Marshal(meta)
	if err != nil {
		return Info{}, err
	}
	if err := os.WriteFile(metaPath, b, 0o640); err != nil {
		return Info{}, err
	}
	return meta.info(key), nil
}

func (f *Filesystem) Get(ctx context.Context, key string) (Info, io.ReadCloser, error) {
	info, err := f.Head(ctx, key)
	if err != nil {
		return Info{}, nil, err
	}
	dataPath, _, _ := f.paths(key)
	file, err := os.Open(dataPath)
	if err != nil {
		return Info{}, nil, mapNotExist(err, key)
	}
	return info, file, nil
}

func (f *Filesystem) Head(_ context.Context, key string) (Info, error) {
	_, metaPath, err := f.paths(key)
	if err != nil {
		return Info{}, err
	}
	meta, err := readFSMeta(metaPath)
	if err != nil {
		return Info{}, mapNotExist(err, key)
	}
	return meta.info(key), nil
}

func (f *Filesystem) Delete(_ context.Context, key string) (bool, error) {
	dataPath, metaPath, err := f.paths(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(dataPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	_ = os.Remove(metaPath)
	return true, nil
}

func (f *Filesystem) List(_ context.Context, prefix string) ([]Info, error) {
	var out []Info
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(f.root, strings.TrimSuffix(p, metaSuffix))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		meta, err := readFSMeta(p)
		if err != nil {
			return err
		}
		out = append(out, meta.info(key))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// URL returns a path relative to the admin server's attachment route.
func (f *Filesystem) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return "/files/" + key, nil
}

func (m fsMeta) info(key string) Info {
	return Info{Key: key, Size: m.Size, ContentType: m.ContentType, ETag: m.ETag, LastModified: m.UpdatedAt}
}

func readFSMeta(p string) (fsMeta, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return fsMeta{}, err
	}
	var m fsMeta
	if err := json.Unmarshal(b, &m); err != nil {
		return fsMeta{}, fmt.Errorf("decode %s: %w", p, err)
	}
	return m, nil
}

func mapNotExist(err error, key string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return err
}
