// Package backup archives the emulator's SQLite database together with the
// uploaded files as a tar.gz, and restores such an archive.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HerbHall/welfaredesk/internal/attachments"
)

// Archive layout.
const (
	dbEntry    = "emulator.db"
	filesDir   = "files/"
	contentKey = "WELFAREDESK.content_type"
)

// ErrTargetExists is returned by Restore when the database file exists and
// force is not set.
var ErrTargetExists = errors.New("backup: target database exists")

// Database is the part of the SQLite store a backup reads.
type Database interface {
	Checkpoint(ctx context.Context) error
	Path() string
}

// Summary counts what an archive holds.
type Summary struct {
	Files int
	Bytes int64
}

// Backup writes db and every file in files to w. The WAL is checkpointed
// first so the copied database file is complete.
func Backup(ctx context.Context, db Database, files attachments.Store, w io.Writer) (Summary, error) {
	var sum Summary
	path := db.Path()
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file::memory:") {
		return sum, errors.New("backup: cannot archive an in-memory database")
	}
	if err := db.Checkpoint(ctx); err != nil {
		return sum, fmt.Errorf("checkpoint: %w", err)
	}

	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	if err := addDatabase(tw, path); err != nil {
		return sum, fmt.Errorf("archive database: %w", err)
	}
	infos, err := files.List(ctx, "")
	if err != nil {
		return sum, fmt.Errorf("list files: %w", err)
	}
	for _, info := range infos {
		n, err := addFile(ctx, tw, files, info)
		if err != nil {
			return sum, fmt.Errorf("archive %s: %w", info.Key, err)
		}
		sum.Files++
		sum.Bytes += n
	}

	if err := tw.Close(); err != nil {
		return sum, err
	}
	return sum, gw.Close()
}

func addDatabase(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(st, "")
	if err != nil {
		return err
	}
	hdr.Name = dbEntry
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

func addFile(ctx context.Context, tw *tar.Writer, files attachments.Store, info attachments.Info) (int64, error) {
	info, rc, err := files.Get(ctx, info.Key)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	hdr := &tar.Header{
		Name:       filesDir + info.Key,
		Mode:       0o644,
		Size:       info.Size,
		ModTime:    info.LastModified,
		Format:     tar.FormatPAX,
		PAXRecords: map[string]string{contentKey: info.ContentType},
	}
	if hdr.ModTime.IsZero() {
		hdr.ModTime = time.Now()
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return 0, err
	}
	return io.Copy(tw, rc)
}

// Restore unpacks an archive written by Backup: the database to dbPath and
// the files into files. With force, an existing database and clashing file
// keys are replaced.
func Restore(ctx context.Context, r io.Reader, dbPath string, files attachments.Store, force bool) (Summary, error) {
	var sum Summary
	if _, err := os.Stat(dbPath); err == nil && !force {
		return sum, fmt.Errorf("%w: %s", ErrTargetExists, dbPath)
	}

	gr, err := gzip.NewReader(r)
	if err != nil {
		return sum, fmt.Errorf("open archive: %w", err)
	}
	defer gr.Close()
	tr := tar.NewReader(gr)

	sawDB := false
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("read archive: %w", err)
		}
		switch {
		case hdr.Name == dbEntry:
			if err := writeDatabase(tr, dbPath); err != nil {
				return sum, fmt.Errorf("restore database: %w", err)
			}
			sawDB = true
		case strings.HasPrefix(hdr.Name, filesDir):
			key := strings.TrimPrefix(hdr.Name, filesDir)
			if err := restoreFile(ctx, files, key, hdr.PAXRecords[contentKey], tr, force); err != nil {
				return sum, fmt.Errorf("restore %s: %w", key, err)
			}
			sum.Files++
			sum.Bytes += hdr.Size
		default:
			return sum, fmt.Errorf("restore: unexpected archive entry %q", hdr.Name)
		}
	}
	if !sawDB {
		return sum, fmt.Errorf("restore: archive has no %s", dbEntry)
	}
	return sum, nil
}

// writeDatabase replaces dbPath atomically and drops stale WAL files.
func writeDatabase(r io.Reader, dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dbPath), ".restore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return os.Rename(tmp.Name(), dbPath)
}

func restoreFile(ctx context.Context, files attachments.Store, key, contentType string, r io.Reader, force bool) error {
	if err := attachments.ValidateKey(key); err != nil {
		return err
	}
	if force {
		if _, err := files.Delete(ctx, key); err != nil {
			return err
		}
	}
	_, err := files.Put(ctx, key, r, contentType)
	return err
}
