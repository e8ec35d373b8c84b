package attachments

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// exerciseStore runs the behavior every driver shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	info, err := s.Put(ctx, "advisories/a/flood.png", bytes.NewReader([]byte("png-bytes")), "image/png")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != 9 || info.ContentType != "image/png" {
		t.Errorf("Put info = %+v", info)
	}

	if _, err := s.Put(ctx, "advisories/a/flood.png", strings.NewReader("x"), ""); !errors.Is(err, ErrExists) {
		t.Errorf("second Put error = %v, want ErrExists", err)
	}

	got, rc, err := s.Get(ctx, "advisories/a/flood.png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "png-bytes" || got.Size != 9 {
		t.Errorf("Get = %q (%d bytes)", data, got.Size)
	}

	if _, err := s.Head(ctx, "advisories/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Head(missing) error = %v, want ErrNotFound", err)
	}

	if _, err := s.Put(ctx, "reports/b/q1.pdf", bytes.NewReader([]byte("%PDF")), "application/pdf"); err != nil {
		t.Fatalf("Put second: %v", err)
	}
	list, err := s.List(ctx, "advisories/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Key != "advisories/a/flood.png" {
		t.Errorf("List(advisories/) = %+v", list)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 2 || all[0].Key > all[1].Key {
		t.Errorf("List() = %+v, want 2 sorted", all)
	}

	ok, err := s.Delete(ctx, "advisories/a/flood.png")
	if err != nil || !ok {
		t.Errorf("Delete = %v, %v; want true, nil", ok, err)
	}
	ok, err = s.Delete(ctx, "advisories/a/flood.png")
	if err != nil || ok {
		t.Errorf("Delete again = %v, %v; want false, nil", ok, err)
	}
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFilesystem(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	exerciseStore(t, fs)

	if u, _ := fs.URL(context.Background(), "reports/b/q1.pdf", 0); u != "/files/reports/b/q1.pdf" {
		t.Errorf("URL = %q", u)
	}
}

func TestValidateKey(t *testing.T) {
	for _, k := range []string{"", "  ", "/etc/passwd", "a/../../b"} {
		if ValidateKey(k) == nil {
			t.Errorf("ValidateKey(%q) = nil, want error", k)
		}
	}
	if err := ValidateKey("news/x/photo.jpg"); err != nil {
		t.Errorf("ValidateKey(valid) = %v", err)
	}
}

func TestNewKey(t *testing.T) {
	k := NewKey("news", `C:\Users\clerk\photo.jpg`)
	if !strings.HasPrefix(k, "news/") || !strings.HasSuffix(k, "/photo.jpg") {
		t.Errorf("NewKey = %q", k)
	}
	if NewKey("news", "photo.jpg") == k {
		t.Error("NewKey not unique")
	}
	if err := ValidateKey(k); err != nil {
		t.Errorf("NewKey produced invalid key: %v", err)
	}
}
