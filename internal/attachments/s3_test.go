package attachments

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeS3 serves the path-style subset of the S3 API the driver uses.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]fakeObject
}

type fakeObject struct {
	body        []byte
	contentType string
}

type listResult struct {
	XMLName     xml.Name      `xml:"ListBucketResult"`
	Name        string        `xml:"Name"`
	Prefix      string        `xml:"Prefix"`
	KeyCount    int           `xml:"KeyCount"`
	IsTruncated bool          `xml:"IsTruncated"`
	Contents    []listContent `xml:"Contents"`
}

type listContent struct {
	Key          string `xml:"Key"`
	Size         int    `xml:"Size"`
	ETag         string `xml:"ETag"`
	LastModified string `xml:"LastModified"`
}

var fakeModified = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/"+f.bucket)
	key := strings.TrimPrefix(path, "/")

	if r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2" {
		prefix := r.URL.Query().Get("prefix")
		res := listResult{Name: f.bucket, Prefix: prefix}
		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			res.Contents = append(res.Contents, listContent{
				Key: k, Size: len(f.objects[k].body), ETag: `"etag-` + k + `"`,
				LastModified: fakeModified.Format(time.RFC3339),
			})
		}
		res.KeyCount = len(keys)
		w.Header().Set("Content-Type", "application/xml")
		_ = xml.NewEncoder(w).Encode(res)
		return
	}

	obj, exists := f.objects[key]
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = fakeObject{body: body, contentType: r.Header.Get("Content-Type")}
		w.Header().Set("ETag", `"etag-`+key+`"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead, http.MethodGet:
		if !exists {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			}
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(obj.body)))
		w.Header().Set("Content-Type", obj.contentType)
		w.Header().Set("ETag", `"etag-`+key+`"`)
		w.Header().Set("Last-Modified", fakeModified.Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(obj.body)
		}
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeS3Store(t *testing.T) *S3 {
	t.Helper()
	fake := &fakeS3{bucket: "uploads", objects: map[string]fakeObject{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3(context.Background(), S3Config{
		Region:          "us-east-1",
		Bucket:          "uploads",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		PathStyle:       true,
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	return s
}

func TestS3(t *testing.T) {
	exerciseStore(t, newFakeS3Store(t))
}

func TestS3_PresignedURL(t *testing.T) {
	s := newFakeS3Store(t)
	u, err := s.URL(context.Background(), "news/x/photo.jpg", time.Minute)
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if !strings.Contains(u, "/uploads/news/x/photo.jpg") || !strings.Contains(u, "X-Amz-Expires=60") {
		t.Errorf("presigned URL = %q", u)
	}
}

func TestS3_RequiresBucket(t *testing.T) {
	if _, err := NewS3(context.Background(), S3Config{}); err == nil {
		t.Error("NewS3 without bucket error = nil")
	}
}
