package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/welfaredesk/pkg/models"
	"go.uber.org/zap"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveRequest(_, _, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func formEntity() *models.Entity {
	return &models.Entity{Name: "reports", Endpoint: "manageReports.php", PayloadKey: "reports", Encoding: models.EncodingForm, FileField: "filePath"}
}

func jsonEntity() *models.Entity {
	return &models.Entity{Name: "users", Endpoint: "manageUsers.php", PayloadKey: "users", Encoding: models.EncodingJSON, WriteOnly: []string{"password"}}
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/admin/php", zap.NewNop(), opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClient_RejectsBadScheme(t *testing.T) {
	if _, err := NewClient("ftp://example.com/", zap.NewNop()); err == nil {
		t.Error("NewClient(ftp://...) error = nil, want error")
	}
}

func TestFetchAll_FormEncoding(t *testing.T) {
	var gotPath, gotAction string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		gotAction = r.FormValue("action")
		_, _ = io.WriteString(w, `{"success":true,"data":[{"id":1,"title":"Q1"},{"id":2,"title":"Q2"}]}`)
	})

	recs, err := c.FetchAll(context.Background(), formEntity())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if gotPath != "/admin/php/manageReports.php" {
		t.Errorf("path = %q, want /admin/php/manageReports.php", gotPath)
	}
	if gotAction != ActionFetch {
		t.Errorf("action = %q, want %q", gotAction, ActionFetch)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}
	if id := recs[1].ID(); id != "2" {
		t.Errorf("recs[1].ID() = %q, want 2", id)
	}
}

func TestFetchAll_PayloadKeyFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"users":[{"id":"7","username":"ana"}]}`)
	})
	recs, err := c.FetchAll(context.Background(), jsonEntity())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(recs) != 1 || recs[0].ID() != "7" {
		t.Errorf("recs = %v, want one record with id 7", recs)
	}
}

func TestDo_JSONEncoding(t *testing.T) {
	var body map[string]string
	var contentType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{"success":true,"id":12}`)
	})

	rec, err := c.Save(context.Background(), jsonEntity(), map[string]string{"username": "ana", "password": "s3cret"}, nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", contentType)
	}
	if body["action"] != ActionSave || body["username"] != "ana" {
		t.Errorf("body = %v, want action=save username=ana", body)
	}
	if rec.ID() != "12" {
		t.Errorf("rec.ID() = %q, want 12", rec.ID())
	}
	if _, ok := rec["password"]; ok {
		t.Error("returned record carries write-only password")
	}
}

func TestSave_FileForcesMultipart(t *testing.T) {
	var gotName string
	var gotSize int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		f, hdr, err := r.FormFile("avatar")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		gotName, gotSize = hdr.Filename, len(data)
		_, _ = io.WriteString(w, `{"success":true,"data":{"id":3,"username":"ana"}}`)
	})

	file := &File{Field: "avatar", Name: "ana.png", ContentType: "image/png", Data: []byte("pngdata")}
	rec, err := c.Save(context.Background(), jsonEntity(), map[string]string{"username": "ana"}, file)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if gotName != "ana.png" || gotSize != 7 {
		t.Errorf("upload = %q/%d, want ana.png/7", gotName, gotSize)
	}
	if rec.ID() != "3" {
		t.Errorf("rec.ID() = %q, want 3", rec.ID())
	}
}

func TestUpdate_SendsID(t *testing.T) {
	var gotID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		gotID = r.FormValue("id")
		_, _ = io.WriteString(w, `{"success":true,"message":"updated"}`)
	})
	rec, err := c.Update(context.Background(), formEntity(), "44", map[string]string{"title": "Annual"}, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if gotID != "44" {
		t.Errorf("id sent = %q, want 44", gotID)
	}
	if rec.ID() != "44" || rec["title"] != "Annual" {
		t.Errorf("rec = %v, want id 44 title Annual", rec)
	}
}

func TestDo_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		outcome string
		message string
	}{
		{"business", http.StatusOK, `{"success":false,"message":"Title already exists"}`, "rejected", "Title already exists"},
		{"business on 400", http.StatusBadRequest, `{"success":false,"message":"bad"}`, "rejected", "bad"},
		{"malformed", http.StatusOK, `<html>oops</html>`, "malformed", "The server returned an invalid response. Please try again."},
		{"missing flag", http.StatusOK, `{"data":[]}`, "malformed", "The server returned an invalid response. Please try again."},
		{"server error", http.StatusInternalServerError, `Internal Server Error`, "transport", "Could not reach the server. Check your connection and try again."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			obs := &recordingObserver{}
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}, WithObserver(obs))

			_, err := c.Do(context.Background(), Request{Entity: formEntity(), Action: ActionFetch})
			if err == nil {
				t.Fatal("Do() error = nil, want error")
			}
			if got := Outcome(err); got != tc.outcome {
				t.Errorf("Outcome = %q, want %q", got, tc.outcome)
			}
			if got := UserMessage(err); got != tc.message {
				t.Errorf("UserMessage = %q, want %q", got, tc.message)
			}
			if len(obs.outcomes) != 1 || obs.outcomes[0] != tc.outcome {
				t.Errorf("observer outcomes = %v, want [%s]", obs.outcomes, tc.outcome)
			}
		})
	}
}

func TestDo_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := NewClient(base, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.FetchAll(context.Background(), formEntity())
	if !errors.Is(err, ErrTransport) {
		t.Errorf("FetchAll error = %v, want ErrTransport", err)
	}
}

func TestDo_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = io.WriteString(w, `{"success":true,"data":[]}`)
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	_, err := c.FetchAll(context.Background(), formEntity())
	if !errors.Is(err, ErrTransport) {
		t.Errorf("FetchAll error = %v, want ErrTransport", err)
	}
}

func TestNextIDAndGetByID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		switch r.FormValue("action") {
		case ActionNextID:
			_, _ = io.WriteString(w, `{"success":true,"nextId":19}`)
		case ActionGetByID:
			_, _ = io.WriteString(w, `{"success":true,"data":{"id":`+r.FormValue("id")+`,"title":"T"}}`)
		default:
			_, _ = io.WriteString(w, `{"success":false,"message":"unknown action"}`)
		}
	})
	ctx := context.Background()

	next, err := c.NextID(ctx, formEntity())
	if err != nil || next != "19" {
		t.Errorf("NextID = %q, %v; want 19, nil", next, err)
	}
	rec, err := c.GetByID(ctx, formEntity(), "5")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec.ID() != "5" {
		t.Errorf("GetByID id = %q, want 5", rec.ID())
	}
	var be *BusinessError
	if err := c.Delete(ctx, formEntity(), "5"); !errors.As(err, &be) {
		t.Errorf("Delete error = %v, want BusinessError", err)
	}
}
