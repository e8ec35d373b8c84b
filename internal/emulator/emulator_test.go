package emulator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/HerbHall/welfaredesk/internal/attachments"
	"github.com/HerbHall/welfaredesk/internal/endpoint"
	"github.com/HerbHall/welfaredesk/internal/testutil"
	"github.com/HerbHall/welfaredesk/pkg/models"
)

type harness struct {
	emu    *Emulator
	client *endpoint.Client
	files  *attachments.Memory
	url    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cat, err := models.DefaultCatalog()
	require.NoError(t, err)
	files := attachments.NewMemory()
	emu, err := New(context.Background(), testutil.NewStore(t), cat, files, testutil.Logger(),
		WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)

	srv := httptest.NewServer(emu.Handler())
	t.Cleanup(srv.Close)
	client, err := endpoint.NewClient(srv.URL, testutil.Logger())
	require.NoError(t, err)
	return &harness{emu: emu, client: client, files: files, url: srv.URL}
}

func TestEmulator_SaveFetchUpdateDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reports := testutil.Entity(t, "reports")

	next, err := h.client.NextID(ctx, reports)
	require.NoError(t, err)
	assert.Equal(t, "1", next)

	saved, err := h.client.Save(ctx, reports, map[string]string{
		"title": "Quarterly Report", "department": "Administration",
		"reportDate": "2025-03-31", "status": "pending",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "1", saved.ID())

	next, err = h.client.NextID(ctx, reports)
	require.NoError(t, err)
	assert.Equal(t, "2", next)

	_, err = h.client.Save(ctx, reports, map[string]string{
		"title": "Annual Report", "department": "Child Welfare", "reportDate": "2025-12-31",
	}, nil)
	require.NoError(t, err)

	recs, err := h.client.FetchAll(ctx, reports)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "2", recs[0].ID(), "newest first")

	updated, err := h.client.Update(ctx, reports, "1", map[string]string{"status": "approved"}, nil)
	require.NoError(t, err)
	status, _ := updated.String("status")
	title, _ := updated.String("title")
	assert.Equal(t, "approved", status)
	assert.Equal(t, "Quarterly Report", title, "unsent fields are kept")

	got, err := h.client.GetByID(ctx, reports, "1")
	require.NoError(t, err)
	status, _ = got.String("status")
	assert.Equal(t, "approved", status)

	require.NoError(t, h.client.Delete(ctx, reports, "1"))
	_, err = h.client.GetByID(ctx, reports, "1")
	var be *endpoint.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, be.Message, "not found")

	next, err = h.client.NextID(ctx, reports)
	require.NoError(t, err)
	assert.Equal(t, "3", next, "ids are not reused")
}

func TestEmulator_RejectsMissingRequired(t *testing.T) {
	h := newHarness(t)
	_, err := h.client.Save(context.Background(), testutil.Entity(t, "reports"),
		map[string]string{"title": "No department"}, nil)

	var be *endpoint.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "Missing required field: department", be.Message)
}

func TestEmulator_UnknownActionAndEndpoint(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.client.Do(ctx, endpoint.Request{Entity: testutil.Entity(t, "news"), Action: "purge"})
	var be *endpoint.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "Unknown action: purge", be.Message)

	ghost := &models.Entity{Name: "ghost", Endpoint: "manageGhosts.php", PayloadKey: "ghosts"}
	_, err = h.client.FetchAll(ctx, ghost)
	require.ErrorAs(t, err, &be)
}

func TestEmulator_UserPasswordsAreHashedAndHidden(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	users := testutil.Entity(t, "users")

	saved, err := h.client.Save(ctx, users, map[string]string{
		"username": "clerk", "email": "clerk@example.gov", "role": "staff", "password": "s3cret!",
	}, nil)
	require.NoError(t, err)
	assert.NotContains(t, saved, "password")
	assert.NotContains(t, saved, passwordHash)

	recs, err := h.client.FetchAll(ctx, users)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.NotContains(t, recs[0], passwordHash)

	stored, err := h.emu.records.get(ctx, "users", 1)
	require.NoError(t, err)
	hash, ok := stored.String(passwordHash)
	require.True(t, ok)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret!")))

	// A blank password on update keeps the existing hash.
	_, err = h.client.Update(ctx, users, "1", map[string]string{"role": "admin", "password": ""}, nil)
	require.NoError(t, err)
	stored, err = h.emu.records.get(ctx, "users", 1)
	require.NoError(t, err)
	kept, _ := stored.String(passwordHash)
	assert.Equal(t, hash, kept)
}

func TestEmulator_UploadsGoToAttachments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	news := testutil.Entity(t, "news")

	saved, err := h.client.Save(ctx, news, map[string]string{
		"title": "Relief goods", "publishDate": "2025-02-01", "content": "<p>Distribution at the plaza.</p>",
	}, &endpoint.File{Field: news.FileField, Name: "relief.png", ContentType: "image/png", Data: []byte("PNG")})
	if err != nil {
		var be *endpoint.BusinessError
		if errors.As(err, &be) {
			t.Fatalf("save rejected: %s", be.Message)
		}
		t.Fatal(err)
	}
	key, ok := saved.String(news.FileField)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(key, "news/"))
	assert.True(t, strings.HasSuffix(key, "/relief.png"))

	resp, err := http.Get(h.url + "/files/" + key)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PNG", string(body))
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	require.NoError(t, h.client.Delete(ctx, news, saved.ID()))
	_, err = h.files.Head(ctx, key)
	assert.ErrorIs(t, err, attachments.ErrNotFound)
}

func TestEmulator_JSONEncodedEntity(t *testing.T) {
	h := newHarness(t)
	users := testutil.Entity(t, "users")
	require.Equal(t, models.EncodingJSON, users.Encoding)

	_, err := h.client.Save(context.Background(), users, map[string]string{
		"username": "viewer1", "email": "v@example.gov", "role": "viewer",
	}, nil)
	require.NoError(t, err)
}

func TestEmulator_Seed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.emu.Seed(ctx, "reports", testutil.Records(3)))

	recs, err := h.client.FetchAll(ctx, testutil.Entity(t, "reports"))
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}
