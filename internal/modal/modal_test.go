package modal

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HerbHall/welfaredesk/internal/endpoint"
	"github.com/HerbHall/welfaredesk/internal/event"
	"github.com/HerbHall/welfaredesk/internal/notify"
	"github.com/HerbHall/welfaredesk/internal/testutil"
	"github.com/HerbHall/welfaredesk/pkg/models"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	err     error
	saved   []map[string]string
	updated []string
	files   []*endpoint.File
	nextID  string
	// loadingDuringCall records the overlay state seen inside the call.
	loadingDuringCall bool
	center            *notify.Center
}

func (f *fakeSubmitter) Save(_ context.Context, _ *models.Entity, fields map[string]string, file *endpoint.File) (models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.center != nil {
		f.loadingDuringCall = f.center.Loading()
	}
	f.saved = append(f.saved, fields)
	f.files = append(f.files, file)
	if f.err != nil {
		return nil, f.err
	}
	rec := models.Record{"id": "101"}
	for k, v := range fields {
		rec[k] = v
	}
	return rec, nil
}

func (f *fakeSubmitter) Update(_ context.Context, _ *models.Entity, id string, fields map[string]string, _ *endpoint.File) (models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, id)
	if f.err != nil {
		return nil, f.err
	}
	rec := models.Record{"id": id}
	for k, v := range fields {
		rec[k] = v
	}
	return rec, nil
}

func (f *fakeSubmitter) NextID(context.Context, *models.Entity) (string, error) {
	if f.nextID == "" {
		return "", errors.New("unavailable")
	}
	return f.nextID, nil
}

type harness struct {
	sub    *fakeSubmitter
	bus    *testutil.MockBus
	center *notify.Center
	mgr    *Manager
}

func newHarness() *harness {
	bus := testutil.NewMockBus()
	center := notify.NewCenter(nil, zap.NewNop())
	sub := &fakeSubmitter{center: center}
	return &harness{
		sub:    sub,
		bus:    bus,
		center: center,
		mgr:    NewManager(Deps{Submitter: sub, Bus: bus, Notifier: center, Logger: zap.NewNop()}),
	}
}

func TestAddModal_CloseWithoutInput(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	m, err := h.mgr.Open(ctx, testutil.Entity(t, "advisories"), KindAdd, nil)
	require.NoError(t, err)

	assert.False(t, m.HasChanges())
	assert.True(t, m.RequestClose(ctx), "empty add modal should close immediately")
	assert.Equal(t, StateClosed, m.State())
	assert.Empty(t, h.bus.ByTopic(event.TopicCancelConfirm))
	assert.Len(t, h.bus.ByTopic(event.TopicModalClosed), 1)
	_, ok := h.mgr.Get(m.ID())
	assert.False(t, ok, "closed modal still registered")
}

func TestAddModal_CloseWithInputAsks(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	m, err := h.mgr.Open(ctx, testutil.Entity(t, "advisories"), KindAdd, nil)
	require.NoError(t, err)

	require.NoError(t, m.SetField("title", "Typhoon warning"))
	m.Focus("uploadDate")
	assert.False(t, m.RequestClose(ctx))
	assert.Equal(t, StateConfirmCancel, m.State())
	assert.Len(t, h.bus.ByTopic(event.TopicCancelConfirm), 1)

	require.NoError(t, m.ResolveCancel(ctx, false))
	assert.Equal(t, StateOpen, m.State())
	snap := m.Snapshot()
	assert.Equal(t, "uploadDate", snap.Focus, "focus restored to last field")
	assert.Equal(t, "Typhoon warning", snap.Fields["title"])

	assert.False(t, m.RequestClose(ctx))
	require.NoError(t, m.ResolveCancel(ctx, true))
	assert.Equal(t, StateClosed, m.State())
}

func TestViewModal_ChangesAgainstOriginal(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	rec := models.Record{"id": float64(8), "title": "Flood", "uploadDate": "2025-02-01", "status": "active"}
	m, err := h.mgr.Open(ctx, testutil.Entity(t, "advisories"), KindView, rec)
	require.NoError(t, err)

	assert.False(t, m.HasChanges(), "loaded record is not a change")
	require.NoError(t, m.SetField("title", "Flood "))
	assert.False(t, m.HasChanges(), "surrounding whitespace is not a change")
	require.NoError(t, m.SetField("title", "Flood update"))
	assert.True(t, m.HasChanges())
	require.NoError(t, m.SetField("title", "Flood"))
	assert.True(t, m.RequestClose(ctx))
}

func TestSubmit_ValidationBlocksNetwork(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	m, err := h.mgr.Open(ctx, testutil.Entity(t, "advisories"), KindAdd, nil)
	require.NoError(t, err)
	require.NoError(t, m.SetField("title", "Heat index"))

	err = m.Submit(ctx)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "uploadDate", verr.Field)
	assert.Equal(t, StateOpen, m.State())
	assert.Equal(t, "uploadDate", m.Snapshot().Focus)
	assert.Empty(t, h.sub.saved, "no network call on validation failure")
	require.Len(t, h.center.Active(), 1)
	assert.Equal(t, notify.KindError, h.center.Active()[0].Kind)
}

func TestSubmit_SuccessPublishesAndCloses(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	m, err := h.mgr.Open(ctx, testutil.Entity(t, "advisories"), KindAdd, nil)
	require.NoError(t, err)
	require.NoError(t, m.SetField("title", "Test Advisory"))
	require.NoError(t, m.SetField("uploadDate", "2025-01-01"))

	require.NoError(t, m.Submit(ctx))
	assert.Equal(t, StateConfirming, m.State())
	assert.Len(t, h.bus.ByTopic(event.TopicConfirmSave), 1)

	require.NoError(t, m.Confirm(ctx, true))
	assert.Equal(t, StateClosed, m.State())
	assert.True(t, h.sub.loadingDuringCall, "overlay shown during the call")
	assert.False(t, h.center.Loading(), "overlay lowered after success")

	topics := h.bus.Topics()
	assert.Equal(t, []string{
		event.TopicConfirmSave,
		event.SavedTopic("advisories"),
		event.RefreshTopic("advisories"),
		event.TopicModalClosed,
	}, topics)
	saved := h.bus.ByTopic(event.SavedTopic("advisories"))[0].Payload.(event.RecordPayload)
	assert.Equal(t, "101", saved.Record.ID())
	assert.Equal(t, "Test Advisory", saved.Record["title"])
	assert.Equal(t, "2025-01-01", saved.Record["uploadDate"])
	closed := h.bus.ByTopic(event.TopicModalClosed)[0].Payload.(event.ModalPayload)
	assert.Equal(t, OutcomeSaved, closed.Outcome)
}

func TestSubmit_FailureReopensWithError(t *testing.T) {
	h := newHarness()
	h.sub.err = &endpoint.BusinessError{Action: "save", Message: "Title already exists"}
	ctx := context.Background()
	m, err := h.mgr.Open(ctx, testutil.Entity(t, "advisories"), KindAdd, nil)
	require.NoError(t, err)
	require.NoError(t, m.SetField("title", "Dup"))
	require.NoError(t, m.SetField("uploadDate", "2025-01-01"))
	require.NoError(t, m.Submit(ctx))

	err = m.Confirm(ctx, true)
	require.Error(t, err)
	assert.Equal(t, StateOpen, m.State())
	snap := m.Snapshot()
	assert.Equal(t, "Title already exists", snap.Error)
	assert.Equal(t, "Dup", snap.Fields["title"], "form state retained")
	assert.False(t, h.center.Loading(), "overlay lowered after failure")
	assert.Empty(t, h.bus.ByTopic(event.RefreshTopic("advisories")))

	// retry without re-entering data
	h.sub.err = nil
	require.NoError(t, m.Submit(ctx))
	require.NoError(t, m.Confirm(ctx, true))
	assert.Len(t, h.sub.saved, 2)
	assert.Equal(t, "Dup", h.sub.saved[1]["title"])
}

func TestConfirm_DeclineReturnsToOpen(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	m, _ := h.mgr.Open(ctx, testutil.Entity(t, "advisories"), KindAdd, nil)
	_ = m.SetField("title", "x")
	_ = m.SetField("uploadDate", "2025-01-01")
	require.NoError(t, m.Submit(ctx))
	require.NoError(t, m.Confirm(ctx, false))
	assert.Equal(t, StateOpen, m.State())
	assert.Empty(t, h.sub.saved)
}

func TestInvalidTransitions(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	m, _ := h.mgr.Open(ctx, testutil.Entity(t, "advisories"), KindAdd, nil)

	assert.ErrorIs(t, m.Confirm(ctx, true), ErrInvalidTransition)
	assert.ErrorIs(t, m.ResolveCancel(ctx, true), ErrInvalidTransition)
	assert.ErrorIs(t, m.Open(), ErrInvalidTransition)
	assert.ErrorIs(t, m.SetField("nope", "x"), ErrUnknownField)
}

func TestViewModal_UpdatePublishesUpdated(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	rec := models.Record{"id": "8", "title": "Flood", "uploadDate": "2025-02-01", "status": "active"}
	m, err := h.mgr.Open(ctx, testutil.Entity(t, "advisories"), KindView, rec)
	require.NoError(t, err)
	require.NoError(t, m.SetField("status", "expired"))
	require.NoError(t, m.Submit(ctx))
	require.NoError(t, m.Confirm(ctx, true))

	assert.Equal(t, []string{"8"}, h.sub.updated)
	ev := h.bus.ByTopic(event.UpdatedTopic("advisories"))
	require.Len(t, ev, 1)
	assert.Equal(t, "expired", ev[0].Payload.(event.RecordPayload).Record["status"])
}

func TestViewModal_ReadOnlyEntity(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	e := testutil.Entity(t, "advisories")
	ro := *e
	ro.Editable = false
	m, err := h.mgr.Open(ctx, &ro, KindView, models.Record{"id": "1", "title": "t"})
	require.NoError(t, err)
	assert.ErrorIs(t, m.Submit(ctx), ErrReadOnly)
}

func TestSelectFile(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	tests := []struct {
		name    string
		ct      string
		data    []byte
		wantErr bool
	}{
		{"png accepted", "image/png", png, false},
		{"sniffed png", "", png, false},
		{"pdf rejected for image", "application/pdf", []byte("%PDF-1.4"), true},
		{"oversize image", "image/jpeg", make([]byte, MaxImageBytes+1), true},
		{"empty", "image/png", nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			ctx := context.Background()
			m, _ := h.mgr.Open(ctx, testutil.Entity(t, "advisories"), KindAdd, nil)
			err := m.SelectFile(ctx, "a.png", tc.ct, tc.data)
			if tc.wantErr {
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
				assert.Empty(t, m.Snapshot().FileName)
				assert.Len(t, h.center.Active(), 1)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a.png", m.Snapshot().FileName)
			assert.True(t, m.HasChanges(), "selected file counts as input")
		})
	}
}

func TestSelectFile_RejectKeepsPrevious(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	m, _ := h.mgr.Open(ctx, testutil.Entity(t, "reports"), KindAdd, nil)
	require.NoError(t, m.SelectFile(ctx, "q1.pdf", "application/pdf", []byte("%PDF-1.4 data")))
	require.Error(t, m.SelectFile(ctx, "big.pdf", "application/pdf", make([]byte, MaxPDFBytes+1)))
	assert.Equal(t, "q1.pdf", m.Snapshot().FileName)
}

func TestManager_ReplacesSameSlot(t *testing.T) {
	h := newHarness()
	h.sub.nextID = "42"
	ctx := context.Background()
	e := testutil.Entity(t, "advisories")

	first, err := h.mgr.Open(ctx, e, KindAdd, nil)
	require.NoError(t, err)
	_ = first.SetField("title", "draft")
	second, err := h.mgr.Open(ctx, e, KindAdd, nil)
	require.NoError(t, err)

	assert.Equal(t, StateClosed, first.State())
	assert.Equal(t, "42", second.Snapshot().NextID)
	assert.Len(t, h.mgr.Active(), 1)
	closed := h.bus.ByTopic(event.TopicModalClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, OutcomeReplaced, closed[0].Payload.(event.ModalPayload).Outcome)

	view, err := h.mgr.Open(ctx, e, KindView, models.Record{"id": "1"})
	require.NoError(t, err)
	assert.Len(t, h.mgr.Active(), 2, "view and add slots are independent")
	h.mgr.CloseAll(ctx)
	assert.Empty(t, h.mgr.Active())
	assert.Equal(t, StateClosed, view.State())
}

func TestManager_NotAddable(t *testing.T) {
	h := newHarness()
	_, err := h.mgr.Open(context.Background(), testutil.Entity(t, "feedback"), KindAdd, nil)
	assert.ErrorIs(t, err, ErrNotAddable)
}
