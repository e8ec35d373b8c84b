package emulator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/welfaredesk/internal/datastore"
	"github.com/HerbHall/welfaredesk/internal/event"
	"github.com/HerbHall/welfaredesk/internal/modal"
	"github.com/HerbHall/welfaredesk/internal/notify"
	"github.com/HerbHall/welfaredesk/internal/testutil"
)

// An advisory added through the dialog is visible exactly once after the
// refresh the dialog triggers.
func TestAddAdvisoryRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	advisories := testutil.Entity(t, "advisories")

	bus := event.NewBus(testutil.Logger())
	center := notify.NewCenter(bus, testutil.Logger())
	ds := datastore.New(advisories, h.client, testutil.Logger(), datastore.WithNotifier(center))
	defer ds.Subscribe(bus)()
	require.True(t, ds.Fetch(ctx).Applied)
	require.Equal(t, 0, ds.Len())

	mgr := modal.NewManager(modal.Deps{
		Submitter: h.client,
		Bus:       bus,
		Notifier:  center,
		Logger:    testutil.Logger(),
	})
	m, err := mgr.Open(ctx, advisories, modal.KindAdd, nil)
	require.NoError(t, err)
	assert.Equal(t, "1", m.Snapshot().NextID)

	require.NoError(t, m.SetField("title", "Test Advisory"))
	require.NoError(t, m.SetField("uploadDate", "2025-01-01"))
	require.NoError(t, m.Submit(ctx))
	require.Equal(t, modal.StateConfirming, m.State())
	require.NoError(t, m.Confirm(ctx, true))
	assert.Equal(t, modal.StateClosed, m.State())

	recs := ds.Records()
	require.Len(t, recs, 1)
	title, _ := recs[0].String("title")
	date, _ := recs[0].String("uploadDate")
	assert.Equal(t, "Test Advisory", title)
	assert.Equal(t, "2025-01-01", date)

	var msgs []string
	for _, n := range center.Active() {
		msgs = append(msgs, n.Message)
	}
	assert.Contains(t, msgs, "Advisory added successfully.")
}
