package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/HerbHall/welfaredesk/pkg/plugin"
)

func TestLogger_NotNil(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewStore_Usable(t *testing.T) {
	db := NewStore(t)
	if db == nil {
		t.Fatal("expected non-nil store")
	}
	if err := db.DB().PingContext(context.Background()); err != nil {
		t.Fatalf("PingContext: %v", err)
	}
}

func TestMockBus_RecordsEvents(t *testing.T) {
	bus := NewMockBus()

	ev := plugin.Event{Topic: "test.topic", Source: "test"}
	if err := bus.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	bus.PublishAsync(context.Background(), plugin.Event{Topic: "test.async", Source: "test"})

	events := bus.Events()
	if len(events) != 2 {
		t.Fatalf("Events len = %d, want 2", len(events))
	}
	if events[0].Topic != "test.topic" {
		t.Errorf("events[0].Topic = %q, want test.topic", events[0].Topic)
	}
	if events[1].Topic != "test.async" {
		t.Errorf("events[1].Topic = %q, want test.async", events[1].Topic)
	}
}

func TestMockBus_Reset(t *testing.T) {
	bus := NewMockBus()
	_ = bus.Publish(context.Background(), plugin.Event{Topic: "a"})
	bus.Reset()
	if len(bus.Events()) != 0 {
		t.Error("expected empty events after Reset")
	}
}

func TestClock(t *testing.T) {
	c := NewClock()
	if !c.Now().Equal(Epoch) {
		t.Fatalf("Now() = %v, want %v", c.Now(), Epoch)
	}
	if got := c.Advance(5 * time.Minute); !got.Equal(Epoch.Add(5 * time.Minute)) {
		t.Errorf("Advance() = %v", got)
	}
	if got := c.Now().Sub(Epoch); got != 5*time.Minute {
		t.Errorf("elapsed = %v, want 5m", got)
	}
}

func TestMockBus_ByTopic(t *testing.T) {
	bus := NewMockBus()
	_ = bus.Publish(context.Background(), plugin.Event{Topic: "a"})
	_ = bus.Publish(context.Background(), plugin.Event{Topic: "b"})
	_ = bus.Publish(context.Background(), plugin.Event{Topic: "a"})
	if got := len(bus.ByTopic("a")); got != 2 {
		t.Errorf("ByTopic(a) len = %d, want 2", got)
	}
	if got := bus.Topics(); len(got) != 3 || got[1] != "b" {
		t.Errorf("Topics() = %v, want [a b a]", got)
	}
}

func TestNewRecord_Defaults(t *testing.T) {
	r := NewRecord(7)
	if r.ID() != "7" {
		t.Errorf("ID() = %q, want 7", r.ID())
	}
	if s, _ := r.String("status"); s != "pending" {
		t.Errorf("status = %q, want pending", s)
	}
}

func TestNewRecord_WithOptions(t *testing.T) {
	r := NewRecord(1, WithField("title", "Pending Report"), WithoutField("reportDate"))
	if s, _ := r.String("title"); s != "Pending Report" {
		t.Errorf("title = %q, want Pending Report", s)
	}
	if _, ok := r["reportDate"]; ok {
		t.Error("reportDate still present")
	}
}

func TestEntity_FromCatalog(t *testing.T) {
	e := Entity(t, "advisories")
	if e.Endpoint != "manageAdvisories.php" {
		t.Errorf("Endpoint = %q, want manageAdvisories.php", e.Endpoint)
	}
}
