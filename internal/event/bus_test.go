package event

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HerbHall/welfaredesk/pkg/plugin"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus(testLogger())
	var received plugin.Event

	bus.Subscribe("refresh-news-table", func(ctx context.Context, e plugin.Event) {
		received = e
	})

	event := plugin.Event{
		Topic:     "refresh-news-table",
		Source:    "test",
		Timestamp: time.Now(),
		Payload:   "hello",
	}

	if err := bus.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if received.Topic != "refresh-news-table" {
		t.Errorf("received.Topic = %q, want %q", received.Topic, "refresh-news-table")
	}
	if received.Payload != "hello" {
		t.Errorf("received.Payload = %v, want %q", received.Payload, "hello")
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := NewBus(testLogger())
	var count int32

	bus.SubscribeAll(func(ctx context.Context, e plugin.Event) {
		atomic.AddInt32(&count, 1)
	})

	bus.Publish(context.Background(), plugin.Event{Topic: "a"})
	bus.Publish(context.Background(), plugin.Event{Topic: "b"})

	if got := atomic.LoadInt32(&count); got != 2 {
		t.Errorf("SubscribeAll handler called %d times, want 2", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(testLogger())
	var count int32

	unsub := bus.Subscribe("test", func(ctx context.Context, e plugin.Event) {
		atomic.AddInt32(&count, 1)
	})

	bus.Publish(context.Background(), plugin.Event{Topic: "test"})
	unsub()
	bus.Publish(context.Background(), plugin.Event{Topic: "test"})

	if got := atomic.LoadInt32(&count); got != 1 {
		t.Errorf("handler called %d times after unsubscribe, want 1", got)
	}
}

func TestUnsubscribeAll(t *testing.T) {
	bus := NewBus(testLogger())
	var count int32

	unsub := bus.SubscribeAll(func(ctx context.Context, e plugin.Event) {
		atomic.AddInt32(&count, 1)
	})

	bus.Publish(context.Background(), plugin.Event{Topic: "test"})
	unsub()
	bus.Publish(context.Background(), plugin.Event{Topic: "test"})

	if got := atomic.LoadInt32(&count); got != 1 {
		t.Errorf("handler called %d times after unsubscribe, want 1", got)
	}
}

func TestPublishAsync(t *testing.T) {
	bus := NewBus(testLogger())
	var wg sync.WaitGroup
	var count int32

	wg.Add(2)
	bus.Subscribe("news-saved", func(ctx context.Context, e plugin.Event) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	})
	bus.SubscribeAll(func(ctx context.Context, e plugin.Event) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	})

	bus.PublishAsync(context.Background(), plugin.Event{Topic: "news-saved"})

	wg.Wait()
	if got := atomic.LoadInt32(&count); got != 2 {
		t.Errorf("async handlers called %d times, want 2", got)
	}
}

func TestHandlerPanicRecovery(t *testing.T) {
	bus := NewBus(testLogger())
	var count int32

	bus.Subscribe("panic.test", func(ctx context.Context, e plugin.Event) {
		panic("test panic")
	})
	bus.Subscribe("panic.test", func(ctx context.Context, e plugin.Event) {
		atomic.AddInt32(&count, 1)
	})

	// Should not panic, and second handler should still run.
	bus.Publish(context.Background(), plugin.Event{Topic: "panic.test"})

	if got := atomic.LoadInt32(&count); got != 1 {
		t.Errorf("second handler called %d times, want 1", got)
	}
}

func TestNoSubscribersOK(t *testing.T) {
	bus := NewBus(testLogger())

	// Publishing with no subscribers should not error.
	if err := bus.Publish(context.Background(), plugin.Event{Topic: "empty"}); err != nil {
		t.Fatalf("Publish() with no subscribers error = %v", err)
	}
}

func TestPublishStampsTimestamp(t *testing.T) {
	bus := NewBus(testLogger())
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bus.now = func() time.Time { return fixed }

	var got time.Time
	bus.Subscribe(RefreshTopic("news"), func(_ context.Context, e plugin.Event) {
		got = e.Timestamp
	})
	_ = bus.Publish(context.Background(), plugin.Event{Topic: RefreshTopic("news")})

	if !got.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", got, fixed)
	}
}

func TestUnsubscribeDuringDispatch(t *testing.T) {
	bus := NewBus(testLogger())
	var count int32

	var unsub func()
	unsub = bus.Subscribe("modal-closed", func(_ context.Context, _ plugin.Event) {
		atomic.AddInt32(&count, 1)
		unsub()
	})

	_ = bus.Publish(context.Background(), plugin.Event{Topic: "modal-closed"})
	_ = bus.Publish(context.Background(), plugin.Event{Topic: "modal-closed"})

	if got := atomic.LoadInt32(&count); got != 1 {
		t.Errorf("handler called %d times, want 1", got)
	}
	if got := bus.SubscriberCount("modal-closed"); got != 0 {
		t.Errorf("SubscriberCount = %d, want 0", got)
	}
}

func TestTopicNames(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{RefreshTopic("advisories"), "refresh-advisories-table"},
		{SavedTopic("news"), "news-saved"},
		{UpdatedTopic("users"), "users-updated"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}
