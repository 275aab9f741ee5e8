package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recv(t *testing.T, sub Subscription) any {
	t.Helper()
	select {
	case msg := <-sub:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message arrived")
		return nil
	}
}

func TestPublishReachesEverySubscriber(t *testing.T) {
	b := New(testLogger())
	defer b.Close()

	first := b.Subscribe("alpha")
	second := b.Subscribe("alpha")

	b.Publish("alpha", 42)
	if got := recv(t, first); got != 42 {
		t.Fatalf("first subscriber: got %v want 42", got)
	}
	if got := recv(t, second); got != 42 {
		t.Fatalf("second subscriber: got %v want 42", got)
	}
}

func TestSubscribeSpansTopics(t *testing.T) {
	b := New(testLogger())
	defer b.Close()

	sub := b.Subscribe("alpha", "beta")
	b.Publish("alpha", "a")
	b.Publish("beta", "b")

	if got := recv(t, sub); got != "a" {
		t.Fatalf("got %v want a", got)
	}
	if got := recv(t, sub); got != "b" {
		t.Fatalf("got %v want b", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(testLogger())
	defer b.Close()

	sub := b.Subscribe("alpha")
	b.Unsubscribe(sub, "alpha")
	b.Publish("alpha", 1)

	select {
	case _, ok := <-sub:
		if ok {
			t.Fatal("message delivered after unsubscribe")
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTryPublishDoesNotBlockOnFullQueue(t *testing.T) {
	b := New(testLogger())
	defer b.Close()

	sub := b.Subscribe("alpha")
	// Nobody drains; past the queue depth these must drop, not stall.
	for i := 0; i < defaultQueueDepth+10; i++ {
		b.TryPublish("alpha", i)
	}

	if got := recv(t, sub); got != 0 {
		t.Fatalf("oldest queued message: got %v want 0", got)
	}
}
