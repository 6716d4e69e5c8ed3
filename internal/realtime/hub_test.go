package realtime

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisclient "github.com/aryan0dhankhar/productcatalog/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/productcatalog/pkg/cache"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestLocalPublish(t *testing.T) {
	hub := NewHub(nil, testLogger())
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Publish(context.Background(), cache.ProductDeleted("p-1", "shoes"))
	ev := receive(t, ch)
	if len(ev.Tags) != 4 || ev.Tags[0] != cache.ProductTag("p-1") {
		t.Fatalf("unexpected tags: %v", ev.Tags)
	}

	// A full buffer drops rather than blocks.
	hub.Publish(context.Background(), cache.UserChanged("u-1"))
	hub.Publish(context.Background(), cache.UserChanged("u-2"))
	if got := receive(t, ch); got.Tags[0] != cache.UserTag("u-1") {
		t.Fatalf("unexpected event: %v", got)
	}

	cancel()
	cancel()
	if hub.Count() != 0 {
		t.Fatalf("expected no subscribers, got %d", hub.Count())
	}
}

func TestRelayBetweenInstances(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newHub := func() *Hub {
		c, err := redisclient.NewClient("redis://"+mr.Addr(), testLogger())
		if err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		t.Cleanup(func() { c.Close() })
		h := NewHub(c, testLogger())
		if err := h.Start(ctx); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		return h
	}
	a, b := newHub(), newHub()

	chA, stopA := a.Subscribe(4)
	defer stopA()
	chB, stopB := b.Subscribe(4)
	defer stopB()

	a.Publish(ctx, cache.UserChanged("u-1"))

	if ev := receive(t, chB); ev.Tags[0] != cache.UserTag("u-1") {
		t.Fatalf("instance b got %v", ev)
	}
	if ev := receive(t, chA); ev.Tags[0] != cache.UserTag("u-1") {
		t.Fatalf("instance a got %v", ev)
	}
	// The origin must not see its own event twice.
	select {
	case ev := <-chA:
		t.Fatalf("duplicate delivery: %v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
