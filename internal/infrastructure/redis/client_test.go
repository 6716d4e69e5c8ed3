package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestPublishSubscribe(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	c, err := NewClient("redis://"+mr.Addr(), nil)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 1)
	if err := c.Subscribe(ctx, "catalog:test", func(p []byte) { got <- string(p) }); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if err := c.Publish(ctx, "catalog:test", []byte("hello")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case msg := <-got:
		if msg != "hello" {
			t.Fatalf("got %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient("://nope", nil); err == nil {
		t.Fatal("expected invalid url error")
	}
}
