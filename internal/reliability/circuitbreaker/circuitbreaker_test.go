package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errDown = errors.New("dependency down")

func fail(context.Context) error    { return errDown }
func succeed(context.Context) error { return nil }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := New("s3", 2, 1, time.Hour)
	ctx := context.Background()

	var transitions []State
	cb.SetStateChangeCallback(func(name string, _, to State) {
		if name != "s3" {
			t.Errorf("unexpected breaker name %q", name)
		}
		transitions = append(transitions, to)
	})

	_ = cb.Execute(ctx, fail)
	if cb.GetState() != StateClosed {
		t.Fatal("breaker opened too early")
	}
	_ = cb.Execute(ctx, fail)
	if cb.GetState() != StateOpen {
		t.Fatal("expected breaker to open")
	}
	if err := cb.Execute(ctx, succeed); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Fatalf("unexpected transitions: %v", transitions)
	}
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	cb := New("s3", 1, 1, time.Millisecond)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	time.Sleep(5 * time.Millisecond)

	if err := cb.Execute(ctx, succeed); err != nil {
		t.Fatalf("expected trial call to pass, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed, got %s", cb.GetState())
	}
}

func TestBreakerIgnoresNonCountingErrors(t *testing.T) {
	cb := New("s3", 1, 1, time.Hour)
	rejected := errors.New("bad input")
	cb.SetFailurePredicate(func(err error) bool { return !errors.Is(err, rejected) })

	err := cb.Execute(context.Background(), func(context.Context) error { return rejected })
	if !errors.Is(err, rejected) {
		t.Fatalf("expected caller error, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatal("caller errors must not open the breaker")
	}
}
