package stream

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubscribeReceivesPublish(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	changes, cancel := dispatcher.Subscribe(ctx, "races")
	defer cancel()

	dispatcher.Publish("races")

	select {
	case change := <-changes:
		if change.Topic != "races" {
			t.Fatalf("unexpected topic: %s", change.Topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for change")
	}
}

func TestPublishIsScopedToTopic(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	changes, cancel := dispatcher.Subscribe(ctx, "drivers")
	defer cancel()

	dispatcher.Publish("races")

	select {
	case change := <-changes:
		t.Fatalf("unexpected cross-topic delivery: %#v", change)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishCoalescesPendingChanges(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	changes, cancel := dispatcher.Subscribe(ctx, "races")
	defer cancel()

	for i := 0; i < 10; i++ {
		dispatcher.Publish("races")
	}

	received := 0
	deadline := time.After(100 * time.Millisecond)
	for {
		select {
		case <-changes:
			received++
		case <-deadline:
			if received == 0 || received > 2 {
				t.Fatalf("expected coalesced delivery, got %d changes", received)
			}
			return
		}
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	changes, cancel := dispatcher.Subscribe(ctx, "races")
	cancel()
	cancel()

	dispatcher.Publish("races")

	select {
	case change, ok := <-changes:
		if ok {
			t.Fatalf("unexpected delivery after cancel: %#v", change)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSnapshotsEmitsImmediatelyAndOnChange(t *testing.T) {
	dispatcher := NewDispatcher()
	var version atomic.Int64
	version.Store(1)

	snapshots, cancel := Snapshots(context.Background(), dispatcher, "races", nil,
		func(context.Context) (int64, error) {
			return version.Load(), nil
		})
	defer cancel()

	select {
	case snapshot := <-snapshots:
		if snapshot != 1 {
			t.Fatalf("expected immediate snapshot 1, got %d", snapshot)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for initial snapshot")
	}

	version.Store(2)
	dispatcher.Publish("races")

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snapshot := <-snapshots:
			if snapshot == 2 {
				return
			}
		case <-deadline:
			t.Fatalf("never observed the re-queried snapshot")
		}
	}
}

func TestOfferLatestDisplacesUndeliveredValue(t *testing.T) {
	ch := make(chan int, 1)
	OfferLatest(ch, 1)
	OfferLatest(ch, 2)
	OfferLatest(ch, 3)

	if got := <-ch; got != 3 {
		t.Fatalf("expected latest value 3, got %d", got)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected queued value: %d", extra)
	default:
	}
}
