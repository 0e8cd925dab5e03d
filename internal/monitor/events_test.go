package monitor

import (
	"testing"
	"time"
)

func TestBroadcasterDeliversToSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(TopicUsageError, "request failed")

	select {
	case event := <-ch:
		if event.Topic != TopicUsageError {
			t.Errorf("topic = %q, want %q", event.Topic, TopicUsageError)
		}
		if event.Payload != "request failed" {
			t.Errorf("payload = %v", event.Payload)
		}
		if event.ID == "" {
			t.Error("event ID is empty")
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestBroadcasterNeverBlocksOnSlowSubscriber(t *testing.T) {
	b := NewBroadcaster()
	_, cancel := b.Subscribe() // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*4; i++ {
			b.Publish(TopicUsageUpdated, i)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestBroadcasterCancelClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()

	cancel()
	cancel() // idempotent

	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}

	// Publishing after cancel must not panic on the closed channel.
	b.Publish(TopicUsageUpdated, nil)
}

func TestBroadcasterNoReplayForLateSubscribers(t *testing.T) {
	b := NewBroadcaster()
	b.Publish(TopicUsageUpdated, "missed")

	ch, cancel := b.Subscribe()
	defer cancel()

	select {
	case event := <-ch:
		t.Errorf("late subscriber received replayed event %+v", event)
	default:
	}
}
