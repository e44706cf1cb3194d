package broadcast

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestPublishDeliversToKeySubscriber(t *testing.T) {
	hub := NewHub(4, testLogger())
	sub := hub.Subscribe("user-1")
	defer hub.Unsubscribe(sub)

	hub.Publish(Event{Type: EventBalanceUpdate, Key: "user-1", UserID: "user-1", Balance: 950})

	select {
	case got := <-sub.Channel:
		if got.Type != EventBalanceUpdate {
			t.Errorf("event type = %q, want %q", got.Type, EventBalanceUpdate)
		}
		if got.Balance != 950 {
			t.Errorf("event balance = %d, want 950", got.Balance)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishDoesNotCrossKeys(t *testing.T) {
	hub := NewHub(4, testLogger())
	other := hub.Subscribe("user-2")
	defer hub.Unsubscribe(other)

	hub.Publish(Event{Type: EventBalanceUpdate, Key: "user-1", UserID: "user-1"})

	select {
	case got := <-other.Channel:
		t.Fatalf("subscriber for user-2 received event keyed %q", got.Key)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGlobalSubscriberSeesAllKeys(t *testing.T) {
	hub := NewHub(4, testLogger())
	global := hub.Subscribe(GlobalKey)
	defer hub.Unsubscribe(global)

	hub.Publish(Event{Type: EventBalanceUpdate, Key: "user-1", UserID: "user-1"})
	hub.Publish(Event{Type: EventJackpot, Key: GlobalKey, Username: "alice", ItemName: "SSR Grand Prize"})

	for i, wantType := range []string{EventBalanceUpdate, EventJackpot} {
		select {
		case got := <-global.Channel:
			if got.Type != wantType {
				t.Errorf("event %d type = %q, want %q", i, got.Type, wantType)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestPublishOrderingPerSubscriber(t *testing.T) {
	hub := NewHub(8, testLogger())
	sub := hub.Subscribe("user-1")
	defer hub.Unsubscribe(sub)

	balances := []int64{100, 50, 0}
	for _, b := range balances {
		hub.Publish(Event{Type: EventBalanceUpdate, Key: "user-1", Balance: b})
	}

	for i, want := range balances {
		select {
		case got := <-sub.Channel:
			if got.Balance != want {
				t.Errorf("event %d balance = %d, want %d", i, got.Balance, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	hub := NewHub(1, testLogger())
	sub := hub.Subscribe("user-1")
	defer hub.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Second publish must not block even though nobody is draining.
		hub.Publish(Event{Type: EventBalanceUpdate, Key: "user-1", Balance: 1})
		hub.Publish(Event{Type: EventBalanceUpdate, Key: "user-1", Balance: 2})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}

	if got := <-sub.Channel; got.Balance != 1 {
		t.Errorf("surviving event balance = %d, want 1", got.Balance)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(4, testLogger())
	sub := hub.Subscribe("user-1")
	hub.Unsubscribe(sub)

	if _, open := <-sub.Channel; open {
		t.Error("channel still open after Unsubscribe")
	}
	if got := hub.SubscriberCount("user-1"); got != 0 {
		t.Errorf("subscriber count = %d, want 0", got)
	}
}
