package server

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/UnKnowSoDev/pianissimo-gacha/pkg/broadcast"
)

func newTestEventsHandler(labels map[string]string) *EventsHandler {
	app := &App{
		balanceProvider: newFakeBalanceProvider(labels),
		logger:          testLogger(),
	}
	return NewEventsHandler(app, broadcast.NewHub(4, testLogger()))
}

func TestConnectedFrameCarriesResolvedBalance(t *testing.T) {
	h := newTestEventsHandler(map[string]string{"u1": "Miku P : 150"})

	frame := h.connectedFrame(context.Background(), "u1")
	if frame.Type != EventTypeConnected {
		t.Errorf("frame type = %q, want %q", frame.Type, EventTypeConnected)
	}
	if frame.UserID != "u1" {
		t.Errorf("frame user = %q, want u1", frame.UserID)
	}
	if frame.Balance != 150 {
		t.Errorf("frame balance = %d, want 150", frame.Balance)
	}
}

func TestConnectedFrameSerializesZeroBalance(t *testing.T) {
	h := newTestEventsHandler(map[string]string{"u1": "Miku"})

	frame := h.connectedFrame(context.Background(), "u1")
	if frame.Balance != 0 {
		t.Fatalf("frame balance = %d, want 0", frame.Balance)
	}

	body, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshaling frame: %v", err)
	}
	if !strings.Contains(string(body), `"balance":0`) {
		t.Errorf("frame body %s does not carry the zero balance", body)
	}
}

func TestConnectedFrameWhenResolveFails(t *testing.T) {
	h := newTestEventsHandler(map[string]string{})

	frame := h.connectedFrame(context.Background(), "ghost")
	if frame == nil {
		t.Fatal("connectedFrame() = nil for unresolved member")
	}
	if frame.Type != EventTypeConnected {
		t.Errorf("frame type = %q, want %q", frame.Type, EventTypeConnected)
	}
	if frame.Balance != 0 {
		t.Errorf("frame balance = %d, want 0", frame.Balance)
	}
}

func TestConnectedFrameWithoutBalanceProvider(t *testing.T) {
	app := &App{logger: testLogger()}
	h := NewEventsHandler(app, broadcast.NewHub(4, testLogger()))

	frame := h.connectedFrame(context.Background(), "u1")
	if frame.Type != EventTypeConnected || frame.UserID != "u1" {
		t.Errorf("frame = %+v, want connected frame for u1", frame)
	}
}
