package hub

import (
	"context"
	"testing"
	"time"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/config"
)

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
	}
}

func newTestHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	return h, cancel
}

func newTestClient(id, roomID string, h *Hub) *Client {
	return NewClient(id, roomID, h, nil, testConfig())
}

func recvFrame(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.Send:
		return data
	case <-time.After(time.Second):
		t.Fatalf("client %s: no frame within deadline", c.ID)
		return nil
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("client %s: unexpected frame %s", c.ID, data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestJoinLeaveSubscriberSet(t *testing.T) {
	h, cancel := newTestHub(t)
	defer cancel()

	c1 := newTestClient("c1", "room-1", h)
	c2 := newTestClient("c2", "room-1", h)

	h.Join("room-1", c1)
	h.Join("room-1", c2)
	if got := h.SubscriberCount("room-1"); got != 2 {
		t.Fatalf("subscriber count = %d, want 2", got)
	}

	// Joining twice is a no-op.
	h.Join("room-1", c1)
	if got := h.SubscriberCount("room-1"); got != 2 {
		t.Fatalf("subscriber count after rejoin = %d, want 2", got)
	}

	h.Leave("room-1", c1)
	if got := h.SubscriberCount("room-1"); got != 1 {
		t.Fatalf("subscriber count after leave = %d, want 1", got)
	}

	// Leaving when not subscribed is a no-op.
	h.Leave("room-1", c1)
	if got := h.SubscriberCount("room-1"); got != 1 {
		t.Fatalf("subscriber count after double leave = %d, want 1", got)
	}

	h.Leave("room-1", c2)
	if subs := h.Subscribers("room-1"); subs != nil {
		t.Fatalf("empty room not garbage collected: %v", subs)
	}
}

func TestJoinSecondRoomLeavesFirst(t *testing.T) {
	h, cancel := newTestHub(t)
	defer cancel()

	c := newTestClient("c1", "room-1", h)
	h.Join("room-1", c)
	h.Join("room-2", c)

	if got := h.SubscriberCount("room-1"); got != 0 {
		t.Errorf("room-1 count = %d, want 0", got)
	}
	if got := h.SubscriberCount("room-2"); got != 1 {
		t.Errorf("room-2 count = %d, want 1", got)
	}
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	h, cancel := newTestHub(t)
	defer cancel()

	c1 := newTestClient("c1", "room-1", h)
	c2 := newTestClient("c2", "room-1", h)
	other := newTestClient("c3", "room-2", h)

	h.Join("room-1", c1)
	h.Join("room-1", c2)
	h.Join("room-2", other)

	frame := []byte(`{"type":"chat_message","message":"hi"}`)
	h.Broadcast("room-1", frame, "")

	if got := string(recvFrame(t, c1)); got != string(frame) {
		t.Errorf("c1 frame = %s", got)
	}
	if got := string(recvFrame(t, c2)); got != string(frame) {
		t.Errorf("c2 frame = %s", got)
	}
	assertNoFrame(t, other)
}

func TestBroadcastExcludesSender(t *testing.T) {
	h, cancel := newTestHub(t)
	defer cancel()

	c1 := newTestClient("c1", "room-1", h)
	c2 := newTestClient("c2", "room-1", h)
	h.Join("room-1", c1)
	h.Join("room-1", c2)

	h.Broadcast("room-1", []byte("x"), "c1")

	recvFrame(t, c2)
	assertNoFrame(t, c1)
}

func TestBroadcastAfterLeaveDeliversNothing(t *testing.T) {
	h, cancel := newTestHub(t)
	defer cancel()

	c := newTestClient("c1", "room-1", h)
	h.Join("room-1", c)
	h.Leave("room-1", c)

	h.Broadcast("room-1", []byte("x"), "")
	assertNoFrame(t, c)
}

func TestUnregisterClosesSendAndLeavesRoom(t *testing.T) {
	h, cancel := newTestHub(t)
	defer cancel()

	c := newTestClient("c1", "room-1", h)
	h.Register(c)
	h.Join("room-1", c)

	h.Unregister(c)

	select {
	case _, ok := <-c.Send:
		if ok {
			t.Fatal("expected closed Send channel")
		}
	case <-time.After(time.Second):
		t.Fatal("Send channel not closed")
	}
	if got := h.SubscriberCount("room-1"); got != 0 {
		t.Errorf("room-1 count after unregister = %d, want 0", got)
	}
}

func TestPushDropsWhenBufferFull(t *testing.T) {
	h := NewHub(testConfig())
	c := newTestClient("c1", "room-1", h)

	for i := 0; i < cap(c.Send); i++ {
		if !c.Push([]byte("x")) {
			t.Fatalf("push %d failed below capacity", i)
		}
	}
	if c.Push([]byte("overflow")) {
		t.Error("push succeeded on full buffer")
	}
}
