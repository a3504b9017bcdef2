package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/broker"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/bus"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/config"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/domain"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/hub"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/notify"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/presence"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/repository"
)

// ---- fakes ----

type chanBus struct {
	events chan *bus.Event
}

func newChanBus() *chanBus { return &chanBus{events: make(chan *bus.Event, 64)} }

func (b *chanBus) Publish(ctx context.Context, event *bus.Event) error {
	b.events <- event
	return nil
}
func (b *chanBus) Subscribe(ctx context.Context) (<-chan *bus.Event, error) { return b.events, nil }
func (b *chanBus) Close() error                                             { close(b.events); return nil }

type memRoomRepo struct {
	mu    sync.Mutex
	rooms map[string]*domain.Room
}

func newMemRoomRepo() *memRoomRepo { return &memRoomRepo{rooms: make(map[string]*domain.Room)} }

func (r *memRoomRepo) Create(ctx context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *room
	r.rooms[room.ID] = &cp
	return nil
}

func (r *memRoomRepo) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	cp := *room
	return &cp, nil
}

func (r *memRoomRepo) FindByParticipants(ctx context.Context, sellerID, buyerID string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		if room.SellerID == sellerID && room.BuyerID == buyerID && room.Active {
			cp := *room
			return &cp, nil
		}
	}
	return nil, repository.ErrRoomNotFound
}

func (r *memRoomRepo) ListByParticipant(ctx context.Context, userID string) ([]domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Room
	for _, room := range r.rooms {
		if room.HasParticipant(userID) && room.Active {
			out = append(out, *room)
		}
	}
	return out, nil
}

func (r *memRoomRepo) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return repository.ErrRoomNotFound
	}
	room.Active = false
	return nil
}

type memMessageRepo struct {
	mu       sync.Mutex
	messages []domain.Message
	failNext error
}

func (r *memMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *memMessageRepo) ListByRoom(ctx context.Context, roomID, cursor string, limit int) (*domain.MessagePage, error) {
	return &domain.MessagePage{}, nil
}

func (r *memMessageRepo) LastByRoom(ctx context.Context, roomID string) (*domain.Message, error) {
	return nil, nil
}

func (r *memMessageRepo) CountUnread(ctx context.Context, roomID, userID string) (int64, error) {
	return 0, nil
}

func (r *memMessageRepo) MarkRead(ctx context.Context, messageIDs []string) error { return nil }

func (r *memMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*notify.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, notif *notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notif)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type memPresenceStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemPresenceStore() *memPresenceStore {
	return &memPresenceStore{counts: make(map[string]int64)}
}

func (s *memPresenceStore) Increment(ctx context.Context, userID string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[userID]++
	return s.counts[userID], nil
}

func (s *memPresenceStore) Decrement(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts[userID] <= 1 {
		delete(s.counts, userID)
		return 0, nil
	}
	s.counts[userID]--
	return s.counts[userID], nil
}

func (s *memPresenceStore) Count(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[userID], nil
}

func (s *memPresenceStore) Refresh(ctx context.Context, userID string, ttl time.Duration) error {
	return nil
}

func (s *memPresenceStore) Close() error { return nil }

type keyEchoUploads struct{}

func (keyEchoUploads) IssueKey(ctx context.Context, roomID string) (string, string, error) {
	return "k", "http://upload/k", nil
}

func (keyEchoUploads) ResolveURLs(ctx context.Context, keys []string) []string { return keys }

// ---- fixture ----

type fixture struct {
	hub      *hub.Hub
	chat     ChatService
	rooms    *memRoomRepo
	messages *memMessageRepo
	notifier *recordingNotifier
	store    *memPresenceStore
	cancel   context.CancelFunc
}

func wsConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := hub.NewHub(wsConfig())
	store := newMemPresenceStore()
	tracker := presence.NewTracker(store, time.Minute, time.Second)
	rooms := newMemRoomRepo()
	messages := &memMessageRepo{}
	notifier := &recordingNotifier{}

	chat := NewChatService(h, broker.NewBroker(newChanBus(), h), tracker, rooms, messages, notifier, keyEchoUploads{})
	if err := chat.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	return &fixture{
		hub:      h,
		chat:     chat,
		rooms:    rooms,
		messages: messages,
		notifier: notifier,
		store:    store,
		cancel:   cancel,
	}
}

func (f *fixture) addRoom(t *testing.T, id, sellerID, buyerID string) {
	t.Helper()
	err := f.rooms.Create(context.Background(), &domain.Room{
		ID:       id,
		SellerID: sellerID,
		BuyerID:  buyerID,
		Active:   true,
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
}

func newClient(id, roomID string, h *hub.Hub) *hub.Client {
	return hub.NewClient(id, roomID, h, nil, wsConfig())
}

func recvFrame(t *testing.T, c *hub.Client) map[string]interface{} {
	t.Helper()
	select {
	case data := <-c.Send:
		var frame map[string]interface{}
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return frame
	case <-time.After(time.Second):
		t.Fatalf("client %s: no frame within deadline", c.ID)
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached: %s", what)
}

func assertNoFrame(t *testing.T, c *hub.Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("client %s: unexpected frame %s", c.ID, data)
	case <-time.After(50 * time.Millisecond):
	}
}

// ---- tests ----

func TestConnectAuthenticatedJoinsRoom(t *testing.T) {
	f := newFixture(t)
	f.addRoom(t, "room-1", "seller", "buyer")
	ctx := context.Background()

	c := newClient("c1", "room-1", f.hub)
	if err := f.chat.HandleConnect(ctx, c, domain.Authenticated("buyer")); err != nil {
		t.Fatalf("HandleConnect: %v", err)
	}

	if !c.Session.IsAuthenticated() {
		t.Error("session not authenticated")
	}
	if got := f.hub.SubscriberCount("room-1"); got != 1 {
		t.Errorf("subscriber count = %d, want 1", got)
	}
	if n, _ := f.store.Count(ctx, "buyer"); n != 1 {
		t.Errorf("presence count = %d, want 1", n)
	}
}

func TestConnectAnonymousRejectedWithoutJoin(t *testing.T) {
	f := newFixture(t)
	f.addRoom(t, "room-1", "seller", "buyer")
	ctx := context.Background()

	c := newClient("c1", "room-1", f.hub)
	err := f.chat.HandleConnect(ctx, c, domain.Anonymous())
	if !errors.Is(err, ErrHandshakeRejected) {
		t.Fatalf("err = %v, want handshake rejection", err)
	}
	if got := f.hub.SubscriberCount("room-1"); got != 0 {
		t.Errorf("subscriber count = %d, want 0", got)
	}
}

func TestConnectFailedIdentityRejected(t *testing.T) {
	f := newFixture(t)
	f.addRoom(t, "room-1", "seller", "buyer")

	c := newClient("c1", "room-1", f.hub)
	err := f.chat.HandleConnect(context.Background(), c, domain.FailedIdentity(errors.New("bad token")))
	if !errors.Is(err, ErrHandshakeRejected) {
		t.Fatalf("err = %v, want handshake rejection", err)
	}
}

func TestConnectNonParticipantForbidden(t *testing.T) {
	f := newFixture(t)
	f.addRoom(t, "room-1", "seller", "buyer")

	c := newClient("c1", "room-1", f.hub)
	err := f.chat.HandleConnect(context.Background(), c, domain.Authenticated("stranger"))
	if !errors.Is(err, ErrRoomForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
	if got := f.hub.SubscriberCount("room-1"); got != 0 {
		t.Errorf("subscriber count = %d, want 0", got)
	}
}

func TestFrameBeforeAuthGetsSingleErrorFrame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := newClient("c1", "room-1", f.hub)
	f.chat.HandleFrame(ctx, c, []byte(`{"message": "hi"}`))

	frame := recvFrame(t, c)
	if frame["type"] != "ERROR" {
		t.Errorf("type = %v, want ERROR", frame["type"])
	}
	if frame["error_code"] != float64(1) {
		t.Errorf("error_code = %v, want 1", frame["error_code"])
	}
	if frame["error_message"] != "You are not logged in." {
		t.Errorf("error_message = %v", frame["error_message"])
	}
	assertNoFrame(t, c)

	// The connection stays usable: nothing was persisted, nothing closed.
	if f.messages.count() != 0 {
		t.Errorf("persisted %d messages, want 0", f.messages.count())
	}
	if c.Session.State() == domain.StateClosed {
		t.Error("session closed by pre-auth frame")
	}
}

func TestFrameFansOutToBothSubscribers(t *testing.T) {
	f := newFixture(t)
	f.addRoom(t, "room-1", "seller", "buyer")
	ctx := context.Background()

	sender := newClient("c1", "room-1", f.hub)
	receiver := newClient("c2", "room-1", f.hub)
	if err := f.chat.HandleConnect(ctx, sender, domain.Authenticated("buyer")); err != nil {
		t.Fatalf("connect sender: %v", err)
	}
	if err := f.chat.HandleConnect(ctx, receiver, domain.Authenticated("seller")); err != nil {
		t.Fatalf("connect receiver: %v", err)
	}

	f.chat.HandleFrame(ctx, sender, []byte(`{"message": "hi"}`))

	for _, c := range []*hub.Client{sender, receiver} {
		frame := recvFrame(t, c)
		if frame["type"] != "chat_message" {
			t.Errorf("client %s: type = %v", c.ID, frame["type"])
		}
		if frame["message"] != "hi" {
			t.Errorf("client %s: message = %v", c.ID, frame["message"])
		}
		if frame["owner"] != "buyer" {
			t.Errorf("client %s: owner = %v", c.ID, frame["owner"])
		}
	}

	if f.messages.count() != 1 {
		t.Errorf("persisted %d messages, want 1", f.messages.count())
	}
	// Counterpart is online, no notification fallback.
	if f.notifier.count() != 0 {
		t.Errorf("sent %d notifications, want 0", f.notifier.count())
	}
}

func TestFrameMalformedGetsBadPayload(t *testing.T) {
	f := newFixture(t)
	f.addRoom(t, "room-1", "seller", "buyer")
	ctx := context.Background()

	c := newClient("c1", "room-1", f.hub)
	if err := f.chat.HandleConnect(ctx, c, domain.Authenticated("buyer")); err != nil {
		t.Fatalf("connect: %v", err)
	}

	f.chat.HandleFrame(ctx, c, []byte(`{"message_type": 7}`))

	frame := recvFrame(t, c)
	if frame["type"] != "ERROR" {
		t.Errorf("type = %v, want ERROR", frame["type"])
	}
	if frame["error_code"] != float64(2) {
		t.Errorf("error_code = %v, want 2", frame["error_code"])
	}
	if f.messages.count() != 0 {
		t.Errorf("persisted %d messages, want 0", f.messages.count())
	}
}

func TestFramePersistFailureKeepsConnection(t *testing.T) {
	f := newFixture(t)
	f.addRoom(t, "room-1", "seller", "buyer")
	ctx := context.Background()

	c := newClient("c1", "room-1", f.hub)
	if err := f.chat.HandleConnect(ctx, c, domain.Authenticated("buyer")); err != nil {
		t.Fatalf("connect: %v", err)
	}

	f.messages.failNext = errors.New("db down")
	f.chat.HandleFrame(ctx, c, []byte(`{"message": "hi"}`))

	frame := recvFrame(t, c)
	if frame["type"] != "ERROR" {
		t.Errorf("type = %v, want ERROR", frame["type"])
	}
	if c.Session.State() == domain.StateClosed {
		t.Error("session closed by persist failure")
	}
}

func TestOfflineCounterpartGetsNotification(t *testing.T) {
	f := newFixture(t)
	f.addRoom(t, "room-1", "seller", "buyer")
	ctx := context.Background()

	sender := newClient("c1", "room-1", f.hub)
	if err := f.chat.HandleConnect(ctx, sender, domain.Authenticated("buyer")); err != nil {
		t.Fatalf("connect: %v", err)
	}

	f.chat.HandleFrame(ctx, sender, []byte(`{"message": "anyone there?"}`))
	recvFrame(t, sender)

	if f.notifier.count() != 1 {
		t.Fatalf("sent %d notifications, want 1", f.notifier.count())
	}
	f.notifier.mu.Lock()
	n := f.notifier.sent[0]
	f.notifier.mu.Unlock()
	if n.RecipientID != "seller" {
		t.Errorf("recipient = %q, want seller", n.RecipientID)
	}
	if n.SenderID != "buyer" {
		t.Errorf("sender = %q, want buyer", n.SenderID)
	}
	if n.RoomID != "room-1" {
		t.Errorf("room = %q", n.RoomID)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.addRoom(t, "room-1", "seller", "buyer")
	ctx := context.Background()

	c := newClient("c1", "room-1", f.hub)
	if err := f.chat.HandleConnect(ctx, c, domain.Authenticated("buyer")); err != nil {
		t.Fatalf("connect: %v", err)
	}

	f.chat.HandleDisconnect(ctx, c)
	f.chat.HandleDisconnect(ctx, c)

	if n, _ := f.store.Count(ctx, "buyer"); n != 0 {
		t.Errorf("presence count = %d, want 0", n)
	}
	waitFor(t, "client left room", func() bool {
		return f.hub.SubscriberCount("room-1") == 0
	})
}

func TestDisconnectOneOfTwoConnectionsKeepsPresence(t *testing.T) {
	f := newFixture(t)
	f.addRoom(t, "room-1", "seller", "buyer")
	ctx := context.Background()

	c1 := newClient("c1", "room-1", f.hub)
	c2 := newClient("c2", "room-1", f.hub)
	if err := f.chat.HandleConnect(ctx, c1, domain.Authenticated("buyer")); err != nil {
		t.Fatalf("connect c1: %v", err)
	}
	if err := f.chat.HandleConnect(ctx, c2, domain.Authenticated("buyer")); err != nil {
		t.Fatalf("connect c2: %v", err)
	}

	f.chat.HandleDisconnect(ctx, c1)

	if n, _ := f.store.Count(ctx, "buyer"); n != 1 {
		t.Errorf("presence count = %d, want 1", n)
	}
}
