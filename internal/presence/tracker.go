// Package presence tracks per-user online state. Presence is advisory: it
// gates the notification fallback, never message durability, so every
// failure here is logged and swallowed rather than surfaced to the
// connection lifecycle.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/JunyongPark97/SIIOT-chat-server/pkg/log"
)

// Store persists per-user connection counts.
type Store interface {
	// Increment adds one connection for the user and returns the new count.
	Increment(ctx context.Context, userID string, ttl time.Duration) (int64, error)

	// Decrement removes one connection for the user and returns the new
	// count. Never goes below zero.
	Decrement(ctx context.Context, userID string) (int64, error)

	// Count returns the user's current connection count.
	Count(ctx context.Context, userID string) (int64, error)

	// Refresh extends the TTL on the user's count entry.
	Refresh(ctx context.Context, userID string, ttl time.Duration) error

	// Close closes the store connection.
	Close() error
}

// Tracker maps user ids to an active flag derived from a connection count.
// A user stays active until the LAST of their simultaneous connections
// disconnects; disconnecting one of several never flips the flag.
type Tracker struct {
	store             Store
	ttl               time.Duration
	heartbeatInterval time.Duration

	mu     sync.Mutex
	local  map[string]int // userID -> connections on this instance
	cancel context.CancelFunc
}

// NewTracker creates a presence tracker over the given store.
func NewTracker(store Store, ttl, heartbeatInterval time.Duration) *Tracker {
	return &Tracker{
		store:             store,
		ttl:               ttl,
		heartbeatInterval: heartbeatInterval,
		local:             make(map[string]int),
	}
}

// Connected records one new connection for the user.
func (t *Tracker) Connected(ctx context.Context, userID string) {
	if userID == "" {
		return
	}

	if _, err := t.store.Increment(ctx, userID, t.ttl); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("presence update failed on connect")
		return
	}

	t.mu.Lock()
	t.local[userID]++
	t.mu.Unlock()
}

// Disconnected records one closed connection for the user. Idempotent for
// users that were never marked connected.
func (t *Tracker) Disconnected(ctx context.Context, userID string) {
	if userID == "" {
		return
	}

	if _, err := t.store.Decrement(ctx, userID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("presence update failed on disconnect")
	}

	t.mu.Lock()
	if t.local[userID] > 1 {
		t.local[userID]--
	} else {
		delete(t.local, userID)
	}
	t.mu.Unlock()
}

// IsActive reports whether the user holds at least one open connection
// anywhere.
func (t *Tracker) IsActive(ctx context.Context, userID string) (bool, error) {
	n, err := t.store.Count(ctx, userID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// StartHeartbeat refreshes the TTL of entries owned by this instance so a
// live connection is never expired by the store.
func (t *Tracker) StartHeartbeat(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go t.heartbeatLoop(ctx)

	l := log.L()
	l.Info().Dur("interval", t.heartbeatInterval).Dur("ttl", t.ttl).Msg("presence heartbeat started")
}

func (t *Tracker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(t.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.refresh(ctx)
		}
	}
}

func (t *Tracker) refresh(ctx context.Context) {
	t.mu.Lock()
	users := make([]string, 0, len(t.local))
	for u := range t.local {
		users = append(users, u)
	}
	t.mu.Unlock()

	for _, u := range users {
		if err := t.store.Refresh(ctx, u, t.ttl); err != nil {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldUserID, u).Msg("presence refresh failed")
		}
	}
}

// Stop halts the heartbeat loop.
func (t *Tracker) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
}
