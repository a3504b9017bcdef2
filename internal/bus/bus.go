// Package bus is the process-wide broadcast transport beneath the broker.
// Every server instance subscribes to one shared channel; publishing a room
// event reaches the hub of every instance, including the publisher's own,
// so subscriber connections can live on any process.
package bus

import (
	"context"
	"encoding/json"
	"time"
)

// Event is one room-scoped broadcast unit: an already-encoded outbound
// frame addressed to a room's subscriber set.
type Event struct {
	RoomID    string          `json:"room_id"`
	Frame     json.RawMessage `json:"frame"`
	Timestamp time.Time       `json:"timestamp"`
}

// Bus is the broadcast transport. It is injected explicitly at
// construction and shared read-only for the process lifetime.
type Bus interface {
	// Publish sends an event to every subscribed instance.
	Publish(ctx context.Context, event *Event) error

	// Subscribe returns the stream of events published to the shared
	// channel. The returned channel closes when ctx is done.
	Subscribe(ctx context.Context) (<-chan *Event, error)

	// Close releases the transport.
	Close() error
}
