// Package broker decouples the write paths (websocket inbound, HTTP
// deliver) from the push path. A message handed to the broker is already
// persisted; the broker only encodes it and moves it through the broadcast
// bus to every instance's hub for fan-out.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/bus"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/codec"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/domain"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/hub"
	"github.com/JunyongPark97/SIIOT-chat-server/pkg/log"
)

// Broker fans persisted messages out to a room's live subscribers.
type Broker struct {
	bus bus.Bus
	hub *hub.Hub
}

// NewBroker creates a broker over the given bus and local hub. Both are
// shared handles owned by the caller for the process lifetime.
func NewBroker(b bus.Bus, h *hub.Hub) *Broker {
	return &Broker{bus: b, hub: h}
}

// Deliver pushes a message view to every current subscriber of roomID, on
// this instance and every other one subscribed to the bus. Delivery is
// at-most-once per connection, best-effort; per-room order follows the
// order of Deliver calls through the single bus channel.
func (b *Broker) Deliver(ctx context.Context, roomID string, view *domain.MessageView) error {
	data, err := codec.EncodeMessage(view)
	if err != nil {
		return fmt.Errorf("failed to encode message frame: %w", err)
	}

	event := &bus.Event{
		RoomID:    roomID,
		Frame:     data,
		Timestamp: time.Now(),
	}

	if err := b.bus.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish room event: %w", err)
	}

	return nil
}

// Run consumes the bus and hands each event to the local hub for fan-out.
// Every instance runs this loop, including the one that published.
func (b *Broker) Run(ctx context.Context) error {
	events, err := b.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to bus: %w", err)
	}

	l := log.L()
	l.Info().Msg("broker fan-out loop started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			b.hub.Broadcast(event.RoomID, event.Frame, "")
		}
	}
}
