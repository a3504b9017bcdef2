// Package codec implements the wire format for chat frames: inbound client
// payloads, outbound message frames, and error frames. Decoding failures are
// reported as client errors, never as transport faults.
package codec

import (
	"encoding/json"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/domain"
)

// inboundEnvelope covers both accepted inbound shapes: the minimal
// {"message": "..."} form and the typed {message_type, text, image_key} form.
type inboundEnvelope struct {
	Message     *string  `json:"message"`
	MessageType *int     `json:"message_type"`
	Text        *string  `json:"text"`
	ImageKey    []string `json:"image_key"`
}

// DecodeInbound parses a client frame into its tagged form. A nil
// *domain.ClientError means the frame decoded cleanly.
func DecodeInbound(data []byte) (*domain.Inbound, *domain.ClientError) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, domain.ErrBadPayload
	}

	// Typed form wins when message_type is present.
	if env.MessageType != nil {
		switch domain.MessageType(*env.MessageType) {
		case domain.MessageTypeText:
			if env.Text == nil || *env.Text == "" {
				return nil, domain.ErrBadPayload
			}
			return &domain.Inbound{Kind: domain.InboundText, Text: *env.Text}, nil

		case domain.MessageTypeImage:
			if len(env.ImageKey) == 0 {
				return nil, domain.ErrBadPayload
			}
			return &domain.Inbound{Kind: domain.InboundImage, ImageKeys: env.ImageKey}, nil

		default:
			return nil, domain.ErrBadPayload
		}
	}

	// Minimal form.
	if env.Message != nil && *env.Message != "" {
		return &domain.Inbound{Kind: domain.InboundText, Text: *env.Message}, nil
	}

	return nil, domain.ErrBadPayload
}

// EncodeMessage serializes an outbound message frame.
func EncodeMessage(view *domain.MessageView) ([]byte, error) {
	return json.Marshal(view)
}

// EncodeError serializes the wire frame for a client error. The frame shape
// is static, so marshalling cannot fail.
func EncodeError(e *domain.ClientError) []byte {
	data, _ := json.Marshal(domain.NewErrorFrame(e))
	return data
}
