package domain

// ClientError is a client-facing websocket error, mapped deterministically
// to a wire error frame. It is a value, not control flow.
type ClientError struct {
	Code    int
	Message string
}

func (e *ClientError) Error() string {
	return e.Message
}

var (
	// ErrClientGeneric answers frames the server cannot otherwise classify.
	ErrClientGeneric = &ClientError{Code: 0, Message: "Client error."}

	// ErrNotLoggedIn answers frames received before handshake completion.
	ErrNotLoggedIn = &ClientError{Code: 1, Message: "You are not logged in."}

	// ErrBadPayload answers malformed or unrecognized inbound frames.
	ErrBadPayload = &ClientError{Code: 2, Message: "Malformed message payload."}
)

// ErrorFrame is the wire form of a ClientError.
type ErrorFrame struct {
	Type         string `json:"type"` // always "ERROR"
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// NewErrorFrame maps a ClientError to its wire form.
func NewErrorFrame(e *ClientError) *ErrorFrame {
	return &ErrorFrame{
		Type:         FrameError,
		ErrorCode:    e.Code,
		ErrorMessage: e.Message,
	}
}

// InboundKind tags a decoded inbound frame.
type InboundKind int

const (
	InboundText InboundKind = iota + 1
	InboundImage
)

// Inbound is a decoded client frame. Exactly one of Text or ImageKeys is
// populated, selected by Kind.
type Inbound struct {
	Kind      InboundKind
	Text      string
	ImageKeys []string
}

// Type maps the inbound kind to the persisted message type.
func (in *Inbound) Type() MessageType {
	if in.Kind == InboundImage {
		return MessageTypeImage
	}
	return MessageTypeText
}
