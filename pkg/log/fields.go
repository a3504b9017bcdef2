package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID = "user_id"

	// Chat
	FieldRoomID    = "room_id"
	FieldConnID    = "conn_id"
	FieldMessageID = "message_id"

	// Service
	FieldService = "service"
)
