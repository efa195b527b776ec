package models

// Event names pushed to connected clients.
const (
	EventMessageReceived  = "message:received"
	EventMessageDelivered = "message:delivered"
	EventMessageRead      = "message:read"
	EventMessageTyping    = "message:typing"
)

// PushEvent is the envelope written to a websocket connection.
type PushEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// MessageReceivedPayload accompanies EventMessageReceived.
type MessageReceivedPayload struct {
	Message        *Message `json:"message"`
	ConversationID int      `json:"conversation_id"`
	From           int      `json:"from"`
}

// MessageReadPayload accompanies EventMessageRead.
type MessageReadPayload struct {
	ConversationID int `json:"conversation_id"`
	ReadBy         int `json:"read_by"`
}

// TypingPayload accompanies EventMessageTyping.
type TypingPayload struct {
	ConversationID int  `json:"conversation_id"`
	UserID         int  `json:"user_id"`
	IsTyping       bool `json:"is_typing"`
}
