package models

import "time"

// MaxContentLength bounds message content after trimming.
const MaxContentLength = 1000

// Message represents one unit of conversation content. Immutable after
// creation except for the read/read-at transition.
type Message struct {
	ID             int        `db:"id" json:"id"`
	ConversationID int        `db:"conversation_id" json:"conversation_id"`
	SenderID       int        `db:"sender_id" json:"sender_id"`
	RecipientID    int        `db:"recipient_id" json:"recipient_id"`
	Content        string     `db:"content" json:"content"`
	Read           bool       `db:"read" json:"read"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// MessagePage is one window of a conversation's history, oldest first.
type MessagePage struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"has_more"`
}
