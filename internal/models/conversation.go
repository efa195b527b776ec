package models

import "time"

// Conversation represents the private messaging relationship between exactly
// two users, with participants stored in canonical order (User1ID < User2ID).
type Conversation struct {
	ID            int        `db:"id" json:"id"`
	User1ID       int        `db:"user1_id" json:"user1_id"`
	User2ID       int        `db:"user2_id" json:"user2_id"`
	LastMessageID *int       `db:"last_message_id" json:"last_message_id,omitempty"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	Unread1       int        `db:"unread1" json:"-"`
	Unread2       int        `db:"unread2" json:"-"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// HasParticipant reports whether the user belongs to the conversation.
func (c Conversation) HasParticipant(userID int) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// OtherParticipant returns the counterpart of userID. Callers must have
// verified participation first.
func (c Conversation) OtherParticipant(userID int) int {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// UnreadFor returns the unread counter belonging to userID.
func (c Conversation) UnreadFor(userID int) int {
	if c.User1ID == userID {
		return c.Unread1
	}
	if c.User2ID == userID {
		return c.Unread2
	}
	return 0
}

// CanonicalPair orders two user ids into the (user1, user2) storage order.
func CanonicalPair(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}

// ConversationSummary provides the API-friendly view of a conversation for one
// participant.
type ConversationSummary struct {
	ConversationID int        `json:"conversation_id"`
	FriendID       int        `json:"friend_id"`
	Unread         int        `json:"unread"`
	LastMessageID  *int       `json:"last_message_id,omitempty"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
