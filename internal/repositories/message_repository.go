package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, conversation_id, sender_id, recipient_id, content, read, read_at, created_at`

// MessageRepository defines interactions with the durable message log.
type MessageRepository interface {
	Append(ctx context.Context, conversationID, senderID, recipientID int, content string) (models.Message, error)
	Page(ctx context.Context, conversationID, page, pageSize int) ([]models.Message, int, bool, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID int) error
	UnreadCountFor(ctx context.Context, userID int) (int, error)
	Get(ctx context.Context, messageID int) (models.Message, error)
	Delete(ctx context.Context, messageID int) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a new message and returns it with its assigned id and
// timestamp.
func (r *MessageRepo) Append(ctx context.Context, conversationID, senderID, recipientID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, sender_id, recipient_id, content)
        VALUES ($1, $2, $3, $4)
        RETURNING `+messageColumns, conversationID, senderID, recipientID, content).
		StructScan(&msg)
	return msg, err
}

// Page returns one window of the conversation's history. Page 1 is the most
// recent window; rows within a page are oldest first. Internally the query
// fetches newest-first and the slice is reversed.
func (r *MessageRepo) Page(ctx context.Context, conversationID, page, pageSize int) ([]models.Message, int, bool, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM messages WHERE conversation_id=$1`, conversationID); err != nil {
		return nil, 0, false, err
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + messageColumns + ` FROM messages
        WHERE conversation_id=$1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3`
	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, conversationID, pageSize, offset); err != nil {
		return nil, 0, false, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, total, offset+len(msgs) < total, nil
}

// MarkConversationRead flips every unread message addressed to the reader in
// the conversation. Idempotent.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID, readerID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET read = TRUE, read_at = NOW()
        WHERE conversation_id=$1 AND recipient_id=$2 AND read = FALSE`, conversationID, readerID)
	return err
}

// UnreadCountFor counts unread messages addressed to the user across all
// conversations.
func (r *MessageRepo) UnreadCountFor(ctx context.Context, userID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages WHERE recipient_id=$1 AND read = FALSE`, userID)
	return count, err
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// Delete removes a message permanently.
func (r *MessageRepo) Delete(ctx context.Context, messageID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
