package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrCreateRaced is returned when a concurrent first-contact race could
	// not be resolved by re-reading after the conflicting insert.
	ErrCreateRaced = errors.New("conversation creation raced")
)

const conversationColumns = `id, user1_id, user2_id, last_message_id, last_message_at, unread1, unread2, created_at`

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	GetOrCreate(ctx context.Context, userA, userB int) (models.Conversation, error)
	Get(ctx context.Context, conversationID int) (models.Conversation, error)
	ListForUser(ctx context.Context, userID, page, pageSize int) ([]models.Conversation, int, bool, error)
	RecordNewMessage(ctx context.Context, conversationID, messageID, recipientID int) error
	ClearUnread(ctx context.Context, conversationID, userID int) error
	Delete(ctx context.Context, conversationID int) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// GetOrCreate returns the conversation for the unordered pair, creating it if
// absent. Concurrent first contact is resolved by the unique constraint on the
// canonical pair: the losing insert sees no row back and re-reads.
func (r *ConversationRepo) GetOrCreate(ctx context.Context, userA, userB int) (models.Conversation, error) {
	user1, user2 := models.CanonicalPair(userA, userB)

	var conv models.Conversation
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE user1_id=$1 AND user2_id=$2`
	err := r.db.GetContext(ctx, &conv, query, user1, user2)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	insert := `INSERT INTO conversations (user1_id, user2_id) VALUES ($1, $2)
        ON CONFLICT (user1_id, user2_id) DO NOTHING
        RETURNING ` + conversationColumns
	err = r.db.GetContext(ctx, &conv, insert, user1, user2)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	// Lost the race; the winner's row must be visible now.
	err = r.db.GetContext(ctx, &conv, query, user1, user2)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrCreateRaced
	}
	return conv, err
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListForUser returns the user's conversations ordered by recency of the last
// message, newest first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID, page, pageSize int) ([]models.Conversation, int, bool, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM conversations WHERE user1_id=$1 OR user2_id=$1`, userID); err != nil {
		return nil, 0, false, err
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + conversationColumns + ` FROM conversations
        WHERE user1_id=$1 OR user2_id=$1
        ORDER BY last_message_at DESC NULLS LAST, id DESC
        LIMIT $2 OFFSET $3`
	var convs []models.Conversation
	if err := r.db.SelectContext(ctx, &convs, query, userID, pageSize, offset); err != nil {
		return nil, 0, false, err
	}
	return convs, total, offset+len(convs) < total, nil
}

// RecordNewMessage updates the last-message rollup and increments the
// recipient's unread counter. A single statement keeps concurrent increments
// from being lost.
func (r *ConversationRepo) RecordNewMessage(ctx context.Context, conversationID, messageID, recipientID int) error {
	query := `UPDATE conversations SET
            last_message_id = $2,
            last_message_at = NOW(),
            unread1 = unread1 + (CASE WHEN user1_id = $3 THEN 1 ELSE 0 END),
            unread2 = unread2 + (CASE WHEN user2_id = $3 THEN 1 ELSE 0 END)
        WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, conversationID, messageID, recipientID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// ClearUnread resets the user's unread counter to zero.
func (r *ConversationRepo) ClearUnread(ctx context.Context, conversationID, userID int) error {
	query := `UPDATE conversations SET
            unread1 = (CASE WHEN user1_id = $2 THEN 0 ELSE unread1 END),
            unread2 = (CASE WHEN user2_id = $2 THEN 0 ELSE unread2 END)
        WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, conversationID, userID)
	return err
}

// Delete removes the conversation. Messages go with it via the foreign key
// cascade.
func (r *ConversationRepo) Delete(ctx context.Context, conversationID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id=$1`, conversationID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}
	return nil
}
