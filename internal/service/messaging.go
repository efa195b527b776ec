package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"messaging-service/internal/models"
	"messaging-service/internal/notify"
	"messaging-service/internal/repositories"
)

const (
	messagePageSize      = 50
	conversationPageSize = 20

	notifyTimeout = 5 * time.Second
)

// Coordinator is the in-memory reachability map used for best-effort realtime
// push. The hub implements it.
type Coordinator interface {
	Push(userID int, event string, payload any) bool
	IsReachable(userID int) bool
}

// ConversationPage is one window of a user's conversation list.
type ConversationPage struct {
	Conversations []models.ConversationSummary `json:"conversations"`
	Total         int                          `json:"total"`
	HasMore       bool                         `json:"has_more"`
}

// Messaging is the API surface the transport layer consumes.
type Messaging interface {
	Send(ctx context.Context, senderID, recipientID int, content string) (models.Message, error)
	OpenConversation(ctx context.Context, userID, conversationID, page int) (models.ConversationSummary, models.MessagePage, error)
	ListConversations(ctx context.Context, userID, page int) (ConversationPage, error)
	MarkRead(ctx context.Context, userID, conversationID int) error
	DeleteMessage(ctx context.Context, userID, messageID int) error
	DeleteConversation(ctx context.Context, userID, conversationID int) error
	UnreadCount(ctx context.Context, userID int) (int, error)
	TypingIndicator(ctx context.Context, fromUserID, toUserID, conversationID int, isTyping bool)
}

// MessagingService orchestrates the message store, the conversation registry,
// the delivery coordinator and the external collaborators as one logical
// operation per request.
type MessagingService struct {
	convs       repositories.ConversationRepository
	msgs        repositories.MessageRepository
	users       repositories.UserDirectory
	coordinator Coordinator
	notifier    notify.Notifier
}

// NewMessagingService builds a MessagingService.
func NewMessagingService(
	convs repositories.ConversationRepository,
	msgs repositories.MessageRepository,
	users repositories.UserDirectory,
	coordinator Coordinator,
	notifier notify.Notifier,
) *MessagingService {
	return &MessagingService{
		convs:       convs,
		msgs:        msgs,
		users:       users,
		coordinator: coordinator,
		notifier:    notifier,
	}
}

var _ Messaging = (*MessagingService)(nil)

// Send validates the request, persists the message and the conversation
// rollup, then attempts a best-effort push and a fire-and-forget notification.
// The caller always learns definitively whether the message was durably
// recorded; push and notification failures are invisible to the contract.
func (s *MessagingService) Send(ctx context.Context, senderID, recipientID int, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, validationf("content is empty")
	}
	if utf8.RuneCountInString(content) > models.MaxContentLength {
		return models.Message{}, validationf("content exceeds %d characters", models.MaxContentLength)
	}
	if senderID == recipientID {
		return models.Message{}, validationf("cannot message yourself")
	}

	exists, err := s.users.Exists(ctx, recipientID)
	if err != nil {
		return models.Message{}, transient(err)
	}
	if !exists {
		return models.Message{}, fmt.Errorf("%w: recipient %d", ErrNotFound, recipientID)
	}

	conv, err := s.convs.GetOrCreate(ctx, senderID, recipientID)
	if err != nil {
		if errors.Is(err, repositories.ErrCreateRaced) {
			return models.Message{}, fmt.Errorf("%w: conversation creation raced", ErrConflict)
		}
		return models.Message{}, transient(err)
	}

	msg, err := s.msgs.Append(ctx, conv.ID, senderID, recipientID, content)
	if err != nil {
		return models.Message{}, transient(err)
	}

	if err := s.convs.RecordNewMessage(ctx, conv.ID, msg.ID, recipientID); err != nil {
		// The send must never be partially applied: take the message row back
		// out before reporting failure.
		if delErr := s.msgs.Delete(context.WithoutCancel(ctx), msg.ID); delErr != nil {
			log.Printf("compensating delete of message %d failed: %v", msg.ID, delErr)
		}
		return models.Message{}, transient(err)
	}

	delivered := s.coordinator.Push(recipientID, models.EventMessageReceived, models.MessageReceivedPayload{
		Message:        &msg,
		ConversationID: conv.ID,
		From:           senderID,
	})
	if delivered {
		// Ephemeral signal to the sender's own connection; never persisted.
		s.coordinator.Push(senderID, models.EventMessageDelivered, map[string]int{
			"message_id":      msg.ID,
			"conversation_id": conv.ID,
		})
	}

	go s.notifyNewMessage(context.WithoutCancel(ctx), recipientID, senderID)

	return msg, nil
}

func (s *MessagingService) notifyNewMessage(ctx context.Context, recipientID, senderID int) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	senderName := ""
	if info, err := s.users.DisplayInfo(ctx, senderID); err == nil {
		senderName = info.Username
	}
	if err := s.notifier.NotifyNewMessage(ctx, recipientID, senderID, senderName); err != nil {
		log.Printf("new message notification failed: %v", err)
	}
}

// OpenConversation returns one page of messages and acknowledges them: the
// caller's unread counter resets and the other participant gets a read
// receipt if reachable.
func (s *MessagingService) OpenConversation(ctx context.Context, userID, conversationID, page int) (models.ConversationSummary, models.MessagePage, error) {
	if page < 1 {
		page = 1
	}

	conv, err := s.getAuthorized(ctx, userID, conversationID)
	if err != nil {
		return models.ConversationSummary{}, models.MessagePage{}, err
	}

	msgs, total, hasMore, err := s.msgs.Page(ctx, conv.ID, page, messagePageSize)
	if err != nil {
		return models.ConversationSummary{}, models.MessagePage{}, transient(err)
	}

	if err := s.markRead(ctx, conv, userID); err != nil {
		return models.ConversationSummary{}, models.MessagePage{}, err
	}

	summary := summarize(conv, userID)
	summary.Unread = 0
	return summary, models.MessagePage{Messages: msgs, Total: total, HasMore: hasMore}, nil
}

// MarkRead acknowledges the conversation for the user without paging it.
func (s *MessagingService) MarkRead(ctx context.Context, userID, conversationID int) error {
	conv, err := s.getAuthorized(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	return s.markRead(ctx, conv, userID)
}

// markRead persists the read transition on both the message log and the
// conversation rollup, then pushes the read receipt.
func (s *MessagingService) markRead(ctx context.Context, conv models.Conversation, userID int) error {
	if err := s.msgs.MarkConversationRead(ctx, conv.ID, userID); err != nil {
		return transient(err)
	}
	if err := s.convs.ClearUnread(ctx, conv.ID, userID); err != nil {
		return transient(err)
	}

	s.coordinator.Push(conv.OtherParticipant(userID), models.EventMessageRead, models.MessageReadPayload{
		ConversationID: conv.ID,
		ReadBy:         userID,
	})
	return nil
}

// ListConversations returns the user's conversations newest-activity first,
// each annotated with the other participant and the caller's unread count.
func (s *MessagingService) ListConversations(ctx context.Context, userID, page int) (ConversationPage, error) {
	if page < 1 {
		page = 1
	}

	convs, total, hasMore, err := s.convs.ListForUser(ctx, userID, page, conversationPageSize)
	if err != nil {
		return ConversationPage{}, transient(err)
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summaries = append(summaries, summarize(conv, userID))
	}
	return ConversationPage{Conversations: summaries, Total: total, HasMore: hasMore}, nil
}

// DeleteMessage removes a message permanently. Only the sender may delete it.
func (s *MessagingService) DeleteMessage(ctx context.Context, userID, messageID int) error {
	msg, err := s.msgs.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return fmt.Errorf("%w: message %d", ErrNotFound, messageID)
		}
		return transient(err)
	}
	if msg.SenderID != userID {
		return fmt.Errorf("%w: only the sender can delete a message", ErrAuthorization)
	}

	if err := s.msgs.Delete(ctx, messageID); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return fmt.Errorf("%w: message %d", ErrNotFound, messageID)
		}
		return transient(err)
	}
	return nil
}

// DeleteConversation removes the conversation and all of its messages. Either
// participant may delete it. The message rows go with the conversation row via
// the foreign key cascade, so the removal is one atomic statement.
func (s *MessagingService) DeleteConversation(ctx context.Context, userID, conversationID int) error {
	conv, err := s.getAuthorized(ctx, userID, conversationID)
	if err != nil {
		return err
	}

	if err := s.convs.Delete(ctx, conv.ID); err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return nil
		}
		return transient(err)
	}
	return nil
}

// UnreadCount returns the user's unread message count across all
// conversations.
func (s *MessagingService) UnreadCount(ctx context.Context, userID int) (int, error) {
	count, err := s.msgs.UnreadCountFor(ctx, userID)
	if err != nil {
		return 0, transient(err)
	}
	return count, nil
}

// TypingIndicator forwards a typing signal to the target's connection. It is
// never persisted and never fails the caller, reachable target or not.
func (s *MessagingService) TypingIndicator(ctx context.Context, fromUserID, toUserID, conversationID int, isTyping bool) {
	s.coordinator.Push(toUserID, models.EventMessageTyping, models.TypingPayload{
		ConversationID: conversationID,
		UserID:         fromUserID,
		IsTyping:       isTyping,
	})
}

func (s *MessagingService) getAuthorized(ctx context.Context, userID, conversationID int) (models.Conversation, error) {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return models.Conversation{}, fmt.Errorf("%w: conversation %d", ErrNotFound, conversationID)
		}
		return models.Conversation{}, transient(err)
	}
	if !conv.HasParticipant(userID) {
		return models.Conversation{}, fmt.Errorf("%w: not a participant of conversation %d", ErrAuthorization, conversationID)
	}
	return conv, nil
}

func summarize(conv models.Conversation, userID int) models.ConversationSummary {
	return models.ConversationSummary{
		ConversationID: conv.ID,
		FriendID:       conv.OtherParticipant(userID),
		Unread:         conv.UnreadFor(userID),
		LastMessageID:  conv.LastMessageID,
		LastMessageAt:  conv.LastMessageAt,
		CreatedAt:      conv.CreatedAt,
	}
}
