package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
	"messaging-service/internal/notify"
	"messaging-service/internal/repositories"
	"messaging-service/internal/service"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) GetOrCreate(ctx context.Context, userA, userB int) (models.Conversation, error) {
	args := m.Called(ctx, userA, userB)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID, page, pageSize int) ([]models.Conversation, int, bool, error) {
	args := m.Called(ctx, userID, page, pageSize)
	var convs []models.Conversation
	if val := args.Get(0); val != nil {
		convs = val.([]models.Conversation)
	}
	return convs, args.Int(1), args.Bool(2), args.Error(3)
}

func (m *ConversationRepositoryMock) RecordNewMessage(ctx context.Context, conversationID, messageID, recipientID int) error {
	args := m.Called(ctx, conversationID, messageID, recipientID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) ClearUnread(ctx context.Context, conversationID, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) Delete(ctx context.Context, conversationID int) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, conversationID, senderID, recipientID int, content string) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, recipientID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Page(ctx context.Context, conversationID, page, pageSize int) ([]models.Message, int, bool, error) {
	args := m.Called(ctx, conversationID, page, pageSize)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Int(1), args.Bool(2), args.Error(3)
}

func (m *MessageRepositoryMock) MarkConversationRead(ctx context.Context, conversationID, readerID int) error {
	args := m.Called(ctx, conversationID, readerID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) UnreadCountFor(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Delete(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type UserDirectoryMock struct {
	mock.Mock
}

func (m *UserDirectoryMock) Exists(ctx context.Context, userID int) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *UserDirectoryMock) DisplayInfo(ctx context.Context, userID int) (models.UserInfo, error) {
	args := m.Called(ctx, userID)
	var info models.UserInfo
	if val := args.Get(0); val != nil {
		info = val.(models.UserInfo)
	}
	return info, args.Error(1)
}

func (m *UserDirectoryMock) BulkDisplayInfo(ctx context.Context, userIDs []int) (map[int]models.UserInfo, error) {
	args := m.Called(ctx, userIDs)
	var infos map[int]models.UserInfo
	if val := args.Get(0); val != nil {
		infos = val.(map[int]models.UserInfo)
	}
	return infos, args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) NotifyNewMessage(ctx context.Context, recipientID, senderID int, senderDisplayName string) error {
	args := m.Called(ctx, recipientID, senderID, senderDisplayName)
	return args.Error(0)
}

func (m *NotifierMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

type CoordinatorMock struct {
	mock.Mock
}

func (m *CoordinatorMock) Push(userID int, event string, payload any) bool {
	args := m.Called(userID, event, payload)
	return args.Bool(0)
}

func (m *CoordinatorMock) IsReachable(userID int) bool {
	args := m.Called(userID)
	return args.Bool(0)
}

type MessagingMock struct {
	mock.Mock
}

func (m *MessagingMock) Send(ctx context.Context, senderID, recipientID int, content string) (models.Message, error) {
	args := m.Called(ctx, senderID, recipientID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessagingMock) OpenConversation(ctx context.Context, userID, conversationID, page int) (models.ConversationSummary, models.MessagePage, error) {
	args := m.Called(ctx, userID, conversationID, page)
	var summary models.ConversationSummary
	if val := args.Get(0); val != nil {
		summary = val.(models.ConversationSummary)
	}
	var msgs models.MessagePage
	if val := args.Get(1); val != nil {
		msgs = val.(models.MessagePage)
	}
	return summary, msgs, args.Error(2)
}

func (m *MessagingMock) ListConversations(ctx context.Context, userID, page int) (service.ConversationPage, error) {
	args := m.Called(ctx, userID, page)
	var result service.ConversationPage
	if val := args.Get(0); val != nil {
		result = val.(service.ConversationPage)
	}
	return result, args.Error(1)
}

func (m *MessagingMock) MarkRead(ctx context.Context, userID, conversationID int) error {
	args := m.Called(ctx, userID, conversationID)
	return args.Error(0)
}

func (m *MessagingMock) DeleteMessage(ctx context.Context, userID, messageID int) error {
	args := m.Called(ctx, userID, messageID)
	return args.Error(0)
}

func (m *MessagingMock) DeleteConversation(ctx context.Context, userID, conversationID int) error {
	args := m.Called(ctx, userID, conversationID)
	return args.Error(0)
}

func (m *MessagingMock) UnreadCount(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MessagingMock) TypingIndicator(ctx context.Context, fromUserID, toUserID, conversationID int, isTyping bool) {
	m.Called(ctx, fromUserID, toUserID, conversationID, isTyping)
}

var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.UserDirectory = (*UserDirectoryMock)(nil)
var _ notify.Notifier = (*NotifierMock)(nil)
var _ service.Coordinator = (*CoordinatorMock)(nil)
var _ service.Messaging = (*MessagingMock)(nil)
