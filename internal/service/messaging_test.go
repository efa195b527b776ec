package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/service"
)

type fixture struct {
	convs       *mocks.ConversationRepositoryMock
	msgs        *mocks.MessageRepositoryMock
	users       *mocks.UserDirectoryMock
	coordinator *mocks.CoordinatorMock
	notifier    *mocks.NotifierMock
	svc         *service.MessagingService
}

func newFixture() *fixture {
	f := &fixture{
		convs:       new(mocks.ConversationRepositoryMock),
		msgs:        new(mocks.MessageRepositoryMock),
		users:       new(mocks.UserDirectoryMock),
		coordinator: new(mocks.CoordinatorMock),
		notifier:    new(mocks.NotifierMock),
	}
	f.svc = service.NewMessagingService(f.convs, f.msgs, f.users, f.coordinator, f.notifier)
	return f
}

// allowNotify permits the async fire-and-forget notification path without
// requiring it, since it runs on its own goroutine.
func (f *fixture) allowNotify() {
	f.users.On("DisplayInfo", mock.Anything, mock.Anything).Return(models.UserInfo{ID: 1, Username: "alice"}, nil).Maybe()
	f.notifier.On("NotifyNewMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
}

func TestSendPersistsAndPushes(t *testing.T) {
	f := newFixture()
	f.allowNotify()

	conv := models.Conversation{ID: 5, User1ID: 1, User2ID: 2}
	stored := models.Message{ID: 9, ConversationID: 5, SenderID: 1, RecipientID: 2, Content: "hi"}

	f.users.On("Exists", mock.Anything, 2).Return(true, nil).Once()
	f.convs.On("GetOrCreate", mock.Anything, 1, 2).Return(conv, nil).Once()
	f.msgs.On("Append", mock.Anything, 5, 1, 2, "hi").Return(stored, nil).Once()
	f.convs.On("RecordNewMessage", mock.Anything, 5, 9, 2).Return(nil).Once()
	f.coordinator.On("Push", 2, models.EventMessageReceived, mock.Anything).Return(true).Once()
	f.coordinator.On("Push", 1, models.EventMessageDelivered, mock.Anything).Return(true).Once()

	// Content is trimmed before any write.
	msg, err := f.svc.Send(context.Background(), 1, 2, "  hi  ")
	require.NoError(t, err)
	assert.Equal(t, 9, msg.ID)
	assert.Equal(t, "hi", msg.Content)

	f.convs.AssertExpectations(t)
	f.msgs.AssertExpectations(t)
	f.coordinator.AssertExpectations(t)
}

func TestSendOfflineRecipientSkipsDeliveredSignal(t *testing.T) {
	f := newFixture()
	f.allowNotify()

	conv := models.Conversation{ID: 5, User1ID: 1, User2ID: 2}
	stored := models.Message{ID: 9, ConversationID: 5, SenderID: 1, RecipientID: 2, Content: "hi"}

	f.users.On("Exists", mock.Anything, 2).Return(true, nil).Once()
	f.convs.On("GetOrCreate", mock.Anything, 1, 2).Return(conv, nil).Once()
	f.msgs.On("Append", mock.Anything, 5, 1, 2, "hi").Return(stored, nil).Once()
	f.convs.On("RecordNewMessage", mock.Anything, 5, 9, 2).Return(nil).Once()
	f.coordinator.On("Push", 2, models.EventMessageReceived, mock.Anything).Return(false).Once()

	// The send still succeeds; the recipient discovers the message on next
	// fetch.
	_, err := f.svc.Send(context.Background(), 1, 2, "hi")
	require.NoError(t, err)

	f.coordinator.AssertExpectations(t)
	f.coordinator.AssertNotCalled(t, "Push", 1, models.EventMessageDelivered, mock.Anything)
}

func TestConcurrentSendsRecordEveryMessage(t *testing.T) {
	f := newFixture()
	f.allowNotify()

	const sends = 16
	conv := models.Conversation{ID: 5, User1ID: 1, User2ID: 2}
	stored := models.Message{ID: 9, ConversationID: 5, SenderID: 1, RecipientID: 2, Content: "hi"}

	f.users.On("Exists", mock.Anything, 2).Return(true, nil).Times(sends)
	f.convs.On("GetOrCreate", mock.Anything, 1, 2).Return(conv, nil).Times(sends)
	f.msgs.On("Append", mock.Anything, 5, 1, 2, "hi").Return(stored, nil).Times(sends)
	f.convs.On("RecordNewMessage", mock.Anything, 5, 9, 2).Return(nil).Times(sends)
	f.coordinator.On("Push", mock.Anything, mock.Anything, mock.Anything).Return(false)

	var wg sync.WaitGroup
	for i := 0; i < sends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Send(context.Background(), 1, 2, "hi")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// One rollup update per persisted message: no increment is lost and none
	// is applied twice.
	f.convs.AssertNumberOfCalls(t, "RecordNewMessage", sends)
	f.convs.AssertExpectations(t)
	f.msgs.AssertExpectations(t)
}

func TestSendValidation(t *testing.T) {
	tests := []struct {
		name        string
		senderID    int
		recipientID int
		content     string
	}{
		{"empty content", 1, 2, ""},
		{"whitespace only", 1, 2, "   \n\t "},
		{"too long", 1, 2, strings.Repeat("a", models.MaxContentLength+1)},
		{"self send", 1, 1, "hi"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Send(context.Background(), tc.senderID, tc.recipientID, tc.content)
			require.ErrorIs(t, err, service.ErrValidation)
			f.msgs.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSendContentAtBoundIsAccepted(t *testing.T) {
	f := newFixture()
	f.allowNotify()

	content := strings.Repeat("a", models.MaxContentLength)
	conv := models.Conversation{ID: 5, User1ID: 1, User2ID: 2}

	f.users.On("Exists", mock.Anything, 2).Return(true, nil).Once()
	f.convs.On("GetOrCreate", mock.Anything, 1, 2).Return(conv, nil).Once()
	f.msgs.On("Append", mock.Anything, 5, 1, 2, content).
		Return(models.Message{ID: 9, Content: content}, nil).Once()
	f.convs.On("RecordNewMessage", mock.Anything, 5, 9, 2).Return(nil).Once()
	f.coordinator.On("Push", mock.Anything, mock.Anything, mock.Anything).Return(false)

	_, err := f.svc.Send(context.Background(), 1, 2, content)
	require.NoError(t, err)
}

func TestSendUnknownRecipient(t *testing.T) {
	f := newFixture()

	f.users.On("Exists", mock.Anything, 99).Return(false, nil).Once()

	_, err := f.svc.Send(context.Background(), 1, 99, "hi")
	require.ErrorIs(t, err, service.ErrNotFound)
	f.convs.AssertNotCalled(t, "GetOrCreate", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendCreateRaceSurfacesConflict(t *testing.T) {
	f := newFixture()

	f.users.On("Exists", mock.Anything, 2).Return(true, nil).Once()
	f.convs.On("GetOrCreate", mock.Anything, 1, 2).Return(models.Conversation{}, repositories.ErrCreateRaced).Once()

	_, err := f.svc.Send(context.Background(), 1, 2, "hi")
	require.ErrorIs(t, err, service.ErrConflict)
}

func TestSendRollupFailureCompensates(t *testing.T) {
	f := newFixture()

	conv := models.Conversation{ID: 5, User1ID: 1, User2ID: 2}
	stored := models.Message{ID: 9, ConversationID: 5, SenderID: 1, RecipientID: 2, Content: "hi"}

	f.users.On("Exists", mock.Anything, 2).Return(true, nil).Once()
	f.convs.On("GetOrCreate", mock.Anything, 1, 2).Return(conv, nil).Once()
	f.msgs.On("Append", mock.Anything, 5, 1, 2, "hi").Return(stored, nil).Once()
	f.convs.On("RecordNewMessage", mock.Anything, 5, 9, 2).Return(assert.AnError).Once()
	f.msgs.On("Delete", mock.Anything, 9).Return(nil).Once()

	_, err := f.svc.Send(context.Background(), 1, 2, "hi")
	require.ErrorIs(t, err, service.ErrTransient)

	// Nothing is pushed for a send that failed as a whole.
	f.coordinator.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything)
	f.msgs.AssertExpectations(t)
}

func TestOpenConversationMarksReadAndNotifiesSender(t *testing.T) {
	f := newFixture()

	conv := models.Conversation{ID: 5, User1ID: 1, User2ID: 2, Unread1: 3}
	now := time.Now()
	history := []models.Message{{ID: 8, Content: "hi", CreatedAt: now}}

	f.convs.On("Get", mock.Anything, 5).Return(conv, nil).Once()
	f.msgs.On("Page", mock.Anything, 5, 1, mock.Anything).Return(history, 1, false, nil).Once()
	f.msgs.On("MarkConversationRead", mock.Anything, 5, 1).Return(nil).Once()
	f.convs.On("ClearUnread", mock.Anything, 5, 1).Return(nil).Once()
	f.coordinator.On("Push", 2, models.EventMessageRead, models.MessageReadPayload{ConversationID: 5, ReadBy: 1}).Return(true).Once()

	summary, page, err := f.svc.OpenConversation(context.Background(), 1, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Unread)
	assert.Equal(t, 2, summary.FriendID)
	assert.Len(t, page.Messages, 1)

	f.convs.AssertExpectations(t)
	f.msgs.AssertExpectations(t)
	f.coordinator.AssertExpectations(t)
}

func TestOpenConversationNotFound(t *testing.T) {
	f := newFixture()

	f.convs.On("Get", mock.Anything, 5).Return(models.Conversation{}, repositories.ErrConversationNotFound).Once()

	_, _, err := f.svc.OpenConversation(context.Background(), 1, 5, 1)
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestOpenConversationNotParticipant(t *testing.T) {
	f := newFixture()

	conv := models.Conversation{ID: 5, User1ID: 1, User2ID: 2}
	f.convs.On("Get", mock.Anything, 5).Return(conv, nil).Once()

	_, _, err := f.svc.OpenConversation(context.Background(), 9, 5, 1)
	require.ErrorIs(t, err, service.ErrAuthorization)
	f.msgs.AssertNotCalled(t, "Page", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadFailureSurfaces(t *testing.T) {
	f := newFixture()

	conv := models.Conversation{ID: 5, User1ID: 1, User2ID: 2}
	f.convs.On("Get", mock.Anything, 5).Return(conv, nil).Once()
	f.msgs.On("MarkConversationRead", mock.Anything, 5, 1).Return(assert.AnError).Once()

	err := f.svc.MarkRead(context.Background(), 1, 5)
	require.ErrorIs(t, err, service.ErrTransient)
	f.coordinator.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything)
}

func TestListConversationsAnnotatesCaller(t *testing.T) {
	f := newFixture()

	convs := []models.Conversation{
		{ID: 5, User1ID: 1, User2ID: 2, Unread1: 4, Unread2: 7},
		{ID: 6, User1ID: 1, User2ID: 3, Unread1: 0, Unread2: 2},
	}
	f.convs.On("ListForUser", mock.Anything, 1, 1, mock.Anything).Return(convs, 2, false, nil).Once()

	page, err := f.svc.ListConversations(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, page.Conversations, 2)

	assert.Equal(t, 2, page.Conversations[0].FriendID)
	assert.Equal(t, 4, page.Conversations[0].Unread)
	assert.Equal(t, 3, page.Conversations[1].FriendID)
	assert.Equal(t, 0, page.Conversations[1].Unread)
}

func TestDeleteMessageRequiresOwnership(t *testing.T) {
	f := newFixture()

	msg := models.Message{ID: 9, ConversationID: 5, SenderID: 2, RecipientID: 1}
	f.msgs.On("Get", mock.Anything, 9).Return(msg, nil).Once()

	err := f.svc.DeleteMessage(context.Background(), 1, 9)
	require.ErrorIs(t, err, service.ErrAuthorization)
	f.msgs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteMessageByOwner(t *testing.T) {
	f := newFixture()

	msg := models.Message{ID: 9, ConversationID: 5, SenderID: 1, RecipientID: 2}
	f.msgs.On("Get", mock.Anything, 9).Return(msg, nil).Once()
	f.msgs.On("Delete", mock.Anything, 9).Return(nil).Once()

	require.NoError(t, f.svc.DeleteMessage(context.Background(), 1, 9))
	f.msgs.AssertExpectations(t)
}

func TestDeleteConversationCascades(t *testing.T) {
	f := newFixture()

	conv := models.Conversation{ID: 5, User1ID: 1, User2ID: 2}
	f.convs.On("Get", mock.Anything, 5).Return(conv, nil).Once()
	f.convs.On("Delete", mock.Anything, 5).Return(nil).Once()

	require.NoError(t, f.svc.DeleteConversation(context.Background(), 2, 5))
	f.convs.AssertExpectations(t)
	// Message rows are removed by the database cascade; the message log is
	// never touched directly.
	f.msgs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteConversationNotParticipant(t *testing.T) {
	f := newFixture()

	conv := models.Conversation{ID: 5, User1ID: 1, User2ID: 2}
	f.convs.On("Get", mock.Anything, 5).Return(conv, nil).Once()

	err := f.svc.DeleteConversation(context.Background(), 9, 5)
	require.ErrorIs(t, err, service.ErrAuthorization)
	f.convs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestUnreadCount(t *testing.T) {
	f := newFixture()

	f.msgs.On("UnreadCountFor", mock.Anything, 1).Return(3, nil).Once()

	count, err := f.svc.UnreadCount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestTypingIndicatorNeverFails(t *testing.T) {
	f := newFixture()

	f.coordinator.On("Push", 2, models.EventMessageTyping, models.TypingPayload{ConversationID: 5, UserID: 1, IsTyping: true}).Return(false).Once()

	f.svc.TypingIndicator(context.Background(), 1, 2, 5, true)
	f.coordinator.AssertExpectations(t)
}
