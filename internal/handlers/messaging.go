package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/service"
	"messaging-service/internal/telemetry"
)

// MessagingHandler exposes the private messaging API over HTTP.
type MessagingHandler struct {
	messaging service.Messaging
	users     repositories.UserDirectory
	audit     *telemetry.AuditEmitter
}

// NewMessagingHandler builds a MessagingHandler.
func NewMessagingHandler(messaging service.Messaging, users repositories.UserDirectory, audit *telemetry.AuditEmitter) *MessagingHandler {
	return &MessagingHandler{messaging: messaging, users: users, audit: audit}
}

// SendMessage persists a message to another user.
func (h *MessagingHandler) SendMessage(c *gin.Context) {
	var req struct {
		RecipientID int    `json:"recipient_id" binding:"required"`
		Content     string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.messaging.Send(c.Request.Context(), userID, req.RecipientID, req.Content)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "message sent")
	c.JSON(http.StatusCreated, msg)
}

// ListConversations returns one page of the caller's conversations, decorated
// with the other participant's display info.
func (h *MessagingHandler) ListConversations(c *gin.Context) {
	userID := c.GetInt("userID")

	page, err := h.messaging.ListConversations(c.Request.Context(), userID, queryPage(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	friendIDs := make([]int, 0, len(page.Conversations))
	for _, conv := range page.Conversations {
		friendIDs = append(friendIDs, conv.FriendID)
	}

	infos, err := h.users.BulkDisplayInfo(c.Request.Context(), friendIDs)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load user info"})
		return
	}

	type conversationResponse struct {
		models.ConversationSummary
		Friend *models.UserInfo `json:"friend,omitempty"`
	}

	responses := make([]conversationResponse, 0, len(page.Conversations))
	for _, conv := range page.Conversations {
		resp := conversationResponse{ConversationSummary: conv}
		if info, ok := infos[conv.FriendID]; ok {
			resp.Friend = &info
		}
		responses = append(responses, resp)
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": responses,
		"total":         page.Total,
		"has_more":      page.HasMore,
	})
}

// OpenConversation returns one page of messages and marks them read for the
// caller.
func (h *MessagingHandler) OpenConversation(c *gin.Context) {
	conversationID, ok := paramID(c, "conversation_id")
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	conv, msgs, err := h.messaging.OpenConversation(c.Request.Context(), userID, conversationID, queryPage(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation": conv,
		"messages":     msgs.Messages,
		"total":        msgs.Total,
		"has_more":     msgs.HasMore,
	})
}

// MarkRead acknowledges the conversation without fetching messages.
func (h *MessagingHandler) MarkRead(c *gin.Context) {
	conversationID, ok := paramID(c, "conversation_id")
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if err := h.messaging.MarkRead(c.Request.Context(), userID, conversationID); err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteMessage removes a single message the caller sent.
func (h *MessagingHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := paramID(c, "message_id")
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if err := h.messaging.DeleteMessage(c.Request.Context(), userID, messageID); err != nil {
		abortWithServiceError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "message deleted")
	c.Status(http.StatusNoContent)
}

// DeleteConversation removes a conversation and all of its messages.
func (h *MessagingHandler) DeleteConversation(c *gin.Context) {
	conversationID, ok := paramID(c, "conversation_id")
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if err := h.messaging.DeleteConversation(c.Request.Context(), userID, conversationID); err != nil {
		abortWithServiceError(c, err)
		return
	}

	h.emitAudit(c, "WARN", "conversation deleted")
	c.Status(http.StatusNoContent)
}

// UnreadCount returns the caller's unread message count.
func (h *MessagingHandler) UnreadCount(c *gin.Context) {
	userID := c.GetInt("userID")

	count, err := h.messaging.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// Typing forwards a typing indicator to the other participant. Always
// succeeds from the caller's perspective.
func (h *MessagingHandler) Typing(c *gin.Context) {
	conversationID, ok := paramID(c, "conversation_id")
	if !ok {
		return
	}

	var req struct {
		ToUserID int  `json:"to_user_id" binding:"required"`
		IsTyping bool `json:"is_typing"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	h.messaging.TypingIndicator(c.Request.Context(), userID, req.ToUserID, conversationID, req.IsTyping)
	c.Status(http.StatusNoContent)
}

func (h *MessagingHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	var userID *string
	if id := userIDFromContext(c); id != nil {
		value := strconv.FormatInt(*id, 10)
		userID = &value
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userID)
}

func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryPage(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func abortWithServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAuthorization):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
