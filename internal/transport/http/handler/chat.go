package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iRayau/AI-chat/internal/app"
	"github.com/iRayau/AI-chat/internal/model"
	"github.com/iRayau/AI-chat/internal/transport/http/middleware"
	"github.com/iRayau/AI-chat/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type CreateChatRequest struct {
	Title        string `json:"title" binding:"max=128"`
	FirstMessage string `json:"firstMessage"`
}

type RenameChatRequest struct {
	Title string `json:"title" binding:"required,max=128"`
}

type AppendMessageRequest struct {
	Role          string               `json:"role" binding:"required"`
	Content       string               `json:"content" binding:"required"`
	SearchResults []model.SearchResult `json:"searchResults"`
	SearchImages  []model.SearchImage  `json:"searchImages"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) ListChats(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "invalid token payload")
		return
	}

	if !h.chatService.Configured() {
		c.JSON(http.StatusOK, gin.H{"chats": []model.Chat{}, "configured": false})
		return
	}

	chats, err := h.chatService.ListChats(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to fetch chats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats, "configured": true})
}

func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "invalid token payload")
		return
	}

	if !h.chatService.Configured() {
		response.NotConfigured(c, http.StatusServiceUnavailable, "datastore not configured")
		return
	}

	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	chat, err := h.chatService.CreateChat(c.Request.Context(), app.CreateChatInput{
		UserID:       userID,
		Title:        req.Title,
		FirstMessage: req.FirstMessage,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, "failed to create chat")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (h *ChatHandler) GetChat(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "invalid token payload")
		return
	}

	if !h.chatService.Configured() {
		response.NotConfigured(c, http.StatusServiceUnavailable, "datastore not configured")
		return
	}

	chat, err := h.chatService.GetChat(userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, "chat not found")
		default:
			response.Error(c, http.StatusInternalServerError, "failed to fetch chat")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (h *ChatHandler) RenameChat(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "invalid token payload")
		return
	}

	if !h.chatService.Configured() {
		response.NotConfigured(c, http.StatusServiceUnavailable, "datastore not configured")
		return
	}

	var req RenameChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	if err := h.chatService.RenameChat(userID, c.Param("id"), req.Title); err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, "chat not found")
		default:
			response.Error(c, http.StatusInternalServerError, "failed to update chat")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ChatHandler) DeleteChat(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "invalid token payload")
		return
	}

	if !h.chatService.Configured() {
		response.NotConfigured(c, http.StatusServiceUnavailable, "datastore not configured")
		return
	}

	if err := h.chatService.DeleteChat(userID, c.Param("id")); err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, "chat not found")
		default:
			response.Error(c, http.StatusInternalServerError, "failed to delete chat")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "invalid token payload")
		return
	}

	if !h.chatService.Configured() {
		c.JSON(http.StatusOK, gin.H{"messages": []model.Message{}, "configured": false})
		return
	}

	messages, err := h.chatService.ListMessages(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, "chat not found")
		default:
			response.Error(c, http.StatusInternalServerError, "failed to fetch messages")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "configured": true})
}

func (h *ChatHandler) AppendMessage(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "invalid token payload")
		return
	}

	if !h.chatService.Configured() {
		response.NotConfigured(c, http.StatusServiceUnavailable, "datastore not configured")
		return
	}

	var req AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	message, err := h.chatService.AppendMessage(c.Request.Context(), app.AppendMessageInput{
		UserID:        userID,
		ChatID:        c.Param("id"),
		Role:          req.Role,
		Content:       req.Content,
		SearchResults: req.SearchResults,
		SearchImages:  req.SearchImages,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrMessageEmpty), errors.Is(err, app.ErrInvalidRole):
			response.Error(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, "chat not found")
		default:
			response.Error(c, http.StatusInternalServerError, "failed to add message")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

func getUserIDFromContext(c *gin.Context) (string, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return "", false
	}
	userID, ok := userIDAny.(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}
