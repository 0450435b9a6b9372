package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iRayau/AI-chat/internal/ai"
	"github.com/iRayau/AI-chat/internal/app"
	"github.com/iRayau/AI-chat/internal/transport/http/response"
)

type CompletionHandler struct {
	completionService *app.CompletionService
}

type CompletionRequest struct {
	Messages     []ai.ChatMessage `json:"messages" binding:"required,min=1"`
	IsSearchMode bool             `json:"isSearchMode"`
}

type streamFrame struct {
	Content string `json:"content"`
}

func NewCompletionHandler(completionService *app.CompletionService) *CompletionHandler {
	return &CompletionHandler{completionService: completionService}
}

// Stream relays the provider's token stream as SSE frames of
// `data: {"content": <token>}` and a final `data: [DONE]` sentinel.
func (h *CompletionHandler) Stream(c *gin.Context) {
	var req CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	// Missing provider key fails synchronously, before any streaming.
	if !h.completionService.Configured() {
		response.Error(c, http.StatusInternalServerError,
			"OpenAI API key not configured. Please add OPENAI_API_KEY to your environment variables.")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, "stream not supported")
		return
	}

	_, err := h.completionService.Stream(c.Request.Context(), req.Messages, req.IsSearchMode, func(delta string) error {
		payload, marshalErr := json.Marshal(streamFrame{Content: delta})
		if marshalErr != nil {
			return marshalErr
		}
		if _, writeErr := c.Writer.Write([]byte("data: " + string(payload) + "\n\n")); writeErr != nil {
			return writeErr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// Mid-stream failure: the stream ends in an error state with no
		// terminal sentinel; the client surfaces a generic failure.
		log.Printf("completion stream failed: %v", err)
		return
	}

	if _, writeErr := c.Writer.Write([]byte("data: [DONE]\n\n")); writeErr == nil {
		flusher.Flush()
	}
}
