package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iRayau/AI-chat/internal/app"
	"github.com/iRayau/AI-chat/internal/transport/http/response"
)

type TitleHandler struct {
	titleService *app.TitleService
}

type TitleRequest struct {
	Message string `json:"message" binding:"required"`
}

func NewTitleHandler(titleService *app.TitleService) *TitleHandler {
	return &TitleHandler{titleService: titleService}
}

// Generate always answers with a usable title; provider problems degrade to
// the fallback rather than erroring.
func (h *TitleHandler) Generate(c *gin.Context) {
	var req TitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Message is required")
		return
	}

	title := h.titleService.Generate(c.Request.Context(), req.Message)
	c.JSON(http.StatusOK, gin.H{"title": title})
}
