package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iRayau/AI-chat/internal/search"
	"github.com/iRayau/AI-chat/internal/transport/http/response"
)

type SearchHandler struct {
	searchClient *search.Client
}

type SearchRequest struct {
	Query string `json:"query" binding:"required"`
}

func NewSearchHandler(searchClient *search.Client) *SearchHandler {
	return &SearchHandler{searchClient: searchClient}
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Query is required")
		return
	}

	results, err := h.searchClient.Search(c.Request.Context(), req.Query)
	if err != nil {
		log.Printf("search failed: %v", err)
		response.Error(c, http.StatusInternalServerError, "An error occurred while searching")
		return
	}
	c.JSON(http.StatusOK, results)
}
