package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iRayau/AI-chat/internal/bootstrap"
)

type HealthHandler struct {
	app *bootstrap.App
}

func NewHealthHandler(app *bootstrap.App) *HealthHandler {
	return &HealthHandler{app: app}
}

// Check reports which capabilities resolved at startup. Absent providers
// are degraded modes, not failures, so this always answers 200.
func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"app":        h.app.Config.App.Name,
		"env":        h.app.Config.App.Env,
		"uptime_sec": int(time.Since(h.app.StartedAt).Seconds()),
		"capabilities": gin.H{
			"llm":    h.app.Config.LLMConfigured(),
			"search": h.app.Config.SearchConfigured(),
			"store":  h.app.DB != nil,
			"cache":  h.app.Redis != nil,
			"broker": h.app.MQConn != nil && !h.app.MQConn.IsClosed(),
		},
	})
}
