package response

import "github.com/gin-gonic/gin"

// Error writes the uniform error body used across the API.
func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, gin.H{"error": message})
}

// NotConfigured reports a degraded endpoint whose backing store is absent.
func NotConfigured(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, gin.H{"error": message, "configured": false})
}
