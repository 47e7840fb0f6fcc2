package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messaging-service/internal/observability"
)

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(observability.RequestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := observability.RequestIDFromRequest(c.Request)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(observability.RequestIDContextKey, requestID)
	return requestID
}

// userIDFromContext returns the authenticated user as an audit subject.
func userIDFromContext(c *gin.Context) *string {
	if userID := c.GetInt("userID"); userID > 0 {
		value := strconv.Itoa(userID)
		return &value
	}
	return nil
}
