package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDContextKey = "request_id"

// requestIDFromContext returns the request correlation id, minting one
// when neither the context nor the X-Request-ID header carries it.
func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

// participantIDFromContext returns the authenticated participant id set by
// the auth middleware, or nil when the request carries no identity.
func participantIDFromContext(c *gin.Context) *int64 {
	if val, ok := c.Get("participantID"); ok {
		if participantID, ok := val.(int); ok && participantID > 0 {
			value := int64(participantID)
			return &value
		}
	}

	if header := c.GetHeader("X-Participant-ID"); header != "" {
		if parsed, err := strconv.ParseInt(header, 10, 64); err == nil && parsed > 0 {
			return &parsed
		}
	}

	return nil
}
