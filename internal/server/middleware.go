package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vidparse/internal/media"
)

const (
	requestIDHeader = "X-Request-ID"
	clientHeader    = "WX-OPEN-ID"
	defaultClient   = "Guest"
)

// requestID tags each request with an ID, reusing the caller's if sent.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// clientID returns the caller's open ID, defaulting to Guest.
func clientID(c *gin.Context) string {
	if id := c.GetHeader(clientHeader); id != "" {
		return id
	}
	return defaultClient
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("client", clientID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// recovery turns panics into the generic 500 envelope without leaking the
// panic value to the client.
func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("panic recovered",
			zap.String("request_id", c.GetString("request_id")),
			zap.Any("panic", recovered),
			zap.Stack("stack"),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, envelope{
			RetCode: http.StatusInternalServerError,
			RetDesc: media.GenericMessage,
		})
	})
}
